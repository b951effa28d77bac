// Package executor provides the shared event loop the server runs on.
//
// An IOContext is a task queue driven by a pool of worker goroutines. Blocking
// I/O never happens on a worker: dedicated goroutines perform Accept, Read and
// Write calls and post their completions back as tasks. A Strand layered on
// the context serialises one connection's callbacks so its state needs no
// further locking, while different connections proceed in parallel.
//
//	ioc := executor.NewIOContext()
//	strand := executor.NewStrand(ioc)
//	go ioc.Run()
//	strand.Post(func() { ... })
//
// SignalSet turns SIGINT/SIGTERM style notifications into ordinary tasks so
// shutdown logic runs on the same loop as everything else.
package executor
