// Package server implements the trellis HTTP/1.x server.
//
// A fixed pool of workers drives one shared I/O context (see package
// executor). The Listener accepts connections on a background goroutine and
// posts each one to the context, where it becomes an HTTPSession. Socket reads
// and writes happen on short-lived goroutines; their completions are posted
// back to the session's strand, so workers never block on I/O and a session's
// callbacks never run concurrently.
//
// # Request Lifecycle
//
// Each session loops through these states:
//
//	reading -> validating -> handling  -> writing -> reading
//	                      \-> upgrading (socket handed to package wsapp)
//
// A session closes after a response marked Connection: close, on a transport
// error, or when the peer closes. Validation rejects request targets that are
// empty, relative, or contain "..", with a 400 regardless of routing.
//
// # Client Sessions
//
// Every response carries a Set-Cookie header naming the client session:
//
//	Set-Cookie: session=<id>; HttpOnly
//
// A request presenting a known id is associated with the existing session.
//
// # Usage Example
//
//	srv, err := server.New(server.Config{
//	    Address: "0.0.0.0",
//	    Port:    8080,
//	    Handler: routingHandler,
//	    Logger:  logging.Named("http.server"),
//	    RegisterSignalHandler: true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Run blocks until SIGINT, SIGTERM or SIGQUIT
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// Stop (or a handled signal):
//  1. Closes the listening socket
//  2. Force-closes every registered HTTP and WebSocket connection
//  3. Stops the I/O context
//  4. Waits for the workers to exit
//
// # Thread Safety
//
// Config is read-only after New. Server methods are safe for concurrent use.
// HTTPSession methods other than Close must only be called from handlers
// running on the session's strand.
package server
