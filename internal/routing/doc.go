// Package routing implements the path trie used to dispatch requests.
//
// A table is assembled once with a Builder and then frozen:
//
//	b := routing.NewBuilder[Route]()
//	_ = b.Add("/static", staticRoute)
//	_ = b.Add("/api/v1", apiRoute)
//	table := b.Build()
//
// Paths are split on "/" and empty segments are ignored, so "/a//b/" and
// "a/b" name the same location. Resolution walks the request path segment by
// segment and stops at the deepest node it can reach; "/api/v1/users" resolves
// to "/api/v1" above. The frozen Table is safe for concurrent readers.
package routing
