// Package wsapp handles connections after they have been upgraded to
// WebSocket.
//
// The HTTP layer detects an upgrade request and hands the raw connection,
// its buffered reader and the parsed request to Accept, which completes the
// handshake with gorilla/websocket and starts a read loop. Messages and
// control frames are delivered to a Handler together with the upgrade path;
// Routing picks a handler per path using the same trie as HTTP routing.
package wsapp
