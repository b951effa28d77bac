// Package session tracks client sessions identified by a cookie.
//
// A ClientSession is independent of the connections that carry it: a browser
// that opens several keep-alive connections, or reconnects later, presents the
// same cookie and resolves to the same session. The Registry holds sessions in
// memory and can be backed by a BadgerStore so sessions survive restarts.
package session
