// Package webapp contains the request handlers the server dispatches to.
//
// A Handler has one entry point per supported method. Handlers never write
// to the connection themselves; they build an *http.Response and hand it to
// Session.SendResponse, which queues the write on the connection's strand.
// Work that would block (object storage, SMTP) goes through Session.Async so
// the event loop stays free.
//
// Built-in handlers:
//
//   - Routing: dispatches on the longest matching location prefix
//   - FileServing: static files under a document root
//   - Canned: fixed bodies for GET and POST
//   - Redirecting: regex rules producing 301/302 responses
//   - Failing: 404 for everything
//   - EmailSending: form submissions forwarded by email
//   - ObjectServing: objects from an S3 bucket
//
// Configuration creates handlers by type name through Create; additional
// types can be added with Register.
package webapp
