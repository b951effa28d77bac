package webapp

import "net/http"

// Failing answers every request with 404. It is useful as a placeholder
// location and for exercising error paths.
type Failing struct{}

func (Failing) HandleGet(s Session, req *http.Request, _ Variables) {
	s.SendResponse(NotFound(s, req), "")
}

func (Failing) HandleHead(s Session, req *http.Request, _ Variables) {
	s.SendResponse(NotFound(s, req), "")
}

func (Failing) HandlePost(s Session, req *http.Request, _ Variables) {
	s.SendResponse(NotFound(s, req), "")
}
