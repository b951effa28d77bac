package webapp

import "net/http"

// Canned serves fixed bodies. An empty body for a method means the method is
// rejected with 400.
type Canned struct {
	mimeType string
	getBody  []byte
	postBody []byte
}

// NewCanned returns a handler serving getBody for GET and postBody for POST.
func NewCanned(mimeType, getBody, postBody string) *Canned {
	return &Canned{mimeType: mimeType, getBody: []byte(getBody), postBody: []byte(postBody)}
}

func (c *Canned) HandleGet(s Session, req *http.Request, _ Variables) {
	c.handle(s, req, c.getBody)
}

// HandleHead reports the GET body's length without sending it.
func (c *Canned) HandleHead(s Session, req *http.Request, _ Variables) {
	resp := NewResponse(s, req, http.StatusOK)
	resp.Header.Set("Content-Type", c.mimeType)
	resp.ContentLength = int64(len(c.getBody))
	resp.Body = nil
	s.SendResponse(resp, "")
}

func (c *Canned) HandlePost(s Session, req *http.Request, _ Variables) {
	c.handle(s, req, c.postBody)
}

func (c *Canned) handle(s Session, req *http.Request, body []byte) {
	if len(body) == 0 {
		s.SendResponse(BadRequest(s, req, MsgNotSupported), "")
		return
	}
	s.SendResponse(SetBody(NewResponse(s, req, http.StatusOK), c.mimeType, body), "")
}
