package webapp

import (
	"bytes"
	"html"
	"io"
	"net/http"
	"strconv"
)

// Messages used by the server for canned error responses.
const (
	MsgIllegalPath       = "Illegal path in request."
	MsgUnsupportedMethod = "Unsupported HTTP method."
	MsgWebSocketRejected = "WebSocket not supported."
	MsgHandlerFailed     = "The server experienced an error during the request. A report has been logged."
	MsgNotSupported      = "Not supported"
)

const (
	contentTypeHTML     = "text/html"
	defaultCacheControl = "public,max-age=600"
)

// NewResponse returns a bodyless response for req with the Server header and
// keep-alive state taken from the request.
func NewResponse(s Session, req *http.Request, status int) *http.Response {
	resp := &http.Response{
		StatusCode:    status,
		Status:        strconv.Itoa(status) + " " + http.StatusText(status),
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        make(http.Header),
		Body:          http.NoBody,
		ContentLength: 0,
		Request:       req,
	}
	if req != nil {
		resp.Close = req.Close
		if req.ProtoMajor == 1 && req.ProtoMinor == 0 {
			resp.Proto = "HTTP/1.0"
			resp.ProtoMinor = 0
			if !req.Close {
				resp.Header.Set("Connection", "keep-alive")
			}
		}
	}
	if s != nil && s.ServerID() != "" {
		resp.Header.Set("Server", s.ServerID())
	}
	return resp
}

// SetBody installs an in-memory body and its length.
func SetBody(resp *http.Response, contentType string, body []byte) *http.Response {
	if contentType != "" {
		resp.Header.Set("Content-Type", contentType)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	return resp
}

// OK is an empty 200 text/html response.
func OK(s Session, req *http.Request) *http.Response {
	return SetBody(NewResponse(s, req, http.StatusOK), contentTypeHTML, nil)
}

// Redirect is a bodyless 302 (or 301 when permanent) to location.
func Redirect(s Session, req *http.Request, location string, permanent bool) *http.Response {
	status := http.StatusFound
	if permanent {
		status = http.StatusMovedPermanently
	}
	resp := NewResponse(s, req, status)
	resp.Header.Set("Location", location)
	return resp
}

// BadRequest is a 400 carrying msg as its body.
func BadRequest(s Session, req *http.Request, msg string) *http.Response {
	return SetBody(NewResponse(s, req, http.StatusBadRequest), contentTypeHTML, []byte(msg))
}

// BadRequestHead is a bodyless 400.
func BadRequestHead(s Session, req *http.Request) *http.Response {
	resp := NewResponse(s, req, http.StatusBadRequest)
	resp.Header.Set("Content-Type", contentTypeHTML)
	return resp
}

// NotFound is a 404 naming the requested resource. The body is omitted for
// HEAD requests.
func NotFound(s Session, req *http.Request) *http.Response {
	if req.Method == http.MethodHead {
		resp := NewResponse(s, req, http.StatusNotFound)
		resp.Header.Set("Content-Type", contentTypeHTML)
		return resp
	}
	body := "The resource '" + html.EscapeString(target(req)) + "' was not found."
	return SetBody(NewResponse(s, req, http.StatusNotFound), contentTypeHTML, []byte(body))
}

// ServerError is a 500 describing msg. The body is omitted for HEAD requests.
func ServerError(s Session, req *http.Request, msg string) *http.Response {
	if req.Method == http.MethodHead {
		resp := NewResponse(s, req, http.StatusInternalServerError)
		resp.Header.Set("Content-Type", contentTypeHTML)
		return resp
	}
	body := "An error occurred: '" + html.EscapeString(msg) + "'"
	return SetBody(NewResponse(s, req, http.StatusInternalServerError), contentTypeHTML, []byte(body))
}

// target is the request-target as received, falling back to the parsed path.
func target(req *http.Request) string {
	if req.RequestURI != "" {
		return req.RequestURI
	}
	if req.URL != nil {
		return req.URL.Path
	}
	return ""
}
