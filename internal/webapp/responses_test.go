package webapp

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewResponseKeepAlive(t *testing.T) {
	s := newFakeSession()

	req := newRequest(http.MethodGet, "/", "")
	resp := NewResponse(s, req, http.StatusOK)
	assert.Equal(t, "trellis-test", resp.Header.Get("Server"))
	assert.False(t, resp.Close)
	assert.Same(t, req, resp.Request)

	req.Close = true
	assert.True(t, NewResponse(s, req, http.StatusOK).Close)

	old := newRequest(http.MethodGet, "/", "")
	old.Proto, old.ProtoMajor, old.ProtoMinor = "HTTP/1.0", 1, 0
	resp = NewResponse(s, old, http.StatusOK)
	assert.Equal(t, "HTTP/1.0", resp.Proto)
	assert.Equal(t, "keep-alive", resp.Header.Get("Connection"))
}

func TestErrorResponses(t *testing.T) {
	s := newFakeSession()

	resp := NotFound(s, newRequest(http.MethodGet, "/<script>", ""))
	assert.Equal(t, 404, resp.StatusCode)
	assert.Equal(t, "text/html", resp.Header.Get("Content-Type"))
	assert.Equal(t, "The resource '/&lt;script&gt;' was not found.", readBody(t, resp))

	resp = ServerError(s, newRequest(http.MethodGet, "/", ""), "disk on fire")
	assert.Equal(t, 500, resp.StatusCode)
	assert.Equal(t, "An error occurred: 'disk on fire'", readBody(t, resp))

	resp = ServerError(s, newRequest(http.MethodHead, "/", ""), "x")
	assert.Equal(t, int64(0), resp.ContentLength)

	resp = BadRequest(s, newRequest(http.MethodGet, "/", ""), MsgIllegalPath)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, MsgIllegalPath, readBody(t, resp))
	assert.Equal(t, int64(len(MsgIllegalPath)), resp.ContentLength)

	resp = Redirect(s, newRequest(http.MethodGet, "/", ""), "/next", true)
	assert.Equal(t, 301, resp.StatusCode)
	assert.Equal(t, "/next", resp.Header.Get("Location"))

	resp = OK(s, newRequest(http.MethodGet, "/", ""))
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "", readBody(t, resp))
}
