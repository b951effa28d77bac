package webapp

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// named answers 200 with its own name as the body.
func named(name string) Handler {
	return HandlerFunc(func(s Session, req *http.Request, _ Variables) {
		s.SendResponse(SetBody(NewResponse(s, req, http.StatusOK), "text/plain", []byte(name)), "")
	})
}

func TestRoutingResolution(t *testing.T) {
	rb := NewRoutingBuilder()
	require.NoError(t, rb.Add("/a", Uniform(named("a"))))
	require.NoError(t, rb.Add("/a/b", Uniform(named("b"))))
	require.NoError(t, rb.Add("/only-get", Route{Get: named("g")}))
	require.NoError(t, rb.Add("/one /two", Uniform(named("multi"))))
	r := rb.Build()

	tests := []struct {
		name       string
		method     string
		target     string
		wantStatus int
		wantBody   string
	}{
		{"exact", http.MethodGet, "/a", 200, "a"},
		{"longest prefix", http.MethodGet, "/a/b/c", 200, "b"},
		{"post through prefix", http.MethodPost, "/a/x", 200, "a"},
		{"first of several locations", http.MethodGet, "/one", 200, "multi"},
		{"second of several locations", http.MethodGet, "/two/deeper", 200, "multi"},
		{"missing", http.MethodGet, "/missing", 404, "The resource '/missing' was not found."},
		{"method without handler", http.MethodPost, "/only-get", 404, "The resource '/only-get' was not found."},
		{"head not found has no body", http.MethodHead, "/missing", 404, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp := serve(t, r, newRequest(tt.method, tt.target, ""))
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantBody, readBody(t, resp))
		})
	}
}

func TestRoutingBuilderErrors(t *testing.T) {
	rb := NewRoutingBuilder()
	assert.Error(t, rb.Add("   ", Uniform(Failing{})))
	require.NoError(t, rb.Add("/dup", Uniform(Failing{})))
	assert.Error(t, rb.Add("/other /dup", Uniform(Failing{})))
}

func TestRoutingTableListing(t *testing.T) {
	rb := NewRoutingBuilder()
	require.NoError(t, rb.Add("/z /a", Uniform(Failing{})))
	r := rb.Build()

	var locations []string
	require.NoError(t, r.Table().Walk(func(loc string, _ Route) error {
		locations = append(locations, loc)
		return nil
	}))
	assert.Equal(t, []string{"/a", "/z"}, locations)
}

func TestDispatchUnsupportedMethod(t *testing.T) {
	s := newFakeSession()
	assert.False(t, Dispatch(Failing{}, s, newRequest(http.MethodDelete, "/", ""), Variables{}))
	assert.Empty(t, s.responses)
}
