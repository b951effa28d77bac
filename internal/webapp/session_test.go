package webapp

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/muurk/trellis/internal/clock"
	"github.com/muurk/trellis/internal/mime"
	"github.com/muurk/trellis/internal/session"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)

// fakeSession records responses and runs async work inline.
type fakeSession struct {
	responses []*http.Response
	extras    []string
	clock     *clock.Fixed
	remoteIP  string
}

func newFakeSession() *fakeSession {
	return &fakeSession{clock: clock.NewFixed(testNow), remoteIP: "192.0.2.7"}
}

func (f *fakeSession) SendResponse(resp *http.Response, extra string) {
	f.responses = append(f.responses, resp)
	f.extras = append(f.extras, extra)
}

func (f *fakeSession) Async(work func(ctx context.Context) func()) {
	if then := work(context.Background()); then != nil {
		then()
	}
}

func (f *fakeSession) RemoteIP() string                      { return f.remoteIP }
func (f *fakeSession) ServerID() string                      { return "trellis-test" }
func (f *fakeSession) Clock() clock.Clock                    { return f.clock }
func (f *fakeSession) MimeTypes() *mime.Types                { return mime.Default() }
func (f *fakeSession) Logger() *zap.Logger                   { return zap.NewNop() }
func (f *fakeSession) ClientSession() *session.ClientSession { return nil }

// only returns the single response sent, failing the test otherwise.
func (f *fakeSession) only(t *testing.T) *http.Response {
	t.Helper()
	require.Len(t, f.responses, 1, "expected exactly one response")
	return f.responses[0]
}

func newRequest(method, target, body string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	return httptest.NewRequest(method, target, r)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	if resp.Body == nil {
		return ""
	}
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

// serve dispatches one request to h on a fresh session.
func serve(t *testing.T, h Handler, req *http.Request) (*fakeSession, *http.Response) {
	t.Helper()
	s := newFakeSession()
	require.True(t, Dispatch(h, s, req, Variables{}))
	return s, s.only(t)
}
