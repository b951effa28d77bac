package webapp

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// FileServing serves files below a document root.
type FileServing struct {
	root         string
	defaultFile  string
	cacheControl string
}

// FileServingOption customises a FileServing handler.
type FileServingOption func(*FileServing)

// WithCacheControl overrides the Cache-Control header sent with files.
func WithCacheControl(v string) FileServingOption {
	return func(f *FileServing) { f.cacheControl = v }
}

// NewFileServing returns a handler for root, which must be an existing
// directory. defaultFile is appended to requests ending in "/" when set.
func NewFileServing(root, defaultFile string, opts ...FileServingOption) (*FileServing, error) {
	if root == "" {
		return nil, fmt.Errorf("file server document root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve document root %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("file server document root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("file server document root %s is not a directory", root)
	}

	f := &FileServing{root: abs, defaultFile: defaultFile, cacheControl: defaultCacheControl}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Root returns the absolute document root.
func (f *FileServing) Root() string {
	return f.root
}

func (f *FileServing) HandleGet(s Session, req *http.Request, _ Variables) {
	f.serve(s, req, true)
}

func (f *FileServing) HandleHead(s Session, req *http.Request, _ Variables) {
	f.serve(s, req, false)
}

func (f *FileServing) HandlePost(s Session, req *http.Request, _ Variables) {
	s.SendResponse(NotFound(s, req), "")
}

func (f *FileServing) serve(s Session, req *http.Request, withBody bool) {
	p := f.resolve(req.URL.Path)

	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		s.SendResponse(NotFound(s, req), "")
		return
	}

	resp := NewResponse(s, req, http.StatusOK)
	if ct := s.MimeTypes().LookupOrDetect(p); ct != "" {
		resp.Header.Set("Content-Type", ct)
	}
	resp.Header.Set("Cache-Control", f.cacheControl)
	resp.Header.Set("Date", s.Clock().Now().UTC().Format(http.TimeFormat))
	resp.ContentLength = info.Size()

	if !withBody {
		resp.Body = nil
		s.SendResponse(resp, "")
		return
	}

	file, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.SendResponse(NotFound(s, req), "")
			return
		}
		s.SendResponse(ServerError(s, req, err.Error()), "")
		return
	}
	resp.Body = file
	s.SendResponse(resp, "")
}

// resolve maps a request path onto the document root.
func (f *FileServing) resolve(urlPath string) string {
	cleaned := filepath.Clean("/" + filepath.FromSlash(urlPath))
	p := filepath.Join(f.root, cleaned)
	if f.defaultFile != "" && strings.HasSuffix(urlPath, "/") {
		p = filepath.Join(p, f.defaultFile)
	}
	return p
}
