package mime

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLookup(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/static/index.html", "text/html"},
		{"/static/INDEX.HTM", "text/html"},
		{"style.css", "text/css"},
		{"/a/b/archive.tar", "application/x-tar"},
		{"/no-extension", ""},
		{"/dir.d/file", ""},
		{"/unknown.zzz", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Default().Lookup(tt.path))
		})
	}
}

func TestFromConfig(t *testing.T) {
	types, err := FromConfig(map[string]string{
		"text/html":  "html, htm",
		"text/plain": "txt .log",
	})
	require.NoError(t, err)

	assert.Equal(t, 4, types.Len())
	assert.Equal(t, "text/html", types.Lookup("a.htm"))
	assert.Equal(t, "text/plain", types.Lookup("server.log"))
	assert.Equal(t, []string{"htm", "html", "log", "txt"}, types.Extensions())
}

func TestFromConfigErrors(t *testing.T) {
	_, err := FromConfig(map[string]string{"text/html": " , "})
	assert.Error(t, err)

	_, err = FromConfig(map[string]string{
		"text/html":  "html",
		"text/plain": "html",
	})
	assert.Error(t, err)
}

func TestLookupOrDetect(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "blob")
	require.NoError(t, os.WriteFile(p, []byte("%PDF-1.4\n%rest"), 0o644))

	assert.Equal(t, "application/pdf", Default().LookupOrDetect(p))
	assert.Equal(t, "text/html", Default().LookupOrDetect(filepath.Join(dir, "missing.html")))
	assert.Equal(t, "application/octet-stream", Default().LookupOrDetect(filepath.Join(dir, "missing")))
}
