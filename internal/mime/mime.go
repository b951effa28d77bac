// Package mime maps file extensions to content types.
package mime

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Types is an immutable extension to content-type table. Extensions are
// stored lower case and without the leading dot.
type Types struct {
	byExt map[string]string
}

var defaultTypes = New(map[string]string{
	"7z":    "application/x-7z-compressed",
	"avi":   "video/x-msvideo",
	"bmp":   "image/bmp",
	"bz":    "application/x-bzip",
	"bz2":   "application/x-bzip2",
	"css":   "text/css",
	"csv":   "text/csv",
	"doc":   "application/msword",
	"eps":   "application/postscript",
	"epub":  "application/epub+zip",
	"flv":   "video/x-flv",
	"gif":   "image/gif",
	"gz":    "application/x-gzip",
	"gzip":  "application/x-gzip",
	"htm":   "text/html",
	"html":  "text/html",
	"ico":   "image/x-icon",
	"jar":   "application/java-archive",
	"jpg":   "image/jpeg",
	"jpeg":  "image/jpeg",
	"js":    "application/javascript",
	"json":  "application/json",
	"mml":   "text/mathml",
	"mp3":   "audio/mpeg",
	"mp4":   "video/mp4",
	"mpg":   "video/mpeg",
	"mpeg":  "video/mpeg",
	"ogg":   "audio/ogg",
	"pdf":   "application/pdf",
	"png":   "image/png",
	"ps":    "application/postscript",
	"rtf":   "application/rtf",
	"svg":   "image/svg+xml",
	"svgz":  "image/svg+xml",
	"tar":   "application/x-tar",
	"tif":   "image/tiff",
	"tiff":  "image/tiff",
	"txt":   "text/plain",
	"wasm":  "application/wasm",
	"woff":  "font/woff",
	"woff2": "font/woff2",
	"xhtml": "application/xhtml+xml",
	"xml":   "text/xml",
	"zip":   "application/zip",
})

// Default returns the built-in table.
func Default() *Types {
	return defaultTypes
}

// New builds a table from an extension to content-type map.
func New(byExt map[string]string) *Types {
	t := &Types{byExt: make(map[string]string, len(byExt))}
	for ext, ct := range byExt {
		t.byExt[normalizeExt(ext)] = ct
	}
	return t
}

// FromConfig builds a table from the configuration form, where each key is a
// content type and each value a comma or whitespace separated extension list:
//
//	text/html: "html, htm"
//
// An extension listed under two content types is an error.
func FromConfig(byType map[string]string) (*Types, error) {
	byExt := make(map[string]string)
	types := make([]string, 0, len(byType))
	for ct := range byType {
		types = append(types, ct)
	}
	sort.Strings(types)

	for _, ct := range types {
		fields := strings.FieldsFunc(byType[ct], func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		if len(fields) == 0 {
			return nil, fmt.Errorf("mime type %q has no extensions", ct)
		}
		for _, ext := range fields {
			ext = normalizeExt(ext)
			if prev, ok := byExt[ext]; ok && prev != ct {
				return nil, fmt.Errorf("extension %q mapped to both %q and %q", ext, prev, ct)
			}
			byExt[ext] = ct
		}
	}
	return &Types{byExt: byExt}, nil
}

// Lookup returns the content type registered for the extension of p, or ""
// when the path has no registered extension.
func (t *Types) Lookup(p string) string {
	ext := path.Ext(p)
	if ext == "" {
		return ""
	}
	return t.byExt[normalizeExt(ext)]
}

// LookupOrDetect returns the registered content type for p, falling back to
// sniffing the file contents.
func (t *Types) LookupOrDetect(p string) string {
	if ct := t.Lookup(p); ct != "" {
		return ct
	}
	m, err := mimetype.DetectFile(p)
	if err != nil {
		return "application/octet-stream"
	}
	return m.String()
}

// Detect sniffs a content type from the leading bytes of a payload.
func Detect(data []byte) string {
	return mimetype.Detect(data).String()
}

// Len returns the number of registered extensions.
func (t *Types) Len() int {
	return len(t.byExt)
}

// Extensions returns the registered extensions in sorted order.
func (t *Types) Extensions() []string {
	out := make([]string, 0, len(t.byExt))
	for ext := range t.byExt {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
