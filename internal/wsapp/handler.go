package wsapp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/muurk/trellis/internal/routing"
)

// Handler receives the messages of an upgraded connection. path is the
// request path the connection was upgraded on.
type Handler interface {
	HandleText(s *Session, path string, data []byte)
	HandleBinary(s *Session, path string, data []byte)
	HandleClose(s *Session, path string, code int, text string)
	HandlePing(s *Session, path string, data []byte)
	HandlePong(s *Session, path string, data []byte)
}

// Echo writes text and binary messages straight back to the peer.
type Echo struct{}

func (Echo) HandleText(s *Session, _ string, data []byte)   { _ = s.WriteText(data) }
func (Echo) HandleBinary(s *Session, _ string, data []byte) { _ = s.WriteBinary(data) }
func (Echo) HandleClose(*Session, string, int, string)      {}
func (Echo) HandlePing(*Session, string, []byte)            {}
func (Echo) HandlePong(*Session, string, []byte)            {}

// Null ignores everything.
type Null struct{}

func (Null) HandleText(*Session, string, []byte)       {}
func (Null) HandleBinary(*Session, string, []byte)     {}
func (Null) HandleClose(*Session, string, int, string) {}
func (Null) HandlePing(*Session, string, []byte)       {}
func (Null) HandlePong(*Session, string, []byte)       {}

// Routing selects a handler by the upgrade path. Paths with no handler are
// served by Null.
type Routing struct {
	table *routing.Table[Handler]
}

// NewRouting builds a router from location to handler. Each key may hold
// several whitespace separated locations.
func NewRouting(routes map[string]Handler) (*Routing, error) {
	keys := make([]string, 0, len(routes))
	for k := range routes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b := routing.NewBuilder[Handler]()
	for _, k := range keys {
		paths := strings.Fields(k)
		if len(paths) == 0 {
			return nil, fmt.Errorf("empty websocket location")
		}
		for _, p := range paths {
			if err := b.Add(p, routes[k]); err != nil {
				return nil, err
			}
		}
	}
	return &Routing{table: b.Build()}, nil
}

// Table exposes the routes for listing.
func (r *Routing) Table() *routing.Table[Handler] {
	return r.table
}

func (r *Routing) resolve(path string) Handler {
	if m := r.table.Resolve(path); m.HasValue && m.Value != nil {
		return m.Value
	}
	return Null{}
}

func (r *Routing) HandleText(s *Session, path string, data []byte) {
	r.resolve(path).HandleText(s, path, data)
}

func (r *Routing) HandleBinary(s *Session, path string, data []byte) {
	r.resolve(path).HandleBinary(s, path, data)
}

func (r *Routing) HandleClose(s *Session, path string, code int, text string) {
	r.resolve(path).HandleClose(s, path, code, text)
}

func (r *Routing) HandlePing(s *Session, path string, data []byte) {
	r.resolve(path).HandlePing(s, path, data)
}

func (r *Routing) HandlePong(s *Session, path string, data []byte) {
	r.resolve(path).HandlePong(s, path, data)
}

// Create returns a built-in handler by type name.
func Create(name string) (Handler, error) {
	switch name {
	case "echo":
		return Echo{}, nil
	case "null":
		return Null{}, nil
	default:
		return nil, fmt.Errorf("unknown websocket handler type: %q", name)
	}
}

// Types lists the built-in handler type names.
func Types() []string {
	return []string{"echo", "null"}
}
