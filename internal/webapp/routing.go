package webapp

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/muurk/trellis/internal/routing"
)

// Route holds the per-method handlers installed at one location. A nil
// handler means the method is not served there.
type Route struct {
	Get  Handler
	Head Handler
	Post Handler
}

// Uniform returns a route serving every method with h.
func Uniform(h Handler) Route {
	return Route{Get: h, Head: h, Post: h}
}

func (r Route) forMethod(method string) Handler {
	switch method {
	case http.MethodGet:
		return r.Get
	case http.MethodHead:
		return r.Head
	case http.MethodPost:
		return r.Post
	}
	return nil
}

// Routing dispatches to the handler at the most specific location matching
// the request path.
type Routing struct {
	table *routing.Table[Route]
}

// NewRouting wraps a built routing table.
func NewRouting(table *routing.Table[Route]) *Routing {
	return &Routing{table: table}
}

// RoutingBuilder collects routes for NewRouting.
type RoutingBuilder struct {
	b *routing.Builder[Route]
}

func NewRoutingBuilder() *RoutingBuilder {
	return &RoutingBuilder{b: routing.NewBuilder[Route]()}
}

// Add installs route at each whitespace separated path in locations.
func (rb *RoutingBuilder) Add(locations string, route Route) error {
	paths := strings.Fields(locations)
	if len(paths) == 0 {
		return fmt.Errorf("empty location")
	}
	for _, p := range paths {
		if err := rb.b.Add(p, route); err != nil {
			return err
		}
	}
	return nil
}

// Build freezes the collected routes into a Routing handler.
func (rb *RoutingBuilder) Build() *Routing {
	return NewRouting(rb.b.Build())
}

// Table exposes the routing table for listing.
func (r *Routing) Table() *routing.Table[Route] {
	return r.table
}

func (r *Routing) HandleGet(s Session, req *http.Request, vars Variables) {
	if h := r.resolve(s, req); h != nil {
		h.HandleGet(s, req, vars)
	}
}

func (r *Routing) HandleHead(s Session, req *http.Request, vars Variables) {
	if h := r.resolve(s, req); h != nil {
		h.HandleHead(s, req, vars)
	}
}

func (r *Routing) HandlePost(s Session, req *http.Request, vars Variables) {
	if h := r.resolve(s, req); h != nil {
		h.HandlePost(s, req, vars)
	}
}

// resolve returns the handler for the request or sends a 404 and returns nil.
func (r *Routing) resolve(s Session, req *http.Request) Handler {
	m := r.table.Resolve(req.URL.Path)
	if m.HasValue {
		if h := m.Value.forMethod(req.Method); h != nil {
			return h
		}
	}
	s.SendResponse(NotFound(s, req), "")
	return nil
}
