package routing

import (
	"fmt"
	"sort"
	"strings"
)

type node[T any] struct {
	segment  string
	location string
	children map[string]*node[T]
	value    T
	hasValue bool
}

func newNode[T any](segment, location string) *node[T] {
	return &node[T]{segment: segment, location: location}
}

func (n *node[T]) child(segment string) *node[T] {
	if n.children == nil {
		return nil
	}
	return n.children[segment]
}

// Builder accumulates locations before the immutable Table is produced.
// A Builder is not safe for concurrent use.
type Builder[T any] struct {
	root  *node[T]
	count int
	built bool
}

// NewBuilder returns an empty builder whose root location is "/".
func NewBuilder[T any]() *Builder[T] {
	return &Builder[T]{root: newNode[T]("/", "/")}
}

// Add installs v at path. Adding the same location twice is an error.
func (b *Builder[T]) Add(path string, v T) error {
	if b.built {
		return fmt.Errorf("routing: add %q after build", path)
	}

	n := b.root
	for _, seg := range Split(path) {
		next := n.child(seg)
		if next == nil {
			next = newNode[T](seg, joinLocation(n.location, seg))
			if n.children == nil {
				n.children = make(map[string]*node[T])
			}
			n.children[seg] = next
		}
		n = next
	}

	if n.hasValue {
		return fmt.Errorf("routing: duplicate location %q", n.location)
	}
	n.value = v
	n.hasValue = true
	b.count++
	return nil
}

// Build freezes the builder. The builder must not be used afterwards.
func (b *Builder[T]) Build() *Table[T] {
	b.built = true
	return &Table[T]{root: b.root, count: b.count}
}

// Table is a read-only path-segment trie. Lookups take no locks.
type Table[T any] struct {
	root  *node[T]
	count int
}

// Match is the result of resolving a request path.
type Match[T any] struct {
	// Location is the canonical path of the deepest node reached.
	Location string
	// Value is the value at that node; the zero value when HasValue is false.
	Value    T
	HasValue bool
}

// Resolve walks the request path through the trie and returns the deepest
// node reached. A node reached without a value of its own is still returned;
// resolution does not back off to a shallower ancestor.
func (t *Table[T]) Resolve(path string) Match[T] {
	n := t.root
	for _, seg := range Split(path) {
		next := n.child(seg)
		if next == nil {
			break
		}
		n = next
	}
	return Match[T]{Location: n.location, Value: n.value, HasValue: n.hasValue}
}

// Len returns the number of locations holding a value.
func (t *Table[T]) Len() int {
	return t.count
}

// Walk calls fn for every location holding a value, in lexical order of
// location. A non-nil error from fn stops the walk and is returned.
func (t *Table[T]) Walk(fn func(location string, v T) error) error {
	return walk(t.root, fn)
}

func walk[T any](n *node[T], fn func(string, T) error) error {
	if n.hasValue {
		if err := fn(n.location, n.value); err != nil {
			return err
		}
	}
	keys := make([]string, 0, len(n.children))
	for k := range n.children {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := walk(n.children[k], fn); err != nil {
			return err
		}
	}
	return nil
}

// Split breaks a path into its non-empty segments.
func Split(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
}

func joinLocation(parent, seg string) string {
	if parent == "/" {
		return "/" + seg
	}
	return parent + "/" + seg
}
