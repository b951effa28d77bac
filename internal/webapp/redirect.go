package webapp

import (
	"fmt"
	"math"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// RedirectRule is the configured form of one redirection. Target has the
// form "[priority] [code] template", for example "1 301 /new/$1".
type RedirectRule struct {
	Pattern string `mapstructure:"pattern" yaml:"pattern"`
	Target  string `mapstructure:"redirect" yaml:"redirect"`
}

// Redirection is a compiled rule.
type Redirection struct {
	Pattern  string
	Priority int
	Code     int
	Template string

	matcher *regexp.Regexp
	parts   []templatePart
}

type templatePart struct {
	variable bool
	text     string
}

var (
	priorityAndCode = regexp.MustCompile(`^([0-9]+) +([0-9]+)`)
	codeOnly        = regexp.MustCompile(`^([0-9]+)`)
)

// Redirecting sends 301/302 responses for paths matching its rules and 404
// for everything else.
type Redirecting struct {
	rules []Redirection
}

// NewRedirecting compiles rules and orders them by ascending priority. Rules
// without a priority run after all prioritised ones, in declaration order.
func NewRedirecting(rules []RedirectRule, logger *zap.Logger) (*Redirecting, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	compiled := make([]Redirection, 0, len(rules))
	for _, rule := range rules {
		r, err := CompileRedirection(rule, logger)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, r)
	}
	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].Priority < compiled[j].Priority
	})
	return &Redirecting{rules: compiled}, nil
}

// CompileRedirection parses one rule. An invalid status code is replaced by
// 302; an invalid pattern is an error.
func CompileRedirection(rule RedirectRule, logger *zap.Logger) (Redirection, error) {
	pattern := strings.TrimSpace(rule.Pattern)
	rest := strings.TrimSpace(rule.Target)

	r := Redirection{Pattern: pattern, Priority: math.MaxInt, Code: http.StatusFound}

	if m := priorityAndCode.FindStringSubmatch(rest); m != nil {
		r.Priority, _ = strconv.Atoi(m[1])
		r.Code, _ = strconv.Atoi(m[2])
		rest = strings.TrimSpace(rest[len(m[0]):])
	} else if m := codeOnly.FindStringSubmatch(rest); m != nil {
		r.Code, _ = strconv.Atoi(m[1])
		rest = strings.TrimSpace(rest[len(m[0]):])
	}

	if r.Code != http.StatusMovedPermanently && r.Code != http.StatusFound {
		logger.Warn("Invalid redirect HTTP code, using 302 instead",
			zap.Int("code", r.Code),
			zap.String("pattern", pattern),
		)
		r.Code = http.StatusFound
	}

	matcher, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return Redirection{}, fmt.Errorf("invalid redirect pattern %q: %w", pattern, err)
	}
	r.matcher = matcher
	r.Template = rest
	r.parts = parseTemplate(rest)
	return r, nil
}

// Rules returns the compiled rules in evaluation order.
func (h *Redirecting) Rules() []Redirection {
	return h.rules
}

func (h *Redirecting) HandleGet(s Session, req *http.Request, vars Variables) {
	h.handle(s, req, vars)
}

func (h *Redirecting) HandleHead(s Session, req *http.Request, vars Variables) {
	h.handle(s, req, vars)
}

func (h *Redirecting) HandlePost(s Session, req *http.Request, vars Variables) {
	h.handle(s, req, vars)
}

func (h *Redirecting) handle(s Session, req *http.Request, vars Variables) {
	path := req.URL.Path
	for i := range h.rules {
		rule := &h.rules[i]
		m := rule.matcher.FindStringSubmatch(path)
		if m == nil {
			continue
		}
		for idx, group := range m[1:] {
			vars["$"+strconv.Itoa(idx+1)] = group
		}
		location := rule.Expand(vars)
		s.SendResponse(Redirect(s, req, location, rule.Code == http.StatusMovedPermanently), location)
		return
	}
	s.SendResponse(NotFound(s, req), "")
}

// Expand substitutes vars into the rule's template. Unknown variables expand
// to the empty string.
func (r *Redirection) Expand(vars Variables) string {
	var b strings.Builder
	for _, p := range r.parts {
		if p.variable {
			b.WriteString(vars[p.text])
		} else {
			b.WriteString(p.text)
		}
	}
	return b.String()
}

// parseTemplate splits a template into literal text and "$name" references.
// A name continues while the next rune is a letter, digit, '-', '_' or '$'.
func parseTemplate(tmpl string) []templatePart {
	var parts []templatePart
	var cur strings.Builder
	inVar := false

	for _, c := range tmpl {
		switch {
		case !inVar && c == '$':
			if cur.Len() > 0 {
				parts = append(parts, templatePart{text: cur.String()})
				cur.Reset()
			}
			inVar = true
			cur.WriteRune(c)
		case !inVar:
			cur.WriteRune(c)
		case unicode.IsLetter(c) || unicode.IsDigit(c) || c == '-' || c == '_' || c == '$':
			cur.WriteRune(c)
		default:
			parts = append(parts, templatePart{variable: true, text: cur.String()})
			cur.Reset()
			inVar = false
			cur.WriteRune(c)
		}
	}
	if cur.Len() > 0 {
		parts = append(parts, templatePart{variable: inVar, text: cur.String()})
	}
	return parts
}
