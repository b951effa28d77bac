package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCookies(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   map[string]string
	}{
		{"empty", "", map[string]string{}},
		{"single", "session=abc", map[string]string{"session": "abc"}},
		{"several", "a=1; session=abc; b=2", map[string]string{"a": "1", "session": "abc", "b": "2"}},
		{"no value", "flag; session=abc", map[string]string{"session": "abc"}},
		{"extra equals", "x=a=b; session=abc", map[string]string{"session": "abc"}},
		{"wrong separator", "a=1;session=abc", map[string]string{}},
		{"empty value", "session=", map[string]string{"session": ""}},
		{"repeated name keeps first", "session=A; session=B", map[string]string{"session": "A"}},
		{"repeated after malformed", "session=x=y; session=B; session=C", map[string]string{"session": "B"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseCookies(tt.header))
		})
	}
}
