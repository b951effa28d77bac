package server

import "strings"

// parseCookies splits a Cookie header on "; " and each pair on "=". Pairs
// that do not split into exactly a name and a value are ignored. The first
// occurrence of a repeated name wins.
func parseCookies(header string) map[string]string {
	cookies := make(map[string]string)
	if header == "" {
		return cookies
	}
	for _, pair := range strings.Split(header, "; ") {
		parts := strings.Split(pair, "=")
		if len(parts) != 2 {
			continue
		}
		if _, seen := cookies[parts[0]]; !seen {
			cookies[parts[0]] = parts[1]
		}
	}
	return cookies
}
