package normalize

import (
	"strings"
)

// ParseCPE extracts the vendor/product/version triple from a CPE 2.3
// criteria string, e.g.
//
//	cpe:2.3:a:acme:widget:1.4.2:*:*:*:*:*:*:*
//
// The version part may be "*" (every version) or "-" (no version, the
// affected set is expressed through range bounds instead).
func ParseCPE(criteria string) (vendor, product, version string, ok bool) {
	parts := splitCPE(criteria)
	if len(parts) < 6 || parts[0] != "cpe" || parts[1] != "2.3" {
		return "", "", "", false
	}

	vendor = unescapeCPE(parts[3])
	product = unescapeCPE(parts[4])
	version = unescapeCPE(parts[5])

	if vendor == "" || product == "" {
		return "", "", "", false
	}
	return vendor, product, version, true
}

// splitCPE splits on ":" while honoring backslash-escaped colons inside a
// component.
func splitCPE(criteria string) []string {
	parts := []string{}
	var current strings.Builder
	escaped := false

	for _, r := range criteria {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case r == '\\':
			current.WriteRune(r)
			escaped = true
		case r == ':':
			parts = append(parts, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	return append(parts, current.String())
}

func unescapeCPE(s string) string {
	replacer := strings.NewReplacer(`\:`, ":", `\*`, "*", `\\`, `\`)
	return replacer.Replace(s)
}
