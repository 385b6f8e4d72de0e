package importer

import "regexp"

// SanitizeHTML is a minimal, best-effort filter for provider-supplied rich
// text: it strips <script> elements, inline event-handler attributes and
// javascript: URLs. It is NOT a substitute for a dedicated sanitizer and
// renderers must still escape or sandbox this content.
func SanitizeHTML(s string) string {
	s = scriptElemRe.ReplaceAllString(s, "")
	s = scriptTagRe.ReplaceAllString(s, "")
	s = eventAttrRe.ReplaceAllString(s, "")
	s = jsURLRe.ReplaceAllString(s, `$1=$2`)
	return s
}

var (
	scriptElemRe = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)
	scriptTagRe  = regexp.MustCompile(`(?i)</?script\b[^>]*>`)
	eventAttrRe  = regexp.MustCompile(`(?i)\s+on\w+\s*=\s*("[^"]*"|'[^']*'|[^\s>]+)`)
	jsURLRe      = regexp.MustCompile(`(?i)(href|src)\s*=\s*(["']?)\s*javascript:[^"'>\s]*`)
)
