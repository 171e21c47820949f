package tagproto

import "strings"

// Tag names with a meaningful body. All other recognized tags require an
// empty (whitespace-only) body between the open and close delimiters.
var bodyTags = map[string]bool{
	"write":        true,
	"chat-summary": true,
	"think":        true,
}

var knownTags = map[string]bool{
	"write":          true,
	"rename":         true,
	"delete":         true,
	"add-dependency": true,
	"command":        true,
	"chat-summary":   true,
	"think":          true,
}

// rawTag is one fully or partially matched tag occurrence.
type rawTag struct {
	name    string
	attrs   map[string]string
	body    string
	hasBody bool // closing delimiter found
	openEnd int  // offset just past the '>' of the open tag
	end     int  // offset just past the closing delimiter (openEnd if !hasBody)
}

// scanTag attempts to match a known tag starting at text[i] (which must be
// '<'). It returns ok=false when the text at i is not a well-formed open
// tag with a known name; the caller then treats the '<' as literal text.
//
// For body-carrying tags a missing close delimiter still returns ok=true
// with hasBody=false, so the caller can distinguish "not a tag" from
// "write with a missing body".
func scanTag(text string, i int) (rawTag, bool) {
	var t rawTag
	j := i + 1

	// Tag name: lowercase letters and hyphens.
	start := j
	for j < len(text) && (isLower(text[j]) || text[j] == '-') {
		j++
	}
	t.name = text[start:j]
	if !knownTags[t.name] {
		return t, false
	}

	attrs, j, ok := scanAttrs(text, j)
	if !ok {
		return t, false
	}
	t.attrs = attrs
	t.openEnd = j
	t.end = j

	closing := "</" + t.name + ">"
	rel := strings.Index(text[j:], closing)
	if rel < 0 {
		if bodyTags[t.name] {
			// Open tag matched but the body never terminates. Surfaced to
			// the caller so a bodyless write is reported, not applied.
			return t, true
		}
		return t, false
	}

	t.body = text[j : j+rel]
	t.hasBody = true
	t.end = j + rel + len(closing)

	if !bodyTags[t.name] && strings.TrimSpace(t.body) != "" {
		// Bodyless tags must have nothing between the delimiters.
		return t, false
	}
	return t, true
}

// scanAttrs parses zero or more key="value" pairs and the terminating '>'.
// Values are quote-delimited, so '>' inside a quoted value does not close
// the tag; an unterminated quote makes the whole tag malformed.
func scanAttrs(text string, j int) (map[string]string, int, bool) {
	attrs := map[string]string{}
	for {
		hadSpace := false
		for j < len(text) && isSpace(text[j]) {
			j++
			hadSpace = true
		}
		if j >= len(text) {
			return nil, j, false
		}
		if text[j] == '>' {
			return attrs, j + 1, true
		}
		if !hadSpace {
			return nil, j, false
		}

		start := j
		for j < len(text) && (isLower(text[j]) || text[j] == '-') {
			j++
		}
		key := text[start:j]
		if key == "" || j >= len(text) || text[j] != '=' {
			return nil, j, false
		}
		j++
		if j >= len(text) || text[j] != '"' {
			return nil, j, false
		}
		j++
		vstart := j
		for j < len(text) && text[j] != '"' {
			j++
		}
		if j >= len(text) {
			return nil, j, false
		}
		attrs[key] = text[vstart:j]
		j++
	}
}

func isLower(c byte) bool { return c >= 'a' && c <= 'z' }

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
