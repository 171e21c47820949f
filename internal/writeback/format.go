package writeback

import (
	"strings"

	"mvdan.cc/gofumpt/format"
)

// FormatBuffer normalizes a staged buffer before it reaches disk.
// Go sources are run through gofumpt; everything else passes through
// unchanged, as does Go source that fails to format.
func FormatBuffer(content []byte, path string) []byte {
	if !strings.HasSuffix(path, ".go") {
		return content
	}
	formatted, err := format.Source(content, format.Options{})
	if err != nil {
		return content
	}
	return formatted
}
