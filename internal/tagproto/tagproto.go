// Package tagproto implements the tag protocol spoken by app-building
// agents: a small set of XML-ish tags embedded in natural-language
// responses, each describing one file mutation or project directive.
//
// Parsing is a single pass over the response text. A tag becomes an
// operation only when it fully matches the grammar (matched delimiters,
// required attributes present); anything else is left verbatim in the
// chat content so the author can see the raw text. The parser performs
// no I/O and has no side effects.
package tagproto

import (
	"fmt"

	"github.com/agentic-research/loom/api"
)

// ProblemKind classifies parse-time problems.
type ProblemKind string

const (
	// ProblemParse marks a malformed tag that was left verbatim in the
	// chat content. Non-fatal; no operation is emitted.
	ProblemParse ProblemKind = "parse"
	// ProblemApply marks a structurally recognized tag that cannot become
	// a safe operation, e.g. a write whose body is genuinely missing.
	ProblemApply ProblemKind = "apply"
)

// Problem describes one tag that did not produce an operation.
type Problem struct {
	Kind   ProblemKind
	Tag    string
	Detail string
}

func (p Problem) Error() string {
	return fmt.Sprintf("%s: <%s>: %s", p.Kind, p.Tag, p.Detail)
}

// Result is the outcome of parsing one agent response.
type Result struct {
	// ChatContent is the response text with all recognized tags and
	// thinking asides removed. Malformed tags remain verbatim.
	ChatContent string
	// ChatSummary is the last chat-summary seen, empty if absent.
	ChatSummary string
	// Operations lists the typed operations in the order their tags
	// appeared in the response.
	Operations []api.Operation
	// Problems lists tags that were recognized but rejected, and writes
	// whose bodies were missing. Never fatal.
	Problems []Problem
}
