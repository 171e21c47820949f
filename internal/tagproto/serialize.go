package tagproto

import (
	"fmt"
	"strings"

	"github.com/agentic-research/loom/api"
)

// Serialize renders operations back into the wire grammar. Parsing the
// result yields the same ordered operation list (round-trip property);
// attribute names and whole-file-replace semantics are load-bearing for
// any agent prompted against this protocol.
func Serialize(ops []api.Operation) string {
	var b strings.Builder
	for _, op := range ops {
		switch o := op.(type) {
		case api.Write:
			// Framing newlines around the body are stripped on parse, so
			// content keeps its exact bytes through a round trip even when
			// it ends in a newline itself.
			fmt.Fprintf(&b, "<write path=%q description=%q>\n%s\n</write>", o.Path, o.Description, o.Content)
		case api.Rename:
			fmt.Fprintf(&b, `<rename from=%q to=%q></rename>`, o.From, o.To)
		case api.Delete:
			fmt.Fprintf(&b, `<delete path=%q></delete>`, o.Path)
		case api.AddDependency:
			fmt.Fprintf(&b, `<add-dependency packages=%q></add-dependency>`, strings.Join(o.Packages, " "))
		case api.RunCommand:
			fmt.Fprintf(&b, `<command type=%q></command>`, o.Type)
		case api.SetSummary:
			fmt.Fprintf(&b, `<chat-summary>%s</chat-summary>`, o.Text)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
