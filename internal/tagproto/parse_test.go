package tagproto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/loom/api"
)

func TestParse_SingleWrite(t *testing.T) {
	res := Parse(`<write path="src/a.ts" description="">export const x=1;</write>ok`)

	require.Len(t, res.Operations, 1)
	assert.Equal(t, api.Write{Path: "src/a.ts", Content: "export const x=1;"}, res.Operations[0])
	assert.Equal(t, "ok", res.ChatContent)
	assert.Empty(t, res.Problems)
}

func TestParse_WriteWithFramingNewlines(t *testing.T) {
	res := Parse("<write path=\"main.go\" description=\"entry\">\npackage main\n</write>")

	require.Len(t, res.Operations, 1)
	w := res.Operations[0].(api.Write)
	assert.Equal(t, "package main", w.Content)
	assert.Equal(t, "entry", w.Description)
}

func TestParse_ProseAroundTags(t *testing.T) {
	res := Parse("Sure, updating now.\n<delete path=\"old.txt\"></delete>\nDone.")

	require.Len(t, res.Operations, 1)
	assert.Equal(t, api.Delete{Path: "old.txt"}, res.Operations[0])
	assert.Equal(t, "Sure, updating now.\n\nDone.", res.ChatContent)
}

func TestParse_ThinkingStripped(t *testing.T) {
	res := Parse("<think>let me reason about this</think>answer")

	assert.Empty(t, res.Operations)
	assert.Equal(t, "answer", res.ChatContent)
}

func TestParse_OperationOrderPreserved(t *testing.T) {
	res := Parse(`<delete path="a"></delete><rename from="b" to="c"></rename><write path="d" description="">x</write>`)

	require.Len(t, res.Operations, 3)
	assert.Equal(t, api.OpDelete, res.Operations[0].Kind())
	assert.Equal(t, api.OpRename, res.Operations[1].Kind())
	assert.Equal(t, api.OpWrite, res.Operations[2].Kind())
}

func TestParse_ChatSummary(t *testing.T) {
	res := Parse("<chat-summary> Added login page </chat-summary>hello")

	assert.Equal(t, "Added login page", res.ChatSummary)
	assert.Equal(t, "hello", res.ChatContent)
	require.Len(t, res.Operations, 1)
	assert.Equal(t, api.SetSummary{Text: "Added login page"}, res.Operations[0])
}

func TestParse_LastSummaryWins(t *testing.T) {
	res := Parse("<chat-summary>first</chat-summary><chat-summary>second</chat-summary>")

	assert.Equal(t, "second", res.ChatSummary)
	assert.Len(t, res.Operations, 2)
}

func TestParse_AddDependency(t *testing.T) {
	res := Parse(`<add-dependency packages="react react-dom"></add-dependency>`)

	require.Len(t, res.Operations, 1)
	assert.Equal(t, api.AddDependency{Packages: []string{"react", "react-dom"}}, res.Operations[0])
}

func TestParse_Command(t *testing.T) {
	res := Parse(`<command type="restart"></command>`)

	require.Len(t, res.Operations, 1)
	assert.Equal(t, api.RunCommand{Type: api.CommandRestart}, res.Operations[0])
}

func TestParse_UnknownCommandTypeVerbatim(t *testing.T) {
	raw := `<command type="explode"></command>`
	res := Parse(raw)

	assert.Empty(t, res.Operations)
	assert.Equal(t, raw, res.ChatContent)
	require.Len(t, res.Problems, 1)
	assert.Equal(t, ProblemParse, res.Problems[0].Kind)
}

func TestParse_UnknownTagVerbatim(t *testing.T) {
	raw := `<frobnicate path="x"></frobnicate> hi`
	res := Parse(raw)

	assert.Empty(t, res.Operations)
	assert.Equal(t, raw, res.ChatContent)
}

func TestParse_MalformedAttributeVerbatim(t *testing.T) {
	raw := `<write path=src/a.ts>body</write>`
	res := Parse(raw)

	assert.Empty(t, res.Operations)
	assert.Equal(t, raw, res.ChatContent)
}

func TestParse_MissingWriteBodyIsApplyProblem(t *testing.T) {
	res := Parse(`<write path="a.txt" description="">rest of response`)

	assert.Empty(t, res.Operations, "a missing body must never become an empty-file write")
	require.Len(t, res.Problems, 1)
	assert.Equal(t, ProblemApply, res.Problems[0].Kind)
	assert.Equal(t, "write", res.Problems[0].Tag)
	// The unterminated tag stays verbatim so the author can see it.
	assert.Equal(t, `<write path="a.txt" description="">rest of response`, res.ChatContent)
}

func TestParse_MalformedTagDoesNotAbortRest(t *testing.T) {
	res := Parse(`<delete></delete><write path="a" description="">1</write>`)

	require.Len(t, res.Operations, 1)
	assert.Equal(t, api.Write{Path: "a", Content: "1"}, res.Operations[0])
	require.Len(t, res.Problems, 1)
	assert.Contains(t, res.ChatContent, "<delete></delete>")
}

func TestParse_DuplicateDeletes(t *testing.T) {
	res := Parse(`<delete path="x"></delete><delete path="x"></delete>`)

	assert.Len(t, res.Operations, 2)
}

func TestParse_AttributeValueWithGreaterThan(t *testing.T) {
	res := Parse(`<write path="a" description="x > y">body</write>`)

	require.Len(t, res.Operations, 1)
	w := res.Operations[0].(api.Write)
	assert.Equal(t, "x > y", w.Description)
	assert.Equal(t, "body", w.Content)
}

func TestParse_BodyWithAngleBrackets(t *testing.T) {
	res := Parse(`<write path="a.html" description="">` + "<div>hi</div>" + `</write>`)

	require.Len(t, res.Operations, 1)
	assert.Equal(t, "<div>hi</div>", res.Operations[0].(api.Write).Content)
}

func TestParse_LiteralLessThanInProse(t *testing.T) {
	res := Parse("because 1 < 2, nothing changes")

	assert.Empty(t, res.Operations)
	assert.Equal(t, "because 1 < 2, nothing changes", res.ChatContent)
}

func TestSerialize_RoundTrip(t *testing.T) {
	ops := []api.Operation{
		api.Delete{Path: "stale.ts"},
		api.Rename{From: "old.ts", To: "new.ts"},
		api.Write{Path: "src/app.ts", Content: "export {};\n", Description: "app shell"},
		api.AddDependency{Packages: []string{"zod", "uuid"}},
		api.RunCommand{Type: api.CommandRebuild},
		api.SetSummary{Text: "Bootstrapped app"},
	}

	res := Parse(Serialize(ops))
	require.Empty(t, res.Problems)
	assert.Equal(t, ops, res.Operations)

	// A second round trip is a fixed point.
	again := Parse(Serialize(res.Operations))
	assert.Equal(t, res.Operations, again.Operations)
}

func TestParse_EmptyInput(t *testing.T) {
	res := Parse("")

	assert.Empty(t, res.Operations)
	assert.Empty(t, res.ChatContent)
	assert.Empty(t, res.ChatSummary)
}
