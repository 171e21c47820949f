package tagproto

import (
	"strings"
	"testing"
)

func FuzzParse(f *testing.F) {
	// Seed corpus
	f.Add(`<write path="a.ts" description="">body</write>`)
	f.Add(`<think>x</think>prose<delete path="a"></delete>`)
	f.Add(`<write path="a">`)
	f.Add(`<<write<write path="`)
	f.Add(`prose with < and > but no tags`)
	f.Add(`<rename from="a" to="b"></rename><chat-summary>s</chat-summary>`)

	f.Fuzz(func(t *testing.T, text string) {
		res := Parse(text)

		// The parser must never lose prose: every byte of input that is
		// not part of a recognized tag survives into ChatContent, so the
		// output can never exceed the input.
		if len(res.ChatContent) > len(text) {
			t.Fatalf("chat content grew: %d > %d", len(res.ChatContent), len(text))
		}

		// Recognized operations must survive a serialize/parse round trip.
		again := Parse(Serialize(res.Operations))
		if len(again.Operations) != len(res.Operations) {
			t.Fatalf("round trip changed operation count: %d != %d",
				len(again.Operations), len(res.Operations))
		}

		// Input without '<' is pure prose.
		if !strings.ContainsRune(text, '<') && res.ChatContent != text {
			t.Fatalf("prose-only input mutated: %q != %q", res.ChatContent, text)
		}
	})
}
