package tests

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/loom/internal/registry"
	"github.com/agentic-research/loom/internal/stagemount"
)

// testFixture bundles the shared state for integration tests: a real
// project directory with seed files, and a journaling registry.
type testFixture struct {
	dir string
	reg *registry.Registry
	p   registry.Project
}

const seedManifest = `{"name":"demo-app","dependencies":{"react":"^18.2.0"}}`

func setup(t *testing.T) *testFixture {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(seedManifest), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "app.tsx"), []byte("export const App = () => null;\n"), 0o644))

	return &testFixture{
		dir: dir,
		reg: registry.New(registry.Options{Journal: true}),
		p:   registry.Project{ID: "demo", Dir: dir},
	}
}

func (f *testFixture) apply(t *testing.T, response string) registry.Turn {
	t.Helper()
	turn, err := f.reg.ApplyTurn(context.Background(), f.p, response, nil)
	require.NoError(t, err)
	return turn
}

func (f *testFixture) readFile(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.dir, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func TestIntegration_ParseApplySync(t *testing.T) {
	fix := setup(t)

	turn := fix.apply(t, `I'll add a login page.
<chat-summary>Add login page</chat-summary>
<think>The form needs validation, so zod comes in too.</think>
<write path="src/pages/login.tsx" description="login form">
export const Login = () => <form />;
</write>
<add-dependency packages="zod"></add-dependency>
<command type="rebuild"></command>
Done!`)

	assert.Equal(t, "Add login page", turn.ChatSummary)
	assert.NotContains(t, turn.ChatContent, "<think>")
	assert.NotContains(t, turn.ChatContent, "<write")
	assert.Contains(t, turn.ChatContent, "I'll add a login page.")
	assert.Contains(t, turn.ChatContent, "Done!")
	assert.Empty(t, turn.Problems)

	report, err := fix.reg.SyncToDisk(context.Background(), fix.p)
	require.NoError(t, err)
	assert.True(t, report.Ok())

	assert.Equal(t, "export const Login = () => <form />;",
		fix.readFile(t, "src/pages/login.tsx"))

	manifest := fix.readFile(t, "package.json")
	assert.Contains(t, manifest, `"react": "^18.2.0"`)
	assert.Contains(t, manifest, `"zod": "latest"`)
}

func TestIntegration_EditsAccumulateAcrossTurns(t *testing.T) {
	fix := setup(t)

	fix.apply(t, `<write path="src/a.ts" description="">export const a = 1;</write>`)
	fix.apply(t, `<rename from="src/a.ts" to="src/b.ts"></rename>`)
	fix.apply(t, `<delete path="src/app.tsx"></delete>`)

	snap := fix.reg.Snapshot(fix.p.ID)
	assert.Equal(t, []string{"src/b.ts"}, snap.Writes)
	assert.ElementsMatch(t, []string{"src/a.ts", "src/app.tsx"}, snap.Deletes)

	report, err := fix.reg.SyncToDisk(context.Background(), fix.p)
	require.NoError(t, err)
	assert.True(t, report.Ok())

	assert.Equal(t, "export const a = 1;", fix.readFile(t, "src/b.ts"))
	assert.NoFileExists(t, filepath.Join(fix.dir, "src", "app.tsx"))
}

func TestIntegration_RenameOfDiskOnlyFileKeepsContent(t *testing.T) {
	fix := setup(t)

	// src/app.tsx exists only on disk; the overlay pulls it through the
	// read delegate before tombstoning.
	turn := fix.apply(t, `<rename from="src/app.tsx" to="src/root.tsx"></rename>`)
	assert.Empty(t, turn.Problems)

	report, err := fix.reg.SyncToDisk(context.Background(), fix.p)
	require.NoError(t, err)
	assert.True(t, report.Ok())

	assert.Equal(t, "export const App = () => null;\n", fix.readFile(t, "src/root.tsx"))
	assert.NoFileExists(t, filepath.Join(fix.dir, "src", "app.tsx"))
}

func TestIntegration_MalformedTagDoesNotAbortTurn(t *testing.T) {
	fix := setup(t)

	turn := fix.apply(t,
		`<write path="ok.txt" description="">fine</write>`+
			`<write path="broken.txt" description="">no closing tag`)

	require.Len(t, turn.Problems, 1)
	assert.Contains(t, turn.Problems[0].Detail, "missing body")
	assert.Contains(t, turn.ChatContent, `<write path="broken.txt"`,
		"the unterminated tag must survive in the chat content")

	snap := fix.reg.Snapshot(fix.p.ID)
	assert.Equal(t, []string{"ok.txt"}, snap.Writes)
}

func TestIntegration_JournalAnswersPathHistory(t *testing.T) {
	fix := setup(t)

	fix.apply(t, `<chat-summary>one</chat-summary><write path="x.txt" description="">1</write>`)
	fix.apply(t, `<chat-summary>two</chat-summary><write path="y.txt" description="">2</write>`)
	fix.apply(t, `<chat-summary>three</chat-summary><write path="x.txt" description="">3</write>`)

	j := fix.reg.Journal(fix.p.ID)
	require.NotNil(t, j)

	turns, err := j.Turns(0)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "three", turns[0].Summary)

	seqs, err := j.TurnsForPath("x.txt")
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 3}, seqs)
}

func TestIntegration_StagedViewOverNFSBackend(t *testing.T) {
	fix := setup(t)

	fix.apply(t, `<write path="src/new.ts" description="">staged</write><delete path="src/app.tsx"></delete>`)

	ov, err := fix.reg.GetOrCreate(fix.p)
	require.NoError(t, err)
	fs := stagemount.New(ov, osfs.New(fix.dir))

	f, err := fs.Open("/src/new.ts")
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "staged", string(data))

	_, err = fs.Open("/src/app.tsx")
	assert.True(t, os.IsNotExist(err), "tombstoned file is hidden in the staged view")

	// Disk untouched until sync.
	assert.FileExists(t, filepath.Join(fix.dir, "src", "app.tsx"))
	assert.NoFileExists(t, filepath.Join(fix.dir, "src", "new.ts"))
}

func TestIntegration_ResetDiscardsWithoutTouchingDisk(t *testing.T) {
	fix := setup(t)

	fix.apply(t, `<write path="src/app.tsx" description="">overwritten</write>`)
	fix.reg.Reset(fix.p.ID)

	assert.True(t, fix.reg.Snapshot(fix.p.ID).Empty())
	assert.Equal(t, "export const App = () => null;\n", fix.readFile(t, "src/app.tsx"))

	report, err := fix.reg.SyncToDisk(context.Background(), fix.p)
	require.NoError(t, err)
	assert.Empty(t, report.Written)
}
