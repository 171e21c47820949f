package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_EmptyManifest(t *testing.T) {
	merged, changed, err := Merge("", []string{"react", "zod"})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"react", "zod"}, Packages(merged))
}

func TestMerge_PreservesPinnedVersions(t *testing.T) {
	src := `{"name":"app","dependencies":{"react":"^18.2.0"}}`

	merged, changed, err := Merge(src, []string{"react", "lodash"})
	require.NoError(t, err)
	assert.True(t, changed)

	assert.Contains(t, merged, `"react": "^18.2.0"`)
	assert.Contains(t, merged, `"lodash": "latest"`)
	assert.Contains(t, merged, `"name": "app"`)
}

func TestMerge_NoOpWhenAllPresent(t *testing.T) {
	src := `{"dependencies":{"react":"^18.2.0"}}`

	merged, changed, err := Merge(src, []string{"react"})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, src, merged, "unchanged manifest is returned verbatim")
}

func TestMerge_SkipsEmptyNames(t *testing.T) {
	_, changed, err := Merge("{}", []string{""})
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestMerge_RejectsNonObject(t *testing.T) {
	_, _, err := Merge(`[1,2,3]`, []string{"react"})
	assert.Error(t, err)
}

func TestMerge_RejectsInvalidJSON(t *testing.T) {
	_, _, err := Merge(`{"dependencies":`, []string{"react"})
	assert.Error(t, err)
}

func TestPackages_MissingOrBroken(t *testing.T) {
	assert.Nil(t, Packages(`{"name":"app"}`))
	assert.Nil(t, Packages(`not json`))
}
