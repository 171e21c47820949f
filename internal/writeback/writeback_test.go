package writeback

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_CleanGo(t *testing.T) {
	src := []byte("package main\n\nfunc main() {}\n")
	assert.NoError(t, Validate(context.Background(), src, "main.go"))
}

func TestValidate_BrokenGo(t *testing.T) {
	src := []byte("package main\n\nfunc main( {}\n")
	err := Validate(context.Background(), src, "main.go")
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "main.go", verr.Path)
}

func TestValidate_BrokenTypeScript(t *testing.T) {
	src := []byte("export const x = {;\n")
	err := Validate(context.Background(), src, "src/app.ts")
	assert.Error(t, err)
}

func TestValidate_UnknownLanguagePassesThrough(t *testing.T) {
	src := []byte("# not a parseable language {{{")
	assert.NoError(t, Validate(context.Background(), src, "README.md"))
}

func TestFormatBuffer_Go(t *testing.T) {
	input := []byte("package main\n\nfunc A()  {\nreturn\n}\n")
	got := FormatBuffer(input, "a.go")
	assert.Equal(t, "package main\n\nfunc A() {\n\treturn\n}\n", string(got))
}

func TestFormatBuffer_NonGoUntouched(t *testing.T) {
	input := []byte("const x =   1")
	assert.Equal(t, input, FormatBuffer(input, "a.ts"))
}

func TestFormatBuffer_InvalidGoUntouched(t *testing.T) {
	input := []byte("package main\n\nfunc broken( {\n")
	assert.Equal(t, input, FormatBuffer(input, "a.go"))
}
