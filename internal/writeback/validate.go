// Package writeback guards the boundary between staged buffers and the
// real project directory: syntax validation and formatting applied to
// agent-written content just before it is materialized.
package writeback

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	sqllang "github.com/smacker/go-tree-sitter/sql"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// ValidationError locates the first syntax error in a staged buffer.
type ValidationError struct {
	Path   string
	Line   uint32 // 0-indexed
	Column uint32 // 0-indexed
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s:%d:%d: syntax error", e.Path, e.Line+1, e.Column+1)
}

// Validate parses a staged buffer with tree-sitter and reports the first
// syntax error, keeping broken agent output from reaching disk. Paths with
// no known language pass through without validation.
func Validate(ctx context.Context, content []byte, path string) error {
	lang := languageForPath(path)
	if lang == nil {
		return nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	root := tree.RootNode()
	if root == nil || !root.HasError() {
		return nil
	}

	if n := firstError(root); n != nil {
		return &ValidationError{
			Path:   path,
			Line:   uint32(n.StartPoint().Row),
			Column: uint32(n.StartPoint().Column),
		}
	}
	return &ValidationError{Path: path}
}

// firstError does a depth-first search for the first ERROR/MISSING node.
func firstError(node *sitter.Node) *sitter.Node {
	if node.IsError() || node.IsMissing() {
		return node
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.HasError() || child.IsError() || child.IsMissing() {
			if found := firstError(child); found != nil {
				return found
			}
		}
	}
	return nil
}

// languageForPath maps file extensions to tree-sitter languages.
func languageForPath(path string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return golang.GetLanguage()
	case ".py":
		return python.GetLanguage()
	case ".js", ".jsx":
		return javascript.GetLanguage()
	case ".ts", ".tsx":
		return typescript.GetLanguage()
	case ".sql":
		return sqllang.GetLanguage()
	default:
		return nil
	}
}
