// Package manifest resolves add-dependency operations against the
// project's package.json: requested packages are merged into the
// dependencies object so the staged manifest syncs like any other write.
package manifest

import (
	"fmt"
	"sort"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// FileName is the manifest the engine maintains.
const FileName = "package.json"

// versionPlaceholder is recorded for newly added packages; the project's
// package manager resolves the concrete version on install.
const versionPlaceholder = "latest"

// Merge adds the given packages to the dependencies object of a
// package.json document. content may be empty, in which case a minimal
// manifest is created. Packages already present keep their pinned
// versions. The merged document is returned re-rendered; changed reports
// whether anything was added.
func Merge(content string, packages []string) (merged string, changed bool, err error) {
	var root any
	if content == "" {
		root = map[string]any{}
	} else {
		root, err = oj.ParseString(content)
		if err != nil {
			return "", false, fmt.Errorf("parse %s: %w", FileName, err)
		}
	}

	obj, ok := root.(map[string]any)
	if !ok {
		return "", false, fmt.Errorf("%s: top-level value is not an object", FileName)
	}

	deps := lookupDeps(root)
	if deps == nil {
		deps = map[string]any{}
		obj["dependencies"] = deps
	}

	for _, pkg := range packages {
		if pkg == "" {
			continue
		}
		if _, present := deps[pkg]; present {
			continue
		}
		deps[pkg] = versionPlaceholder
		changed = true
	}
	if !changed {
		return content, false, nil
	}

	return oj.JSON(root, &oj.Options{Indent: 2, Sort: true}) + "\n", true, nil
}

// Packages returns the sorted dependency names of a manifest document,
// or nil when there are none.
func Packages(content string) []string {
	root, err := oj.ParseString(content)
	if err != nil {
		return nil
	}
	deps := lookupDeps(root)
	if len(deps) == 0 {
		return nil
	}
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// lookupDeps finds the dependencies object via JSONPath.
func lookupDeps(root any) map[string]any {
	results := jp.C("dependencies").Get(root)
	if len(results) == 0 {
		return nil
	}
	deps, ok := results[0].(map[string]any)
	if !ok {
		return nil
	}
	return deps
}
