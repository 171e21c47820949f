package api

// ChangeSet is one atomic batch of operations from a single parse pass.
// Operations are grouped by kind and applied strictly deletes → renames →
// writes, so a rename followed by a write to the same destination has the
// write win.
type ChangeSet struct {
	Deletes []Delete `json:"deletes,omitempty"`
	Renames []Rename `json:"renames,omitempty"`
	Writes  []Write  `json:"writes,omitempty"`

	// Deps and Commands are project directives carried alongside the file
	// mutations. They do not touch the overlay; the synchronizer resolves
	// Deps against the project manifest and Commands are surfaced to the
	// caller untouched.
	Deps     []AddDependency `json:"deps,omitempty"`
	Commands []RunCommand    `json:"commands,omitempty"`
}

// BuildChangeSet groups an ordered operation list into a ChangeSet.
// SetSummary operations carry no file mutation and are dropped here;
// the parser surfaces the summary separately.
func BuildChangeSet(ops []Operation) ChangeSet {
	var cs ChangeSet
	for _, op := range ops {
		switch o := op.(type) {
		case Delete:
			cs.Deletes = append(cs.Deletes, o)
		case Rename:
			cs.Renames = append(cs.Renames, o)
		case Write:
			cs.Writes = append(cs.Writes, o)
		case AddDependency:
			cs.Deps = append(cs.Deps, o)
		case RunCommand:
			cs.Commands = append(cs.Commands, o)
		}
	}
	return cs
}

// Empty reports whether the change set carries no operations at all.
func (cs ChangeSet) Empty() bool {
	return len(cs.Deletes) == 0 && len(cs.Renames) == 0 && len(cs.Writes) == 0 &&
		len(cs.Deps) == 0 && len(cs.Commands) == 0
}

// MutationCount returns the number of file mutations in the set.
func (cs ChangeSet) MutationCount() int {
	return len(cs.Deletes) + len(cs.Renames) + len(cs.Writes)
}
