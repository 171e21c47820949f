// Package api defines the public data model of the loom build engine:
// the typed operations extracted from agent responses, the change set
// batching rules, and the report types returned by synchronization.
package api

// OpKind discriminates the Operation union.
type OpKind string

const (
	OpWrite         OpKind = "write"
	OpRename        OpKind = "rename"
	OpDelete        OpKind = "delete"
	OpAddDependency OpKind = "add-dependency"
	OpRunCommand    OpKind = "command"
	OpSetSummary    OpKind = "chat-summary"
)

// CommandType enumerates the project-level commands an agent may request.
// Commands are parsed and journaled, never executed by the engine.
type CommandType string

const (
	CommandRebuild CommandType = "rebuild"
	CommandRestart CommandType = "restart"
	CommandRefresh CommandType = "refresh"
)

// ValidCommandType reports whether s is a recognized command type.
func ValidCommandType(s string) bool {
	switch CommandType(s) {
	case CommandRebuild, CommandRestart, CommandRefresh:
		return true
	}
	return false
}

// Operation is one typed file mutation (or project directive) extracted
// from an agent response. Operations are immutable once parsed.
type Operation interface {
	Kind() OpKind
}

// Write replaces the full content of a file.
type Write struct {
	Path        string `json:"path"`
	Content     string `json:"content"`
	Description string `json:"description,omitempty"`
}

// Rename moves a file from one path to another.
type Rename struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Delete removes a file.
type Delete struct {
	Path string `json:"path"`
}

// AddDependency requests packages be added to the project manifest.
type AddDependency struct {
	Packages []string `json:"packages"`
}

// RunCommand requests a project-level command (rebuild/restart/refresh).
type RunCommand struct {
	Type CommandType `json:"type"`
}

// SetSummary carries the short label describing the whole turn.
type SetSummary struct {
	Text string `json:"text"`
}

func (Write) Kind() OpKind         { return OpWrite }
func (Rename) Kind() OpKind        { return OpRename }
func (Delete) Kind() OpKind        { return OpDelete }
func (AddDependency) Kind() OpKind { return OpAddDependency }
func (RunCommand) Kind() OpKind    { return OpRunCommand }
func (SetSummary) Kind() OpKind    { return OpSetSummary }
