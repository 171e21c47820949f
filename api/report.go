package api

// PendingSnapshot is a read-only, relative-path view of a project's staged
// state, used for synchronization and UI display (e.g. "modified" badges).
type PendingSnapshot struct {
	Writes  []string `json:"writes"`
	Deletes []string `json:"deletes"`
}

// Empty reports whether nothing is staged.
func (s PendingSnapshot) Empty() bool {
	return len(s.Writes) == 0 && len(s.Deletes) == 0
}

// SyncFailure records one path whose real I/O (or pre-sync check) failed.
type SyncFailure struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// SyncReport aggregates the outcome of one disk synchronization pass.
// Failures never abort the batch; because writes and removals are
// idempotent, a retried sync after a partial failure converges.
type SyncReport struct {
	Written []string      `json:"written,omitempty"`
	Removed []string      `json:"removed,omitempty"`
	Failed  []SyncFailure `json:"failed,omitempty"`
}

// Ok reports whether every path synchronized cleanly.
func (r SyncReport) Ok() bool { return len(r.Failed) == 0 }

// TurnResult is handed to the turn callback after one parse+apply+sync
// cycle, for transcript and file-tree rendering.
type TurnResult struct {
	ChatContent string      `json:"chat_content"`
	ChatSummary string      `json:"chat_summary,omitempty"`
	Operations  []Operation `json:"operations,omitempty"`
}
