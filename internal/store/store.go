// Package store holds the client-side reactive stores: conversations and
// messages, notifications, and the ephemeral presence/typing/live trackers.
// Each store exclusively owns its state behind its own mutex; cross-store
// reads go through injected accessors, never shared mutable references.
package store

// Result is the boundary shape for async operations: failures are converted
// into a user-facing message instead of propagating as faults.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func ok() Result { return Result{Success: true} }

func fail(msg string) Result { return Result{Success: false, Message: msg} }
