package epmod

// Public wire types for the embedding API. These are standalone structs
// with no internal imports; conversion helpers live in epmod.go, the only
// file that sees both sides of the boundary.

// Operation is one entry of a batch.
type Operation struct {
	// Op is the registered operation id, e.g. "people.update".
	Op string `json:"op"`
	// Params are the operation's parameters, validated against its schema.
	Params map[string]any `json:"params,omitempty"`
	// Target selects the objects to act on: "all", a name, a list of
	// names, or {"field": ..., "equals": ...}. Nil means the operation
	// default.
	Target any `json:"target,omitempty"`
}

// Batch is an ordered operation sequence executed against one document.
type Batch struct {
	Operations []Operation `json:"operations"`
	// Apply persists the mutations; the default is a dry run that leaves
	// the document untouched.
	Apply bool `json:"apply,omitempty"`
	// OutputPath overrides the persist destination in apply mode.
	OutputPath string `json:"output_path,omitempty"`
	// StrictAbort skips the rest of the batch after the first failure.
	StrictAbort bool `json:"strict_abort,omitempty"`
}

// Change is one field-level mutation.
type Change struct {
	Object string `json:"object_name"`
	Field  string `json:"field"`
	Old    any    `json:"old_value"`
	New    any    `json:"new_value"`
}

// Result is one per-operation outcome: "applied", "skipped", or "failed".
type Result struct {
	Op          string   `json:"op"`
	TargetCount int      `json:"target_count"`
	Outcome     string   `json:"outcome"`
	Changes     []Change `json:"changes,omitempty"`
	Error       *Error   `json:"error,omitempty"`
}

// Error is a classified failure: "unknown_operation", "schema_validation",
// "target_not_found", "mutation", or "persist".
type Error struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Report is the aggregate outcome of one batch. Status is "all_ok",
// "partial", or "all_failed".
type Report struct {
	BatchID       string   `json:"batch_id"`
	Status        string   `json:"status"`
	Mode          string   `json:"mode"`
	Results       []Result `json:"results"`
	PersistedPath string   `json:"persisted_path,omitempty"`
	PersistError  *Error   `json:"persist_error,omitempty"`
}
