package router

// defaultIdempotentTools lists tool names (matched against a namespaced
// name's original suffix) conventionally safe to retry without side
// effects, ported from the teacher's tool-output pipe idempotent-tools
// allowlist (internal/pipes/tool_output/types.go). Used to single-flight
// concurrent identical calls rather than issuing them to the upstream
// twice.
var defaultIdempotentTools = map[string]bool{
	"read_file":       true,
	"search_code":     true,
	"list_directory":  true,
	"grep_search":     true,
	"list_dir":        true,
	"semantic_search": true,
}

// IdempotentSet resolves a configured idempotent-tool allowlist (original,
// un-namespaced names) into a lookup set that always includes the built-in
// defaults.
type IdempotentSet struct {
	names map[string]bool
}

// NewIdempotentSet builds a set from the built-in defaults plus any
// configured names in extra.
func NewIdempotentSet(extra []string) *IdempotentSet {
	names := make(map[string]bool, len(defaultIdempotentTools)+len(extra))
	for k := range defaultIdempotentTools {
		names[k] = true
	}
	for _, n := range extra {
		names[n] = true
	}
	return &IdempotentSet{names: names}
}

// IsIdempotent reports whether originalName (the tool's name with its
// upstream namespace already stripped) is safe to single-flight.
func (s *IdempotentSet) IsIdempotent(originalName string) bool {
	return s.names[originalName]
}
