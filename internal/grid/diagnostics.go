package grid

import "fmt"

// DiagnosticCode identifies a recovered pipeline condition
type DiagnosticCode string

const (
	DiagUnresolvableHeader   DiagnosticCode = "unresolvable_header"
	DiagUnresolvableKeyValue DiagnosticCode = "unresolvable_key_value"
	DiagRowIndexConflict     DiagnosticCode = "row_index_conflict"
	DiagRowClassification    DiagnosticCode = "row_classification_ambiguous"
	DiagPropagationGap       DiagnosticCode = "propagation_gap"
	DiagDuplicateHeaderKey   DiagnosticCode = "duplicate_header_key"
	DiagGroupConstantNoise   DiagnosticCode = "group_constant_noise"
)

// Diagnostic records one recovered condition. The pipeline never raises for
// classification ambiguity; everything recoverable lands here so callers
// wanting strict mode can treat a non-empty list as failure.
type Diagnostic struct {
	Code    DiagnosticCode `json:"code"`
	Message string         `json:"message"`
	GroupID string         `json:"group_id,omitempty"`
	BlockID string         `json:"block_id,omitempty"`
}

func (d Diagnostic) String() string {
	if d.GroupID != "" {
		return fmt.Sprintf("%s [%s]: %s", d.Code, d.GroupID, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Code, d.Message)
}

// diagnostics accumulates recovered conditions across pipeline stages
type diagnostics struct {
	entries []Diagnostic
}

func (d *diagnostics) add(code DiagnosticCode, groupID, format string, args ...any) {
	d.entries = append(d.entries, Diagnostic{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		GroupID: groupID,
	})
}

func (d *diagnostics) addBlock(code DiagnosticCode, blockID, format string, args ...any) {
	d.entries = append(d.entries, Diagnostic{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		BlockID: blockID,
	})
}
