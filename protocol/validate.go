package protocol

import (
	"fmt"
	"strings"

	"github.com/apilink-dev/handshake/types"
)

// MissingFields returns the IDs of every module-required field that is
// absent or empty on the credential, not just the first. Visibility
// conditions are honored: a field hidden by its VisibleWhen dependency is
// not demanded.
func MissingFields(m Module, cred *types.Credential) []string {
	var missing []string
	var fields map[string]any
	if cred != nil {
		fields = cred.Fields
	}
	for _, def := range m.RequiredFields() {
		if !def.Visible(fields) {
			continue
		}
		if isEmptyValue(fields[def.ID]) {
			missing = append(missing, def.ID)
		}
	}
	return missing
}

// ValidationMessage renders a missing-field list into the message carried
// by a terminal error step.
func ValidationMessage(missing []string) string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", "))
}

func isEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
