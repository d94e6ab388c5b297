package types

// FieldKind identifies the value kind of a configuration field.
type FieldKind string

const (
	// FieldText is a plain text input.
	FieldText FieldKind = "text"

	// FieldSecret is a sensitive value that must be masked in any log or
	// debug surface.
	FieldSecret FieldKind = "secret"

	// FieldURL is a URL input.
	FieldURL FieldKind = "url"

	// FieldNumber is a numeric input.
	FieldNumber FieldKind = "number"

	// FieldBoolean is a true/false input.
	FieldBoolean FieldKind = "boolean"

	// FieldSelect is a single choice from a fixed option list.
	FieldSelect FieldKind = "select"

	// FieldJSON is a free-form JSON document.
	FieldJSON FieldKind = "json"

	// FieldTextarea is a multi-line text input such as a PEM key or a
	// command template.
	FieldTextarea FieldKind = "textarea"
)

// FieldOption is one selectable value for a FieldSelect field.
type FieldOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FieldCondition is a declarative visibility dependency: the field is shown
// only when another field holds the given value. It is intentionally not a
// general rule engine.
type FieldCondition struct {
	// Field is the ID of the field this condition depends on.
	Field string `json:"field"`

	// Equals is the value the dependency field must hold.
	Equals any `json:"equals"`
}

// FieldDefinition is module-authored static metadata describing one
// configuration input.
type FieldDefinition struct {
	// ID is the key under which the value is stored in Credential.Fields.
	ID string `json:"id"`

	// Label is the human-readable name shown by UI collaborators.
	Label string `json:"label"`

	// Kind is the value kind of the field.
	Kind FieldKind `json:"kind"`

	// Required indicates the field must be present and non-empty before
	// authentication is attempted.
	Required bool `json:"required"`

	// Default is the value used when the caller supplies none.
	Default any `json:"default,omitempty"`

	// Placeholder is example text shown by UI collaborators for an empty
	// input.
	Placeholder string `json:"placeholder,omitempty"`

	// Options lists the selectable values for FieldSelect fields.
	Options []FieldOption `json:"options,omitempty"`

	// VisibleWhen restricts when the field is shown. Nil means always
	// visible.
	VisibleWhen *FieldCondition `json:"visible_when,omitempty"`
}

// Sensitive reports whether the field's value must be masked before being
// logged or surfaced. Secret fields are always sensitive; other kinds fall
// back to the name heuristic applied by the redact package.
func (f FieldDefinition) Sensitive() bool {
	return f.Kind == FieldSecret
}

// Visible evaluates the field's visibility condition against the supplied
// field values. Fields without a condition are always visible.
func (f FieldDefinition) Visible(fields map[string]any) bool {
	if f.VisibleWhen == nil {
		return true
	}
	return fields[f.VisibleWhen.Field] == f.VisibleWhen.Equals
}
