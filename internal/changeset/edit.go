package changeset

import (
	"encoding/json"
	"fmt"
)

// EditKind tags an Edit.
type EditKind string

const (
	EditNone    EditKind = "unedited"
	EditCleared EditKind = "cleared"
	EditSet     EditKind = "set"
)

// Edit is the user's override for one field.
type Edit struct {
	Kind  EditKind `json:"kind"`
	Value string   `json:"value,omitempty"`
}

// Unedited is the zero override.
func Unedited() Edit { return Edit{Kind: EditNone} }

// Cleared asks apply to empty the field.
func Cleared() Edit { return Edit{Kind: EditCleared} }

// SetTo replaces the proposed value.
func SetTo(value string) Edit { return Edit{Kind: EditSet, Value: value} }

// IsEdited reports whether the user overrode the proposal.
func (e Edit) IsEdited() bool {
	return e.Kind == EditCleared || e.Kind == EditSet
}

// Resolve returns the value the edit stands for.
func (e Edit) Resolve() string {
	if e.Kind == EditSet {
		return e.Value
	}
	return ""
}

// UnmarshalJSON accepts the tagged form and treats a missing kind as
// unedited.
func (e *Edit) UnmarshalJSON(data []byte) error {
	var raw struct {
		Kind  EditKind `json:"kind"`
		Value string   `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Kind {
	case "", EditNone:
		*e = Unedited()
	case EditCleared:
		*e = Cleared()
	case EditSet:
		*e = SetTo(raw.Value)
	default:
		return fmt.Errorf("unknown edit kind %q", raw.Kind)
	}
	return nil
}
