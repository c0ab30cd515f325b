package registry

import "github.com/raaihank/text-pseudonymizer/internal/entity"

// Policy decides which entity types are replaced and how.
type Policy struct {
	Mode Mode
	// Mask enables replacement per known type.
	Mask map[entity.EntityType]bool
	// MaskOther enables replacement of pass-through labels.
	MaskOther bool
}

// MaskAll returns a policy that replaces every known type in the given mode.
func MaskAll(mode Mode) Policy {
	mask := make(map[entity.EntityType]bool)
	for _, t := range entity.KnownTypes() {
		mask[t] = true
	}
	return Policy{Mode: mode, Mask: mask}
}

// Enabled reports whether spans of type t should be replaced.
func (p Policy) Enabled(t entity.EntityType) bool {
	if !t.Known() {
		return p.MaskOther
	}
	return p.Mask[t]
}
