package tasks

import (
	"strings"

	"github.com/Ting2004/katachi/internal/snapshot"
)

// FromInput converts a create request. Only the effect keys are checked here;
// Catalog.Create validates the rest.
func FromInput(in snapshot.TaskInput) (Task, error) {
	eff, err := ParseEffect(in.Effect)
	if err != nil {
		return Task{}, err
	}
	return Task{Name: in.Name, Effect: eff, Type: Type(strings.ToLower(strings.TrimSpace(in.Type))), Label: in.Label}, nil
}

// PatchFrom converts an update request.
func PatchFrom(in snapshot.TaskPatch) (Patch, error) {
	p := Patch{Name: in.Name, Label: in.Label}
	if in.Effect != nil {
		eff, err := ParseEffect(in.Effect)
		if err != nil {
			return Patch{}, err
		}
		p.Effect = eff
	}
	if in.Type != nil {
		typ, err := ParseType(*in.Type)
		if err != nil {
			return Patch{}, err
		}
		p.Type = &typ
	}
	return p, nil
}
