package validate

import (
	"errors"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/feelens/feelens-core/internal/schema"
)

// Context validates industry-specific case attributes against the context
// schema. Additional properties are permissive by default: industries are
// expected to carry free-form attributes.
func Context(cs *schema.Compiled, ctx map[string]any) FieldErrors {
	fe := FieldErrors{}
	if ctx == nil {
		ctx = map[string]any{}
	}

	// Every declared required key must be present and non-null.
	for _, field := range cs.ContextSchema.Required {
		if v, ok := ctx[field]; !ok || v == nil {
			fe.Add(field, "required")
		}
	}

	// Declared types, enums, and numeric bounds.
	if err := cs.Context.Validate(toJSONValue(ctx)); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			collectSchemaErrors(fe, verr)
		} else {
			fe.Add("", err.Error())
		}
	}

	if len(fe) == 0 {
		return nil
	}
	return fe
}
