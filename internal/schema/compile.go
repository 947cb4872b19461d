// Package schema stores and serves versioned per-industry validation
// schemas.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/feelens/feelens-core/internal/model"
)

// Compiled pairs an industry schema row with its compiled structural
// validators. Requiredness is deliberately not compiled in: the validators
// implement the stricter present-and-non-empty semantics themselves, on top
// of the per-pricing-model required map.
type Compiled struct {
	*model.IndustrySchema
	FeeBreakdown *jsonschema.Schema
	Context      *jsonschema.Schema
}

// Compile builds the structural validators for both property bags.
func Compile(s *model.IndustrySchema) (*Compiled, error) {
	fb, err := compileObject(s.IndustryKey, "fee_breakdown", s.FeeBreakdownSchema)
	if err != nil {
		return nil, err
	}
	cx, err := compileObject(s.IndustryKey, "context", s.ContextSchema)
	if err != nil {
		return nil, err
	}
	return &Compiled{IndustrySchema: s, FeeBreakdown: fb, Context: cx}, nil
}

func compileObject(industryKey, name string, obj model.ObjectSchema) (*jsonschema.Schema, error) {
	structural := obj
	structural.Required = nil

	raw, err := json.Marshal(structural)
	if err != nil {
		return nil, eris.Wrapf(err, "schema: marshal %s schema", name)
	}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := fmt.Sprintf("https://feelens.schemas.local/%s/%s.schema.json", industryKey, name)
	if err := c.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, eris.Wrapf(err, "schema: load %s schema", name)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, eris.Wrapf(err, "schema: compile %s schema", name)
	}
	return compiled, nil
}
