package model

import "time"

// SchemaProperty describes one typed field in a fee-breakdown or context
// schema. Mirrors the JSON Schema subset the platform stores per industry.
type SchemaProperty struct {
	Type        string                    `json:"type"`
	Title       string                    `json:"title,omitempty"`
	Description string                    `json:"description,omitempty"`
	Enum        []string                  `json:"enum,omitempty"`
	Minimum     *float64                  `json:"minimum,omitempty"`
	Maximum     *float64                  `json:"maximum,omitempty"`
	Items       *SchemaProperty           `json:"items,omitempty"`
	Properties  map[string]SchemaProperty `json:"properties,omitempty"`
}

// ObjectSchema is the typed property bag interpreted by the validators.
type ObjectSchema struct {
	Type                 string                    `json:"type"`
	Required             []string                  `json:"required,omitempty"`
	Properties           map[string]SchemaProperty `json:"properties"`
	AdditionalProperties *bool                     `json:"additionalProperties,omitempty"`
}

// PctDisclosureRule requires at least one of RequireAny to be present when
// the submission uses the named pricing model.
type PctDisclosureRule struct {
	PricingModel string   `json:"pricing_model"`
	RequireAny   []string `json:"require_any"`
	Error        string   `json:"error,omitempty"`
}

// ValidationRules carries the industry-specific rules layered on top of the
// structural schemas.
type ValidationRules struct {
	PricingModelRequiredFields map[string][]string `json:"pricing_model_required_fields,omitempty"`
	ConditionalPctDisclosure   *PctDisclosureRule  `json:"conditional_requires_pct_disclosure,omitempty"`
	MaxPlausibleTotal          float64             `json:"max_plausible_total,omitempty"`
	QuotePaidMismatchPct       float64             `json:"quote_paid_mismatch_pct,omitempty"`
}

// IndustrySchema is one versioned row of the schema registry. Exactly one
// row per industry key is active at a time.
type IndustrySchema struct {
	ID                 string          `json:"id"`
	IndustryKey        string          `json:"industry_key"`
	DisplayName        string          `json:"display_name,omitempty"`
	Version            int             `json:"version"`
	FeeBreakdownSchema ObjectSchema    `json:"fee_breakdown_schema"`
	ContextSchema      ObjectSchema    `json:"context_schema"`
	ValidationRules    ValidationRules `json:"validation_rules"`
	IsActive           bool            `json:"is_active"`
	CreatedAt          time.Time       `json:"created_at"`
}

// RequiredFieldsFor returns the fee-breakdown fields mandatory under the
// given pricing model, combined with the schema's unconditional required
// list.
func (s *IndustrySchema) RequiredFieldsFor(m PricingModel) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range s.FeeBreakdownSchema.Required {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	for _, f := range s.ValidationRules.PricingModelRequiredFields[string(m)] {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}
