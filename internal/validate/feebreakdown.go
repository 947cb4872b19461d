package validate

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/feelens/feelens-core/internal/model"
	"github.com/feelens/feelens-core/internal/schema"
)

// CentTolerance is the rounding slack allowed when comparing money amounts.
const CentTolerance = 0.005

// FeeBreakdown validates a fee-breakdown object against the industry schema
// and the pricing-model rules. Nil result means the breakdown is valid.
func FeeBreakdown(cs *schema.Compiled, pricingModel model.PricingModel, fb map[string]any) FieldErrors {
	fe := FieldErrors{}

	if !model.ValidPricingModel(pricingModel) {
		fe.Add("pricing_model", fmt.Sprintf("unknown pricing model %q", pricingModel))
		return fe
	}
	if fb == nil {
		fb = map[string]any{}
	}

	// Per-pricing-model required fields, present and non-empty.
	for _, field := range cs.RequiredFieldsFor(pricingModel) {
		if isEmpty(fb[field]) {
			fe.Add(field, "required for pricing model "+string(pricingModel))
		}
	}

	// Structural checks from the declared properties.
	if err := cs.FeeBreakdown.Validate(toJSONValue(fb)); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			collectSchemaErrors(fe, verr)
		} else {
			fe.Add("", err.Error())
		}
	}

	// Numeric invariants apply to every present numeric field, declared or
	// not.
	for field, value := range fb {
		num, ok := asNumber(value)
		if !ok {
			continue
		}
		if math.IsNaN(num) || math.IsInf(num, 0) {
			fe.Add(field, "must be a finite number")
			continue
		}
		if num < 0 {
			fe.Add(field, "must not be negative")
			continue
		}
		if isPercentField(cs, field) && num > 100 {
			fe.Add(field, "must not exceed 100")
		}
	}

	validateDisbursements(fe, fb)

	// Undeclared fields pass through unless the schema forbids them.
	if cs.FeeBreakdownSchema.AdditionalProperties != nil && !*cs.FeeBreakdownSchema.AdditionalProperties {
		for field := range fb {
			if _, declared := cs.FeeBreakdownSchema.Properties[field]; !declared {
				fe.Add(field, "field is not allowed")
			}
		}
	}

	// Percentage disclosure rule: the named pricing model must disclose at
	// least one of the listed fields.
	if rule := cs.ValidationRules.ConditionalPctDisclosure; rule != nil && rule.PricingModel == string(pricingModel) {
		found := false
		for _, field := range rule.RequireAny {
			if !isEmpty(fb[field]) {
				found = true
				break
			}
		}
		if !found {
			msg := rule.Error
			if msg == "" {
				msg = "one of " + strings.Join(rule.RequireAny, ", ") + " must be disclosed"
			}
			fe.Add(rule.RequireAny[0], msg)
		}
	}

	if len(fe) == 0 {
		return nil
	}
	return fe
}

// RecomputeDisbursementsTotal returns the authoritative disbursements total:
// the sum of item amounts rounded to the cent. The input's claimed total is
// never trusted.
func RecomputeDisbursementsTotal(fb map[string]any) (float64, bool) {
	items, ok := fb["disbursements_items"].([]any)
	if !ok || len(items) == 0 {
		return 0, false
	}
	var sum float64
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if amount, ok := asNumber(m["amount"]); ok {
			sum += amount
		}
	}
	return math.Round(sum*100) / 100, true
}

func validateDisbursements(fe FieldErrors, fb map[string]any) {
	raw, present := fb["disbursements_items"]
	if !present {
		return
	}
	items, ok := raw.([]any)
	if !ok {
		fe.Add("disbursements_items", "must be a list of items")
		return
	}
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			fe.Add(fmt.Sprintf("disbursements_items[%d]", i), "must be an object")
			continue
		}
		label, _ := m["label"].(string)
		if strings.TrimSpace(label) == "" {
			fe.Add(fmt.Sprintf("disbursements_items[%d].label", i), "label is required")
		} else if len(label) > 120 {
			fe.Add(fmt.Sprintf("disbursements_items[%d].label", i), "label must be at most 120 characters")
		}
		amount, ok := asNumber(m["amount"])
		if !ok || amount <= 0 {
			fe.Add(fmt.Sprintf("disbursements_items[%d].amount", i), "amount must be greater than zero")
		}
	}
}

// isPercentField treats fields named *_pct, and fields whose declared maximum
// is 100, as percentages.
func isPercentField(cs *schema.Compiled, field string) bool {
	if strings.HasSuffix(field, "_pct") {
		return true
	}
	if prop, ok := cs.FeeBreakdownSchema.Properties[field]; ok {
		return prop.Maximum != nil && *prop.Maximum == 100
	}
	return false
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// isEmpty reports whether a value counts as absent for requiredness: nil,
// blank string, or an empty collection.
func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}
