// internal/slots/validator.go
package slots

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"quote-engine/internal/models"
)

// RuleSource supplies the jurisdiction-specific business rules the validator
// enforces. The rate-table snapshot implements it.
type RuleSource interface {
	LimitCeiling(jurisdiction string) (int64, bool)
}

// Result is the outcome of schema and business-rule checks. When Valid is
// false, FieldErrors holds the complete list of missing or violated fields.
type Result struct {
	Valid       bool                    `json:"valid"`
	Request     *models.CoverageRequest `json:"request,omitempty"`
	FieldErrors []models.FieldError     `json:"fieldErrors,omitempty"`
}

// Validator checks merged slot sets against per-coverage schemas. It is a
// pure function over its inputs; the rule source is a read-only snapshot.
type Validator struct {
	rules RuleSource
}

func NewValidator(rules RuleSource) *Validator {
	return &Validator{rules: rules}
}

var jurisdictionPattern = regexp.MustCompile(`^[A-Z]{2}$`)

// Validate runs the structural pass (every required slot present and
// type-correct, all failures reported in one call) and then the business-rule
// pass. Unknown business types are allowed through; they fall back to the
// conservative "other" rate class at resolution time.
func (v *Validator) Validate(coverageType string, slotValues map[string]models.SlotValue) Result {
	var fieldErrors []models.FieldError

	coverage := models.CoverageType(coverageType)
	schema := schemaFor(coverage)
	if schema == nil {
		fieldErrors = append(fieldErrors, models.FieldError{
			Field:   SlotCoverageType,
			Code:    "MISSING_REQUIRED",
			Message: fmt.Sprintf("coverage type is missing or not one of %v", KnownCoverageTypes()),
		})
		// Still check the common slots so one clarification turn can ask
		// for everything at once.
		schema = commonSlots()
	}

	parsed := make(map[string]interface{})

	// Pass 1: structural.
	for name, spec := range schema {
		sv, present := slotValues[name]
		if !present || sv.Value == nil {
			if spec.Required {
				fieldErrors = append(fieldErrors, models.FieldError{
					Field:   name,
					Code:    "MISSING_REQUIRED",
					Message: fmt.Sprintf("%s is required", name),
				})
			} else if spec.Default != nil {
				parsed[name] = spec.Default
			}
			continue
		}

		value, err := coerce(sv.Value, spec)
		if err != nil {
			fieldErrors = append(fieldErrors, models.FieldError{
				Field:   name,
				Code:    "INVALID_TYPE",
				Message: err.Error(),
			})
			continue
		}
		parsed[name] = value
	}

	if len(fieldErrors) > 0 {
		return Result{Valid: false, FieldErrors: fieldErrors}
	}

	// Pass 2: business rules, cross-field.
	fieldErrors = append(fieldErrors, v.businessRules(coverage, parsed)...)
	if len(fieldErrors) > 0 {
		return Result{Valid: false, FieldErrors: fieldErrors}
	}

	return Result{Valid: true, Request: buildRequest(coverage, parsed)}
}

func (v *Validator) businessRules(coverage models.CoverageType, parsed map[string]interface{}) []models.FieldError {
	var errs []models.FieldError

	limit := parsed[SlotCoverageLimit].(int64)
	jurisdiction := parsed[SlotLocation].(string)

	if coverage == models.CoverageLiquorLiability {
		if licensed, _ := parsed[SlotLiquorLicense].(bool); !licensed {
			errs = append(errs, models.FieldError{
				Field:   SlotLiquorLicense,
				Code:    "BUSINESS_RULE_VIOLATION",
				Message: "liquor liability coverage requires a liquor license",
			})
		}
	}

	// Limits above the jurisdiction ceiling are rejected outright rather
	// than priced. An unconfigured jurisdiction is the resolver's concern.
	if ceiling, ok := v.rules.LimitCeiling(jurisdiction); ok && limit > ceiling {
		errs = append(errs, models.FieldError{
			Field:   SlotCoverageLimit,
			Code:    "LIMIT_ABOVE_CEILING",
			Message: fmt.Sprintf("requested limit %d exceeds the %s ceiling of %d", limit, jurisdiction, ceiling),
		})
	}

	return errs
}

func buildRequest(coverage models.CoverageType, parsed map[string]interface{}) *models.CoverageRequest {
	req := &models.CoverageRequest{
		BusinessType: normalizeToken(parsed[SlotBusinessType].(string)),
		CoverageType: coverage,
		Limit:        parsed[SlotCoverageLimit].(int64),
		Jurisdiction: parsed[SlotLocation].(string),
	}
	if city, ok := parsed[SlotCity].(string); ok {
		req.City = city
	}

	extras := make(map[string]interface{})
	if licensed, ok := parsed[SlotLiquorLicense].(bool); ok {
		extras[SlotLiquorLicense] = licensed
	}
	if footage, ok := parsed[SlotSquareFootage].(float64); ok {
		extras[SlotSquareFootage] = footage
	}
	if len(extras) > 0 {
		req.Extras = extras
	}
	return req
}

// coerce converts a raw slot value to the spec's declared type, applying
// type-specific constraints.
func coerce(raw interface{}, spec SlotSpec) (interface{}, error) {
	switch spec.Type {
	case TypeString:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", raw)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, fmt.Errorf("value must not be empty")
		}
		return s, nil

	case TypeEnum:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", raw)
		}
		s = normalizeToken(s)
		for _, allowed := range spec.Enum {
			if s == allowed {
				return s, nil
			}
		}
		return nil, fmt.Errorf("value must be one of %v", spec.Enum)

	case TypeNumber:
		n, err := toFloat(raw)
		if err != nil {
			return nil, err
		}
		if spec.Min != nil && n < *spec.Min {
			return nil, fmt.Errorf("value must be >= %v", *spec.Min)
		}
		if spec.Max != nil && n > *spec.Max {
			return nil, fmt.Errorf("value must be <= %v", *spec.Max)
		}
		return n, nil

	case TypeMoney:
		amount, err := ParseAmount(raw)
		if err != nil {
			return nil, err
		}
		if spec.Min != nil && float64(amount) < *spec.Min {
			return nil, fmt.Errorf("amount must be >= %v", *spec.Min)
		}
		if spec.Max != nil && float64(amount) > *spec.Max {
			return nil, fmt.Errorf("amount must be <= %v", *spec.Max)
		}
		return amount, nil

	case TypeBool:
		switch b := raw.(type) {
		case bool:
			return b, nil
		case string:
			parsed, err := strconv.ParseBool(strings.TrimSpace(b))
			if err != nil {
				return nil, fmt.Errorf("expected boolean, got %q", b)
			}
			return parsed, nil
		default:
			return nil, fmt.Errorf("expected boolean, got %T", raw)
		}

	case TypeJurisdiction:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected jurisdiction code, got %T", raw)
		}
		s = strings.ToUpper(strings.TrimSpace(s))
		if !jurisdictionPattern.MatchString(s) {
			return nil, fmt.Errorf("jurisdiction must be a two-letter code, got %q", s)
		}
		return s, nil
	}

	return nil, fmt.Errorf("unknown slot type %q", spec.Type)
}

// ParseAmount parses a monetary amount from the formats users actually send:
// numbers, or strings like "$1,000,000".
func ParseAmount(raw interface{}) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case string:
		cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(v)
		amount, err := strconv.ParseInt(cleaned, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse amount %q", v)
		}
		return amount, nil
	default:
		return 0, fmt.Errorf("expected amount, got %T", raw)
	}
}

func toFloat(raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse number %q", v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("expected number, got %T", raw)
	}
}

// normalizeToken lowercases and snake-cases a free-text token so table keys
// match regardless of user formatting.
func normalizeToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), "_")
}
