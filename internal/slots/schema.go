// internal/slots/schema.go
package slots

import "quote-engine/internal/models"

// SlotType is the declared type of a slot value.
type SlotType string

const (
	TypeString       SlotType = "string"
	TypeNumber       SlotType = "number"
	TypeMoney        SlotType = "money"
	TypeBool         SlotType = "bool"
	TypeEnum         SlotType = "enum"
	TypeJurisdiction SlotType = "jurisdiction"
)

// SlotSpec declares the shape and constraints of one slot.
type SlotSpec struct {
	Required bool
	Type     SlotType
	Enum     []string
	Min      *float64
	Max      *float64
	Default  interface{}
}

// Slot names shared across coverage types.
const (
	SlotBusinessType  = "business_type"
	SlotCoverageType  = "coverage_type"
	SlotCoverageLimit = "coverage_limit"
	SlotLocation      = "location"
	SlotCity          = "city"
	SlotLiquorLicense = "liquor_license"
	SlotSquareFootage = "square_footage"
)

// DefaultSquareFootage is applied to property requests that omit footage.
const DefaultSquareFootage = 10000

func f64(v float64) *float64 { return &v }

// commonSlots are required by every coverage type.
func commonSlots() map[string]SlotSpec {
	return map[string]SlotSpec{
		SlotBusinessType:  {Required: true, Type: TypeString},
		SlotCoverageLimit: {Required: true, Type: TypeMoney, Min: f64(1)},
		SlotLocation:      {Required: true, Type: TypeJurisdiction},
		SlotCity:          {Type: TypeString},
	}
}

// schemaFor returns the declared slot schema for a coverage type, or nil when
// the coverage type itself is unknown.
func schemaFor(coverage models.CoverageType) map[string]SlotSpec {
	schema := commonSlots()
	switch coverage {
	case models.CoverageGeneralLiability:
	case models.CoverageLiquorLiability:
		schema[SlotLiquorLicense] = SlotSpec{Required: true, Type: TypeBool}
	case models.CoverageProperty:
		schema[SlotSquareFootage] = SlotSpec{Type: TypeNumber, Min: f64(1), Default: float64(DefaultSquareFootage)}
	default:
		return nil
	}
	return schema
}

// KnownCoverageTypes lists the coverage types with declared schemas.
func KnownCoverageTypes() []models.CoverageType {
	return []models.CoverageType{
		models.CoverageGeneralLiability,
		models.CoverageLiquorLiability,
		models.CoverageProperty,
	}
}
