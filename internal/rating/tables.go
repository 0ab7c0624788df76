// internal/rating/tables.go
package rating

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync/atomic"

	"github.com/xeipuuv/gojsonschema"
)

var (
	ErrUnsupportedJurisdiction = errors.New("UNSUPPORTED_JURISDICTION")
	ErrMissingTableEntry       = errors.New("CONFIG_ERROR")
)

// tableSchema validates rate-table files before any of their numbers are
// trusted. Multipliers must be strictly positive.
const tableSchema = `{
	"type": "object",
	"required": ["version", "base_rates", "business_types", "jurisdictions", "limit_bands", "deductibles", "auto_approve_limit"],
	"properties": {
		"version": {"type": "string", "minLength": 1},
		"base_rates": {
			"type": "object",
			"additionalProperties": {"type": "number", "exclusiveMinimum": 0}
		},
		"business_types": {
			"type": "object",
			"required": ["other"],
			"additionalProperties": {"type": "number", "exclusiveMinimum": 0}
		},
		"taxonomy": {
			"type": "object",
			"additionalProperties": {"type": "string"}
		},
		"high_hazard": {
			"type": "array",
			"items": {"type": "string"}
		},
		"jurisdictions": {
			"type": "object",
			"additionalProperties": {
				"type": "object",
				"required": ["multiplier", "limit_ceiling"],
				"properties": {
					"multiplier": {"type": "number", "exclusiveMinimum": 0},
					"limit_ceiling": {"type": "integer", "exclusiveMinimum": 0}
				}
			}
		},
		"limit_bands": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["threshold", "multiplier"],
				"properties": {
					"threshold": {"type": "integer", "minimum": 0},
					"multiplier": {"type": "number", "exclusiveMinimum": 0}
				}
			}
		},
		"surcharges": {
			"type": "object",
			"additionalProperties": {"type": "number", "exclusiveMinimum": 0}
		},
		"high_limit_threshold": {"type": "integer", "exclusiveMinimum": 0},
		"deductibles": {
			"type": "object",
			"additionalProperties": {
				"type": "array",
				"items": {"type": "integer", "exclusiveMinimum": 0}
			}
		},
		"auto_approve_limit": {"type": "integer", "exclusiveMinimum": 0}
	}
}`

// JurisdictionEntry is one configured jurisdiction.
type JurisdictionEntry struct {
	Multiplier   float64 `json:"multiplier"`
	LimitCeiling int64   `json:"limit_ceiling"`
}

// LimitBand is one step of the monotonic limit-band table.
type LimitBand struct {
	Threshold  int64   `json:"threshold"`
	Multiplier float64 `json:"multiplier"`
}

// Tables is an immutable, versioned rate-table snapshot. It is loaded once
// and shared read-only across sessions.
type Tables struct {
	Version            string                       `json:"version"`
	BaseRates          map[string]float64           `json:"base_rates"`
	BusinessTypes      map[string]float64           `json:"business_types"`
	Taxonomy           map[string]string            `json:"taxonomy"`
	HighHazard         []string                     `json:"high_hazard"`
	Jurisdictions      map[string]JurisdictionEntry `json:"jurisdictions"`
	LimitBands         []LimitBand                  `json:"limit_bands"`
	Surcharges         map[string]float64           `json:"surcharges"`
	HighLimitThreshold int64                        `json:"high_limit_threshold"`
	Deductibles        map[string][]int64           `json:"deductibles"`
	AutoApproveLimit   int64                        `json:"auto_approve_limit"`
}

// LoadTables reads, schema-validates, and integrity-checks a rate-table file.
func LoadTables(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rate table: %w", err)
	}
	return ParseTables(data)
}

// ParseTables validates raw JSON against the table schema and decodes it.
func ParseTables(data []byte) (*Tables, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(tableSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("rate table schema check: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return nil, fmt.Errorf("%w: invalid rate table: %v", ErrMissingTableEntry, msgs)
	}

	var t Tables
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode rate table: %w", err)
	}

	if err := t.checkIntegrity(); err != nil {
		return nil, err
	}
	return &t, nil
}

// checkIntegrity enforces constraints the JSON schema cannot express:
// limit bands sorted by threshold with non-decreasing multipliers.
func (t *Tables) checkIntegrity() error {
	if !sort.SliceIsSorted(t.LimitBands, func(i, j int) bool {
		return t.LimitBands[i].Threshold < t.LimitBands[j].Threshold
	}) {
		return fmt.Errorf("%w: limit bands not sorted by threshold", ErrMissingTableEntry)
	}
	for i := 1; i < len(t.LimitBands); i++ {
		if t.LimitBands[i].Threshold == t.LimitBands[i-1].Threshold {
			return fmt.Errorf("%w: duplicate limit band threshold %d", ErrMissingTableEntry, t.LimitBands[i].Threshold)
		}
		if t.LimitBands[i].Multiplier < t.LimitBands[i-1].Multiplier {
			return fmt.Errorf("%w: limit band multipliers must be non-decreasing", ErrMissingTableEntry)
		}
	}
	return nil
}

// BusinessMultiplier resolves a business type by exact match first, then by
// walking the taxonomy toward the root, finally falling back to "other".
// The returned class is the table key that actually matched.
func (t *Tables) BusinessMultiplier(businessType string) (class string, mult float64) {
	seen := make(map[string]bool)
	for bt := businessType; bt != "" && !seen[bt]; bt = t.Taxonomy[bt] {
		seen[bt] = true
		if m, ok := t.BusinessTypes[bt]; ok {
			return bt, m
		}
	}
	return "other", t.BusinessTypes["other"]
}

// LimitCeiling returns the configured ceiling for a jurisdiction.
func (t *Tables) LimitCeiling(jurisdiction string) (int64, bool) {
	j, ok := t.Jurisdictions[jurisdiction]
	if !ok {
		return 0, false
	}
	return j.LimitCeiling, true
}

// KnownBusinessType reports whether the type has a direct rate entry.
func (t *Tables) KnownBusinessType(businessType string) bool {
	_, ok := t.BusinessTypes[businessType]
	return ok
}

// Band selects the highest band whose threshold the limit meets or exceeds.
func (t *Tables) Band(limit int64) (index int, mult float64) {
	index = -1
	for i, b := range t.LimitBands {
		if limit >= b.Threshold {
			index = i
			mult = b.Multiplier
		}
	}
	return index, mult
}

// IsHighHazard reports whether the resolved business class carries the
// high-hazard surcharge.
func (t *Tables) IsHighHazard(class string) bool {
	for _, h := range t.HighHazard {
		if h == class {
			return true
		}
	}
	return false
}

// Snapshot is an atomically swappable handle to the current Tables, enabling
// hot reload without restarting in-flight sessions.
type Snapshot struct {
	p atomic.Pointer[Tables]
}

func NewSnapshot(t *Tables) *Snapshot {
	s := &Snapshot{}
	s.p.Store(t)
	return s
}

// Current returns the table snapshot for this rating cycle.
func (s *Snapshot) Current() *Tables {
	return s.p.Load()
}

// Swap replaces the snapshot; the next turn reads the new tables.
func (s *Snapshot) Swap(t *Tables) {
	s.p.Store(t)
}
