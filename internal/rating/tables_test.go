package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTableJSON = `{
	"version": "test-1",
	"base_rates": {
		"general_liability": 500,
		"liquor_liability": 900,
		"property": 350
	},
	"business_types": {
		"restaurant": 1.2,
		"retail": 1.0,
		"nightclub": 2.0,
		"bar": 1.6,
		"other": 1.4
	},
	"taxonomy": {
		"cafe": "restaurant",
		"pub": "bar",
		"bistro": "cafe"
	},
	"high_hazard": ["nightclub"],
	"jurisdictions": {
		"NY": {"multiplier": 1.5, "limit_ceiling": 5000000},
		"TX": {"multiplier": 1.1, "limit_ceiling": 5000000},
		"IL": {"multiplier": 1.2, "limit_ceiling": 2000000}
	},
	"limit_bands": [
		{"threshold": 0, "multiplier": 1.0},
		{"threshold": 500000, "multiplier": 1.25},
		{"threshold": 1000000, "multiplier": 1.5},
		{"threshold": 2000000, "multiplier": 2.0}
	],
	"surcharges": {
		"high_hazard_industry": 1.25,
		"high_limit": 1.15,
		"liquor_exposure": 1.35
	},
	"high_limit_threshold": 2000000,
	"deductibles": {
		"general_liability": [500, 1000, 2500, 5000],
		"liquor_liability": [1000, 2500, 5000, 10000],
		"property": [1000, 2500, 5000, 10000]
	},
	"auto_approve_limit": 1000000
}`

func loadTestTables(t *testing.T) *Tables {
	t.Helper()
	tables, err := ParseTables([]byte(testTableJSON))
	require.NoError(t, err)
	return tables
}

func TestParseTables_Valid(t *testing.T) {
	tables := loadTestTables(t)

	assert.Equal(t, "test-1", tables.Version)
	assert.Len(t, tables.LimitBands, 4)
	assert.Equal(t, int64(1000000), tables.AutoApproveLimit)
}

func TestParseTables_Invalid(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{
			name: "missing required section",
			json: `{"version": "v", "base_rates": {"general_liability": 500}}`,
		},
		{
			name: "business types without other fallback",
			json: `{
				"version": "v",
				"base_rates": {"general_liability": 500},
				"business_types": {"restaurant": 1.2},
				"jurisdictions": {},
				"limit_bands": [{"threshold": 0, "multiplier": 1.0}],
				"deductibles": {},
				"auto_approve_limit": 1000000
			}`,
		},
		{
			name: "zero multiplier",
			json: `{
				"version": "v",
				"base_rates": {"general_liability": 0},
				"business_types": {"other": 1.0},
				"jurisdictions": {},
				"limit_bands": [{"threshold": 0, "multiplier": 1.0}],
				"deductibles": {},
				"auto_approve_limit": 1000000
			}`,
		},
		{
			name: "unsorted limit bands",
			json: `{
				"version": "v",
				"base_rates": {"general_liability": 500},
				"business_types": {"other": 1.0},
				"jurisdictions": {},
				"limit_bands": [
					{"threshold": 500000, "multiplier": 1.25},
					{"threshold": 0, "multiplier": 1.0}
				],
				"deductibles": {},
				"auto_approve_limit": 1000000
			}`,
		},
		{
			name: "duplicate band threshold",
			json: `{
				"version": "v",
				"base_rates": {"general_liability": 500},
				"business_types": {"other": 1.0},
				"jurisdictions": {},
				"limit_bands": [
					{"threshold": 0, "multiplier": 1.0},
					{"threshold": 0, "multiplier": 1.25}
				],
				"deductibles": {},
				"auto_approve_limit": 1000000
			}`,
		},
		{
			name: "decreasing band multipliers",
			json: `{
				"version": "v",
				"base_rates": {"general_liability": 500},
				"business_types": {"other": 1.0},
				"jurisdictions": {},
				"limit_bands": [
					{"threshold": 0, "multiplier": 1.5},
					{"threshold": 500000, "multiplier": 1.0}
				],
				"deductibles": {},
				"auto_approve_limit": 1000000
			}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTables([]byte(tt.json))
			assert.Error(t, err)
		})
	}
}

func TestBusinessMultiplier(t *testing.T) {
	tables := loadTestTables(t)

	tests := []struct {
		name         string
		businessType string
		wantClass    string
		wantMult     float64
	}{
		{name: "exact match", businessType: "restaurant", wantClass: "restaurant", wantMult: 1.2},
		{name: "one taxonomy hop", businessType: "cafe", wantClass: "restaurant", wantMult: 1.2},
		{name: "two taxonomy hops", businessType: "bistro", wantClass: "restaurant", wantMult: 1.2},
		{name: "unknown falls back to other", businessType: "unicorn_rental", wantClass: "other", wantMult: 1.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class, mult := tables.BusinessMultiplier(tt.businessType)
			assert.Equal(t, tt.wantClass, class)
			assert.Equal(t, tt.wantMult, mult)
		})
	}
}

func TestBusinessMultiplier_TaxonomyCycle(t *testing.T) {
	tables := loadTestTables(t)
	tables.Taxonomy = map[string]string{"a": "b", "b": "a"}

	class, mult := tables.BusinessMultiplier("a")
	assert.Equal(t, "other", class)
	assert.Equal(t, 1.4, mult)
}

func TestBand(t *testing.T) {
	tables := loadTestTables(t)

	tests := []struct {
		limit     int64
		wantIndex int
		wantMult  float64
	}{
		{limit: 1, wantIndex: 0, wantMult: 1.0},
		{limit: 499999, wantIndex: 0, wantMult: 1.0},
		{limit: 500000, wantIndex: 1, wantMult: 1.25},
		{limit: 1000000, wantIndex: 2, wantMult: 1.5},
		{limit: 5000000, wantIndex: 3, wantMult: 2.0},
	}

	for _, tt := range tests {
		index, mult := tables.Band(tt.limit)
		assert.Equal(t, tt.wantIndex, index, "limit %d", tt.limit)
		assert.Equal(t, tt.wantMult, mult, "limit %d", tt.limit)
	}
}

func TestSnapshot_Swap(t *testing.T) {
	first := loadTestTables(t)
	snapshot := NewSnapshot(first)
	assert.Same(t, first, snapshot.Current())

	second := loadTestTables(t)
	second.Version = "test-2"
	snapshot.Swap(second)

	assert.Same(t, second, snapshot.Current())
	assert.Equal(t, "test-2", snapshot.Current().Version)
}
