package rating

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quote-engine/internal/models"
)

func TestResolve(t *testing.T) {
	tables := loadTestTables(t)

	tests := []struct {
		name           string
		req            *models.CoverageRequest
		wantClass      string
		wantBand       int
		wantSurcharges []string
	}{
		{
			name: "plain restaurant",
			req: &models.CoverageRequest{
				BusinessType: "restaurant",
				CoverageType: models.CoverageGeneralLiability,
				Limit:        1000000,
				Jurisdiction: "NY",
			},
			wantClass:      "restaurant",
			wantBand:       2,
			wantSurcharges: nil,
		},
		{
			name: "high hazard class",
			req: &models.CoverageRequest{
				BusinessType: "nightclub",
				CoverageType: models.CoverageGeneralLiability,
				Limit:        500000,
				Jurisdiction: "NY",
			},
			wantClass:      "nightclub",
			wantBand:       1,
			wantSurcharges: []string{SurchargeHighHazard},
		},
		{
			name: "all surcharges union sorted",
			req: &models.CoverageRequest{
				BusinessType: "nightclub",
				CoverageType: models.CoverageLiquorLiability,
				Limit:        3000000,
				Jurisdiction: "NY",
			},
			wantClass:      "nightclub",
			wantBand:       3,
			wantSurcharges: []string{SurchargeHighHazard, SurchargeHighLimit, SurchargeLiquorExposure},
		},
		{
			name: "taxonomy fallback keeps resolved class",
			req: &models.CoverageRequest{
				BusinessType: "pub",
				CoverageType: models.CoverageGeneralLiability,
				Limit:        250000,
				Jurisdiction: "TX",
			},
			wantClass:      "bar",
			wantBand:       0,
			wantSurcharges: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rf, err := Resolve(tt.req, tables)
			require.NoError(t, err)

			assert.Equal(t, tt.wantClass, rf.BaseRateClass)
			assert.Equal(t, tt.wantBand, rf.LimitBand)
			assert.Equal(t, tt.wantSurcharges, rf.Surcharges)
			assert.Equal(t, "test-1", rf.TableVersion)
		})
	}
}

func TestResolve_UnsupportedJurisdiction(t *testing.T) {
	tables := loadTestTables(t)

	_, err := Resolve(&models.CoverageRequest{
		BusinessType: "restaurant",
		CoverageType: models.CoverageGeneralLiability,
		Limit:        500000,
		Jurisdiction: "AK",
	}, tables)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedJurisdiction))
}

func TestResolve_EmptyBusinessTypeFallsBack(t *testing.T) {
	tables := loadTestTables(t)

	rf, err := Resolve(&models.CoverageRequest{
		CoverageType: models.CoverageGeneralLiability,
		Limit:        500000,
		Jurisdiction: "NY",
	}, tables)

	require.NoError(t, err)
	assert.Equal(t, "other", rf.BaseRateClass)
	assert.Equal(t, 1.4, rf.BusinessMultiplier)
}
