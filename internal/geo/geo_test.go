package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	h := Default()

	provinces := h.Provinces()
	require.Len(t, provinces, 9)

	districts := 0
	for _, p := range provinces {
		districts += len(p.Districts)
		for _, d := range p.Districts {
			assert.NotEmpty(t, d.Cities, d.Name)
		}
	}
	assert.Equal(t, 25, districts)

	western, ok := h.Province("1")
	require.True(t, ok)
	assert.Equal(t, "Western Province", western.Name)

	kandy, ok := h.District("21")
	require.True(t, ok)
	assert.Equal(t, "Kandy District", kandy.Name)
	assert.Equal(t, "2", kandy.ProvinceID)
	assert.Contains(t, kandy.Cities, "Peradeniya")

	_, ok = h.Province("99")
	assert.False(t, ok)
	_, ok = h.District("99")
	assert.False(t, ok)
}

func TestParse_Rejects(t *testing.T) {
	tests := map[string]string{
		"invalid yaml":       "provinces: [",
		"missing province":   "provinces:\n  - name: X\n",
		"duplicate province": "provinces:\n  - id: \"1\"\n  - id: \"1\"\n",
		"duplicate district": "provinces:\n  - id: \"1\"\n    districts:\n      - id: \"11\"\n  - id: \"2\"\n    districts:\n      - id: \"11\"\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}
