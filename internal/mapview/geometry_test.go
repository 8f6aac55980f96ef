package mapview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func TestParseGeometry(t *testing.T) {
	g, err := ParseGeometry(squareGeoJSON)
	require.NoError(t, err)
	assert.IsType(t, &geom.Polygon{}, g)

	g, err = ParseGeometry(`{"type":"Feature","properties":{},"geometry":` + squareGeoJSON + `}`)
	require.NoError(t, err)
	assert.IsType(t, &geom.Polygon{}, g)
}

func TestParseGeometry_Invalid(t *testing.T) {
	for _, text := range []string{
		"not valid json",
		`{"type":"Blob","coordinates":[]}`,
		`{"type":"Feature","properties":{},"geometry":null}`,
		"null",
	} {
		_, err := ParseGeometry(text)
		assert.Error(t, err, text)
	}
}
