package mapview

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/college-map/internal/model"
)

func TestScene_MarshalJSON(t *testing.T) {
	src := &stubSource{
		colleges: []model.College{collegeA},
		boundaries: []model.Boundary{
			{ZIPCode: "02139", Geometry: squareGeoJSON, IncomeBucket: "low", PopulationBucket: "small"},
		},
	}
	v, scene := newTestView(t, src)
	_, err := v.Update(context.Background(), NewFilter([]string{"low"}, []string{"small"}, true))
	require.NoError(t, err)

	b, err := json.Marshal(scene)
	require.NoError(t, err)

	var out struct {
		View struct {
			Center LatLng      `json:"center"`
			Zoom   int         `json:"zoom"`
			Tiles  []TileLayer `json:"tiles"`
		} `json:"view"`
		Map struct {
			Type     string `json:"type"`
			Features []struct {
				ID       string `json:"id"`
				Geometry struct {
					Type        string          `json:"type"`
					Coordinates json.RawMessage `json:"coordinates"`
				} `json:"geometry"`
				Properties map[string]any `json:"properties"`
			} `json:"features"`
		} `json:"map"`
		Table struct {
			Columns    []string `json:"columns"`
			PageLength int      `json:"page_length"`
			Rows       []Row    `json:"rows"`
		} `json:"table"`
	}
	require.NoError(t, json.Unmarshal(b, &out))

	assert.Equal(t, DefaultCenter, out.View.Center)
	assert.Equal(t, 4, out.View.Zoom)
	require.Len(t, out.View.Tiles, 1)

	assert.Equal(t, "FeatureCollection", out.Map.Type)
	require.Len(t, out.Map.Features, 2)

	poly := out.Map.Features[0]
	assert.Equal(t, "Polygon", poly.Geometry.Type)
	assert.Equal(t, "02139", poly.ID)
	assert.Equal(t, "polygon", poly.Properties["kind"])
	style, ok := poly.Properties["style"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "#4a0080", style["fillColor"])
	assert.InDelta(t, 0.35, style["fillOpacity"], 1e-9)
	assert.Equal(t, false, style["stroke"])

	marker := out.Map.Features[1]
	assert.Equal(t, "Point", marker.Geometry.Type)
	assert.JSONEq(t, `[1,1]`, string(marker.Geometry.Coordinates))
	assert.Contains(t, marker.Properties["popup"], "<strong>A</strong>")

	assert.Equal(t, Columns, out.Table.Columns)
	assert.Equal(t, PageLength, out.Table.PageLength)
	require.Len(t, out.Table.Rows, 1)
	assert.Equal(t, "A", out.Table.Rows[0].Name)
}

func TestScene_EmptyMarshalsEmptyCollections(t *testing.T) {
	b, err := json.Marshal(NewScene())
	require.NoError(t, err)
	assert.Contains(t, string(b), `"features":[]`)
	assert.Contains(t, string(b), `"rows":[]`)
	assert.Contains(t, string(b), `"tiles":[]`)
}

func TestScene_RemoveUnknownLayer(t *testing.T) {
	err := NewScene().RemoveLayer(&Layer{ID: "ghost"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "layer ghost not on scene")
}
