package tiger

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/college-map/internal/model"
)

// ZCTAFields are the attribute names that carry the ZIP code, newest vintage first.
var ZCTAFields = []string{"zcta5ce20", "zcta5ce10", "geoid20", "geoid10"}

// ReadZCTA reads a ZCTA shapefile and returns one boundary per ZCTA for which
// keep returns true. A nil keep accepts every ZCTA.
func ReadZCTA(shpPath string, keep func(zip string) bool) ([]model.ZIPBoundary, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "tiger: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	zipIdx := -1
	fieldIdx := make(map[string]int)
	for i, f := range reader.Fields() {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}
	for _, name := range ZCTAFields {
		if idx, ok := fieldIdx[name]; ok {
			zipIdx = idx
			break
		}
	}
	if zipIdx < 0 {
		return nil, eris.Errorf("tiger: %s has no ZCTA field (want one of %v)", shpPath, ZCTAFields)
	}

	var out []model.ZIPBoundary
	var scanned, skipped int
	for reader.Next() {
		scanned++
		_, shape := reader.Shape()

		zip := model.PadZIP(strings.TrimRight(reader.Attribute(zipIdx), "\x00"))
		if zip == "" || (keep != nil && !keep(zip)) {
			continue
		}

		g := ShapeToGeometry(shape)
		if g == nil {
			skipped++
			continue
		}
		text, err := EncodeGeoJSON(g)
		if err != nil {
			skipped++
			continue
		}
		area, perimeter := Measure(g)
		out = append(out, model.ZIPBoundary{
			ZIPCode:   zip,
			Geometry:  text,
			Area:      area,
			Perimeter: perimeter,
		})
	}

	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "tiger: read shapefile %s", shpPath)
	}

	zap.L().Info("tiger: read ZCTA shapefile",
		zap.Int("scanned", scanned),
		zap.Int("kept", len(out)),
		zap.Int("skipped", skipped),
	)
	return out, nil
}
