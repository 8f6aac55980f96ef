package ingest

import (
	"strconv"
	"strings"

	"github.com/sells-group/college-map/internal/fetcher"
	"github.com/sells-group/college-map/internal/model"
)

// ParseCollege maps an institutions file row to a College. Rows without a
// name are rejected.
func ParseCollege(rec fetcher.Record) (model.College, bool) {
	c := model.College{
		Name:       rec.Get("NAME"),
		Address:    rec.Get("ADDRESS"),
		City:       rec.Get("CITY"),
		State:      rec.Get("STATE"),
		ZIP:        model.PadZIP(rec.Get("ZIP", "ZIP5")),
		Telephone:  rec.Get("TELEPHONE"),
		Population: parseInt(rec.Get("POPULATION")),
		County:     rec.Get("COUNTY"),
		CountyFIPS: rec.Get("COUNTYFIPS"),
		Country:    rec.Get("COUNTRY"),
		Latitude:   parseFloat(rec.Get("LATITUDE")),
		Longitude:  parseFloat(rec.Get("LONGITUDE")),
		Website:    normalizeWebsite(rec.Get("WEBSITE")),
	}
	return c, c.Name != ""
}

// ParseZIPCoordinate maps a ZIP centroid row. Rows without a ZIP or with
// unparsable coordinates are rejected.
func ParseZIPCoordinate(rec fetcher.Record) (model.ZIPCoordinate, bool) {
	zip := model.PadZIP(rec.Get("STD_ZIP5", "ZIP", "ZIP_CODE"))
	lat := parseFloat(rec.Get("LATITUDE"))
	lng := parseFloat(rec.Get("LONGITUDE"))
	if zip == "" || lat == nil || lng == nil {
		return model.ZIPCoordinate{}, false
	}
	return model.ZIPCoordinate{
		ZIPCode:   zip,
		City:      rec.Get("USPS_ZIP_PREF_CITY", "CITY"),
		State:     rec.Get("USPS_ZIP_PREF_STATE", "STATE"),
		Latitude:  *lat,
		Longitude: *lng,
	}, true
}

// dedupeZIPs keeps the first row for each ZIP code.
func dedupeZIPs(coords []model.ZIPCoordinate) []model.ZIPCoordinate {
	seen := make(map[string]bool, len(coords))
	out := coords[:0]
	for _, z := range coords {
		if seen[z.ZIPCode] {
			continue
		}
		seen[z.ZIPCode] = true
		out = append(out, z)
	}
	return out
}

// normalizeWebsite blanks the "NOT AVAILABLE" placeholder used by the source data.
func normalizeWebsite(s string) string {
	if strings.EqualFold(s, "NOT AVAILABLE") {
		return ""
	}
	return s
}

func parseInt(s string) *int64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return nil
	}
	v := int64(f)
	return &v
}

func parseFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}
