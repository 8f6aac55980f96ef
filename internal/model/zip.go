package model

import "strings"

// ZIPCoordinate is the preferred-city centroid for a five-digit ZIP code.
type ZIPCoordinate struct {
	ZIPCode   string  `json:"zip_code"`
	City      string  `json:"city"`
	State     string  `json:"state"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ZIPDemographics holds ACS median household income and population for a ZCTA,
// plus the bucket labels derived from them.
type ZIPDemographics struct {
	ZIPCode               string `json:"zip_code"`
	MedianHouseholdIncome *int64 `json:"median_household_income"`
	Population            *int64 `json:"population"`
	IncomeBucket          string `json:"income_bucket"`
	PopulationBucket      string `json:"population_bucket"`
}

// ZIPBoundary is a ZCTA polygon stored as GeoJSON text. Area and perimeter are
// planar measurements in the source coordinate system's units.
type ZIPBoundary struct {
	ZIPCode   string  `json:"zip_code"`
	Geometry  string  `json:"geometry"`
	Area      float64 `json:"area_sq_meters"`
	Perimeter float64 `json:"perimeter_meters"`
}

// BucketCount is one row of a bucket distribution.
type BucketCount struct {
	Bucket string `json:"bucket"`
	Count  int64  `json:"count"`
}

// ZIPCoverage compares ZIPs with coordinates against ZIPs with demographics.
type ZIPCoverage struct {
	TotalZIPs        int64 `json:"total_zips"`
	WithDemographics int64 `json:"zips_with_demographics"`
}

// TableSummary describes one table for the stats report.
type TableSummary struct {
	Name    string   `json:"name"`
	Rows    int64    `json:"rows"`
	Columns []string `json:"columns"`
}

// PadZIP normalizes a ZIP to five digits: it drops a ZIP+4 suffix or a
// trailing ".0" and left-pads with zeros. Blank input stays blank.
func PadZIP(zip string) string {
	zip = strings.TrimSpace(zip)
	if zip == "" {
		return ""
	}
	if i := strings.IndexAny(zip, ".-"); i > 0 {
		zip = zip[:i]
	}
	if len(zip) < 5 {
		zip = strings.Repeat("0", 5-len(zip)) + zip
	}
	return zip
}
