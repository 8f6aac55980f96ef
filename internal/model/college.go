package model

// College is a college record as served by /get_colleges. JSON keys follow the
// upstream college dataset headers; the bucket and coordinate keys come from the
// ZIP tables it is joined to.
type College struct {
	Name             string   `json:"NAME"`
	Address          string   `json:"ADDRESS"`
	City             string   `json:"CITY"`
	State            string   `json:"STATE"`
	ZIP              string   `json:"ZIP"`
	Telephone        string   `json:"TELEPHONE"`
	Population       *int64   `json:"POPULATION"`
	County           string   `json:"COUNTY"`
	CountyFIPS       string   `json:"COUNTYFIPS"`
	Country          string   `json:"COUNTRY,omitempty"`
	Website          string   `json:"WEBSITE"`
	Latitude         *float64 `json:"latitude"`
	Longitude        *float64 `json:"longitude"`
	IncomeBucket     string   `json:"income_bucket"`
	PopulationBucket string   `json:"population_bucket"`
}

// HasLocation reports whether both coordinates are present.
func (c College) HasLocation() bool {
	return c.Latitude != nil && c.Longitude != nil
}

// Buckets returns the college's income and population bucket labels.
func (c College) Buckets() (income, population string) {
	return c.IncomeBucket, c.PopulationBucket
}

// Boundary is a ZIP code boundary as served by /get_boundaries.
type Boundary struct {
	ZIPCode          string `json:"zip_code"`
	Geometry         string `json:"geometry"` // GeoJSON geometry document
	IncomeBucket     string `json:"income_bucket"`
	PopulationBucket string `json:"population_bucket"`
}

// Buckets returns the boundary's income and population bucket labels.
func (b Boundary) Buckets() (income, population string) {
	return b.IncomeBucket, b.PopulationBucket
}
