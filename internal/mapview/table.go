package mapview

import (
	"fmt"
	"html"
	"slices"
	"strconv"
	"strings"

	"github.com/sells-group/college-map/internal/model"
)

// Columns are the college table headers, in display order.
var Columns = []string{
	"Name", "Address", "City", "State", "ZIP", "Phone", "Population",
	"County", "County FIPS", "Website", "Income Bucket", "Population Bucket",
}

// PageLength is the number of rows the table shows per page.
const PageLength = 25

// Row is one college table row. Missing fields are "".
type Row struct {
	Name             string `json:"name"`
	Address          string `json:"address"`
	City             string `json:"city"`
	State            string `json:"state"`
	ZIP              string `json:"zip"`
	Phone            string `json:"phone"`
	Population       string `json:"population"`
	County           string `json:"county"`
	CountyFIPS       string `json:"county_fips"`
	Website          string `json:"website"`
	IncomeBucket     string `json:"income_bucket"`
	PopulationBucket string `json:"population_bucket"`
}

// Cells returns the row's values in Columns order.
func (r Row) Cells() []string {
	return []string{
		r.Name, r.Address, r.City, r.State, r.ZIP, r.Phone, r.Population,
		r.County, r.CountyFIPS, r.Website, r.IncomeBucket, r.PopulationBucket,
	}
}

// WebsiteLink renders the website as an anchor, or "" when there is none.
func (r Row) WebsiteLink() string {
	if r.Website == "" {
		return ""
	}
	u := html.EscapeString(r.Website)
	return fmt.Sprintf(`<a href="%s" target="_blank" rel="noopener">%s</a>`, u, u)
}

// Table displays college rows.
type Table interface {
	Render(rows []Row) error
}

// BuildRows converts colleges to rows sorted by name, ignoring case.
func BuildRows(colleges []model.College) []Row {
	rows := make([]Row, 0, len(colleges))
	for _, c := range colleges {
		rows = append(rows, Row{
			Name:             c.Name,
			Address:          c.Address,
			City:             c.City,
			State:            c.State,
			ZIP:              c.ZIP,
			Phone:            c.Telephone,
			Population:       formatInt(c.Population),
			County:           c.County,
			CountyFIPS:       c.CountyFIPS,
			Website:          c.Website,
			IncomeBucket:     c.IncomeBucket,
			PopulationBucket: c.PopulationBucket,
		})
	}
	// Names compare case-insensitively; ties keep input order.
	slices.SortStableFunc(rows, func(a, b Row) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return rows
}

func formatInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

// Popup renders a marker popup for c. All text is escaped.
func Popup(c model.College) string {
	e := html.EscapeString
	return fmt.Sprintf("<strong>%s</strong><br>%s<br>%s, %s %s<br>Income Bucket: %s<br>Population Bucket: %s",
		e(c.Name), e(c.Address), e(c.City), e(c.State), e(c.ZIP), e(c.IncomeBucket), e(c.PopulationBucket))
}
