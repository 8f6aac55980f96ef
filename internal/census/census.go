// Package census downloads ZIP-level demographics from the Census ACS5 API.
package census

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/college-map/internal/bucket"
	"github.com/sells-group/college-map/internal/config"
	"github.com/sells-group/college-map/internal/fetcher"
	"github.com/sells-group/college-map/internal/model"
)

// ACS variables requested per ZCTA.
const (
	VarMedianIncome = "B19013_001E"
	VarPopulation   = "B01003_001E"
	GeoZCTA         = "zip code tabulation area"
)

// Client fetches ACS5 estimates.
type Client struct {
	fetcher fetcher.Fetcher
	baseURL string
	apiKey  string
	year    int
}

// NewClient returns a Client for the configured ACS year.
func NewClient(f fetcher.Fetcher, cfg config.CensusConfig) *Client {
	return &Client{
		fetcher: f,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		year:    cfg.Year,
	}
}

// URL returns the ACS5 request for every ZCTA.
func (c *Client) URL() string {
	q := url.Values{}
	q.Set("get", strings.Join([]string{VarMedianIncome, VarPopulation, "NAME"}, ","))
	q.Set("for", GeoZCTA+":*")
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	return fmt.Sprintf("%s/%d/acs/acs5?%s", c.baseURL, c.year, q.Encode())
}

// ZIPDemographics downloads and buckets income and population for every ZCTA.
func (c *Client) ZIPDemographics(ctx context.Context) ([]model.ZIPDemographics, error) {
	log := zap.L().With(zap.String("component", "census"), zap.Int("year", c.year))
	log.Info("requesting ACS5 demographics")

	body, err := c.fetcher.Download(ctx, c.URL())
	if err != nil {
		return nil, eris.Wrap(err, "census: download acs5")
	}
	defer body.Close() //nolint:errcheck

	rows, err := fetcher.CollectJSONArray[[]*string](ctx, body)
	if err != nil {
		return nil, eris.Wrap(err, "census: decode acs5")
	}

	demos, err := ParseACS(rows)
	if err != nil {
		return nil, err
	}
	log.Info("received ACS5 demographics", zap.Int("zips", len(demos)))
	return demos, nil
}

// ParseACS converts the API's array-of-arrays response into bucketed
// demographics. The first row is the header.
func ParseACS(rows [][]*string) ([]model.ZIPDemographics, error) {
	if len(rows) == 0 {
		return nil, eris.New("census: empty response")
	}

	col := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		if h != nil {
			col[*h] = i
		}
	}
	incomeIdx, ok1 := col[VarMedianIncome]
	popIdx, ok2 := col[VarPopulation]
	zipIdx, ok3 := col[GeoZCTA]
	if !ok1 || !ok2 || !ok3 {
		return nil, eris.Errorf("census: header missing required columns: %v", headerNames(rows[0]))
	}

	out := make([]model.ZIPDemographics, 0, len(rows)-1)
	for _, row := range rows[1:] {
		zip := model.PadZIP(cell(row, zipIdx))
		if zip == "" {
			continue
		}
		income := parseEstimate(cell(row, incomeIdx))
		pop := parseEstimate(cell(row, popIdx))
		out = append(out, model.ZIPDemographics{
			ZIPCode:               zip,
			MedianHouseholdIncome: income,
			Population:            pop,
			IncomeBucket:          bucket.Income(income),
			PopulationBucket:      bucket.Population(pop),
		})
	}
	return out, nil
}

// parseEstimate returns nil for blank, non-numeric, or negative values.
// ACS uses large negative sentinels for suppressed estimates.
func parseEstimate(s string) *int64 {
	s = strings.TrimSpace(s)
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

func cell(row []*string, i int) string {
	if i >= len(row) || row[i] == nil {
		return ""
	}
	return *row[i]
}

func headerNames(header []*string) []string {
	names := make([]string, 0, len(header))
	for _, h := range header {
		if h != nil {
			names = append(names, *h)
		}
	}
	return names
}
