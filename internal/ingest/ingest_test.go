package ingest

import (
	"archive/zip"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/college-map/internal/bucket"
	"github.com/sells-group/college-map/internal/config"
	"github.com/sells-group/college-map/internal/fetcher"
	"github.com/sells-group/college-map/internal/model"
	"github.com/sells-group/college-map/internal/store"
)

type stubDemographics struct {
	demos []model.ZIPDemographics
	err   error
}

func (s *stubDemographics) ZIPDemographics(context.Context) ([]model.ZIPDemographics, error) {
	return s.demos, s.err
}

func i64(v int64) *int64 { return &v }

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "ingest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const collegesCSV = `NAME,ADDRESS,CITY,STATE,ZIP,TELEPHONE,POPULATION,COUNTY,COUNTYFIPS,COUNTRY,LATITUDE,LONGITUDE,WEBSITE
Zeta Institute,77 Mass Ave,Cambridge,MA,2139,555-0100,11000,MIDDLESEX,25017,USA,42.36,-71.09,https://zeta.edu
Alpha College,1 Main St,Cambridge,MA,02139,555-0101,3000,MIDDLESEX,25017,USA,42.37,-71.11,NOT AVAILABLE
Loop College,2 State St,Chicago,IL,60601,555-0102,9000,COOK,17031,USA,41.88,-87.62,https://loop.edu
,missing name,,,,,,,,,,,
`

const zipsCSV = `STD_ZIP5,USPS_ZIP_PREF_CITY,USPS_ZIP_PREF_STATE,LATITUDE,LONGITUDE
2139,CAMBRIDGE,MA,42.3646,-71.1028
60601,CHICAGO,IL,41.8858,-87.6181
60601,CHICAGO DUP,IL,0,0
`

var testDemographics = []model.ZIPDemographics{
	{ZIPCode: "02139", MedianHouseholdIncome: i64(130000), Population: i64(36000),
		IncomeBucket: bucket.Income125to150k, PopulationBucket: bucket.Population25kTo40k},
	{ZIPCode: "60601", MedianHouseholdIncome: i64(90000), Population: i64(15000),
		IncomeBucket: bucket.IncomeUnder100k, PopulationBucket: bucket.Population10kTo25k},
}

func newTestIngester(t *testing.T, st store.Store, zctaURL string) *Ingester {
	t.Helper()
	dir := t.TempDir()
	f := fetcher.New(fetcher.HTTPOptions{Timeout: 5 * time.Second, BaseBackoff: time.Millisecond}, fetcher.FTPOptions{})
	return New(st, f, &stubDemographics{demos: testDemographics},
		config.IngestConfig{
			CollegesPath:       writeFile(t, dir, "colleges.csv", collegesCSV),
			ZIPCoordinatesPath: writeFile(t, dir, "zips.csv", zipsCSV),
		},
		config.TigerConfig{ZCTAURL: zctaURL, TempDir: t.TempDir()},
	)
}

func TestColleges(t *testing.T) {
	st := newTestStore(t)
	ing := newTestIngester(t, st, "")

	n, err := ing.Colleges(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestZIPCoordinates_PadsAndDedupes(t *testing.T) {
	st := newTestStore(t)
	ing := newTestIngester(t, st, "")

	n, err := ing.ZIPCoordinates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestDemographics_SourceError(t *testing.T) {
	st := newTestStore(t)
	ing := newTestIngester(t, st, "")
	ing.census = &stubDemographics{err: errors.New("invalid key")}

	_, err := ing.Demographics(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest: fetch demographics")
}

func TestDemographics_NoSource(t *testing.T) {
	ing := New(newTestStore(t), nil, nil, config.IngestConfig{}, config.TigerConfig{})
	_, err := ing.Demographics(context.Background())
	require.Error(t, err)
}

func TestRun_UnknownStep(t *testing.T) {
	ing := New(newTestStore(t), nil, nil, config.IngestConfig{}, config.TigerConfig{})
	_, err := ing.Run(context.Background(), "everything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown step "everything"`)
}

func TestBoundaries_NoEligibleZIPsSkipsDownload(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { hits++ }))
	defer srv.Close()

	ing := newTestIngester(t, newTestStore(t), srv.URL+"/zcta.zip")
	n, err := ing.Boundaries(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, hits)
}

func TestAll_LoadsEverythingAndFiltersBoundaries(t *testing.T) {
	archive := zctaArchive(t, []string{"02139", "60601", "94027"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	st := newTestStore(t)
	ing := newTestIngester(t, st, srv.URL+"/tl_2023_us_zcta520.zip")
	ctx := context.Background()

	res, err := ing.All(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	require.Len(t, res.Steps, 4)
	assert.Equal(t, StepColleges, res.Steps[0].Step)
	assert.Equal(t, StepZIPs, res.Steps[1].Step)
	assert.Equal(t, StepDemographics, res.Steps[2].Step)
	assert.Equal(t, StepBoundaries, res.Steps[3].Step)
	assert.Equal(t, int64(1), res.Steps[3].Rows, "only 02139 is eligible")

	colleges, err := st.Colleges(ctx)
	require.NoError(t, err)
	require.Len(t, colleges, 2)
	assert.Equal(t, "Alpha College", colleges[0].Name)
	assert.Equal(t, "", colleges[0].Website)
	assert.Equal(t, "Zeta Institute", colleges[1].Name)

	boundaries, err := st.Boundaries(ctx)
	require.NoError(t, err)
	require.Len(t, boundaries, 1)
	assert.Equal(t, "02139", boundaries[0].ZIPCode)
	assert.Contains(t, boundaries[0].Geometry, "Polygon")
}

func TestAll_StopsOnFirstPhaseError(t *testing.T) {
	st := newTestStore(t)
	ing := newTestIngester(t, st, "")
	ing.ingest.CollegesPath = filepath.Join(t.TempDir(), "missing.csv")

	res, err := ing.All(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest: read colleges")
	assert.Empty(t, res.Steps)
}

// zctaArchive builds a zipped ZCTA shapefile with one square per ZIP.
func zctaArchive(t *testing.T, zips []string) []byte {
	t.Helper()
	dir := t.TempDir()
	base := filepath.Join(dir, "tl_2023_us_zcta520")

	w, err := shp.Create(base+".shp", shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("ZCTA5CE20", 5)}))
	for i, z := range zips {
		off := float64(i)
		ring := []shp.Point{{X: off, Y: 0}, {X: off, Y: 1}, {X: off + 1, Y: 1}, {X: off + 1, Y: 0}, {X: off, Y: 0}}
		idx := w.Write((*shp.Polygon)(shp.NewPolyLine([][]shp.Point{ring})))
		require.NoError(t, w.WriteAttribute(int(idx), 0, z))
	}
	w.Close()
	require.NoError(t, os.Rename(base+"dbf", base+".dbf"))

	zipPath := filepath.Join(dir, "out.zip")
	out, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(out)
	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		src, err := os.Open(base + ext)
		require.NoError(t, err)
		dst, err := zw.Create("tl_2023_us_zcta520" + ext)
		require.NoError(t, err)
		_, err = io.Copy(dst, src)
		require.NoError(t, err)
		require.NoError(t, src.Close())
	}
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())

	data, err := os.ReadFile(zipPath)
	require.NoError(t, err)
	return data
}
