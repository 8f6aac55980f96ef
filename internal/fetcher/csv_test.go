package fetcher

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func streamAll(t *testing.T, ctx context.Context, r io.Reader) ([]Record, error) {
	t.Helper()
	recCh, errCh := StreamRecords(ctx, r)
	var recs []Record
	for rec := range recCh {
		recs = append(recs, rec)
	}
	return recs, <-errCh
}

func TestStreamRecords_CollegeExport(t *testing.T) {
	input := "\ufeffNAME,ADDRESS,CITY,STATE,ZIP,POPULATION,WEBSITE\n" +
		`"Harbor College, East Campus","12 Pier Rd, Suite 4",Boston,MA,02110,"1,250",NOT AVAILABLE` + "\n" +
		"Ridge Tech , 9 Hill Ln ,Denver,CO,80202,800,https://ridge.edu\n"

	recs, err := streamAll(t, context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "Harbor College, East Campus", recs[0].Get("name"))
	assert.Equal(t, "12 Pier Rd, Suite 4", recs[0].Get("address"))
	assert.Equal(t, "02110", recs[0].Get("zip"), "leading zero kept as text")
	assert.Equal(t, "1,250", recs[0].Get("population"))
	assert.Equal(t, "Ridge Tech", recs[1].Get("NAME"))
	assert.Equal(t, "9 Hill Ln", recs[1].Get("ADDRESS"))
}

func TestStreamRecords_ZIPCoordinates(t *testing.T) {
	input := "std_zip5,usps_zip_pref_city,usps_zip_pref_state,latitude,longitude\n" +
		"00601,ADJUNTAS,PR,18.1800,-66.7500\n" +
		"\n" +
		"02139,CAMBRIDGE,MA,42.3646\n"

	recs, err := streamAll(t, context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, recs, 2, "blank lines are skipped")

	assert.Equal(t, "00601", recs[0].Get("STD_ZIP5"))
	assert.Equal(t, "-66.7500", recs[0].Get("LONGITUDE"))
	assert.Equal(t, "", recs[1].Get("LONGITUDE"), "short row pads with empty cells")
}

func TestStreamRecords_StrayQuoteTolerated(t *testing.T) {
	input := "NAME,CITY\nSaint Mary's \"Lake\" College,South Bend\n"

	recs, err := streamAll(t, context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, `Saint Mary's "Lake" College`, recs[0].Get("name"))
}

func TestStreamRecords_EmptyInput(t *testing.T) {
	recs, err := streamAll(t, context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestStreamRecords_ReadError(t *testing.T) {
	boom := errors.New("disk gone")

	recs, err := streamAll(t, context.Background(), iotest.ErrReader(boom))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, recs)
}

func TestStreamRecords_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	recs, err := streamAll(t, ctx, strings.NewReader("NAME\nAlpha\nBeta\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, recs)
}
