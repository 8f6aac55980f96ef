package mapview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/college-map/internal/model"
)

func TestBuildRows_SortsByNameAndDefaultsMissing(t *testing.T) {
	pop := int64(1200)
	rows := BuildRows([]model.College{
		{Name: "Zeta", City: "Cambridge", Population: &pop, Website: "https://zeta.edu"},
		{Name: "Alpha"},
	})

	require.Len(t, rows, 2)
	assert.Equal(t, "Alpha", rows[0].Name)
	assert.Equal(t, "", rows[0].Population)
	assert.Equal(t, "", rows[0].WebsiteLink())
	assert.Equal(t, "Zeta", rows[1].Name)
	assert.Equal(t, "1200", rows[1].Population)
	assert.Len(t, rows[1].Cells(), len(Columns))
}

func TestBuildRows_SortIgnoresCase(t *testing.T) {
	rows := BuildRows([]model.College{
		{Name: "Cherry"},
		{Name: "apple", City: "first"},
		{Name: "banana"},
		{Name: "Apple", City: "second"},
	})

	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.Name
	}
	assert.Equal(t, []string{"apple", "Apple", "banana", "Cherry"}, names)
	assert.Equal(t, "first", rows[0].City, "equal folded names keep input order")
	assert.Equal(t, "second", rows[1].City)
}

func TestBuildRows_Empty(t *testing.T) {
	rows := BuildRows(nil)
	require.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestRow_WebsiteLink(t *testing.T) {
	r := Row{Website: `https://a.edu/?q="x"`}
	assert.Equal(t,
		`<a href="https://a.edu/?q=&#34;x&#34;" target="_blank" rel="noopener">https://a.edu/?q=&#34;x&#34;</a>`,
		r.WebsiteLink())
}

func TestPopup_EscapesText(t *testing.T) {
	got := Popup(model.College{
		Name:             "<script>A</script>",
		Address:          "1 Main St",
		City:             "Cambridge",
		State:            "MA",
		ZIP:              "02139",
		IncomeBucket:     "$125k-$150k",
		PopulationBucket: "25,000-40,000",
	})
	assert.Equal(t,
		"<strong>&lt;script&gt;A&lt;/script&gt;</strong><br>1 Main St<br>Cambridge, MA 02139<br>Income Bucket: $125k-$150k<br>Population Bucket: 25,000-40,000",
		got)

	assert.Equal(t, "<strong></strong><br><br>,  <br>Income Bucket: <br>Population Bucket: ", Popup(model.College{}))
}
