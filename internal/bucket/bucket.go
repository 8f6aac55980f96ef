// Package bucket assigns income and population bucket labels to ZIP demographics.
package bucket

// Unknown labels a missing measurement.
const Unknown = "Unknown"

// ExcludedIncome is the income bucket left out of every map query.
const ExcludedIncome = "Under $100k"

// Income bucket labels, lowest first.
const (
	IncomeUnder100k = ExcludedIncome
	Income100to125k = "$100k-$125k"
	Income125to150k = "$125k-$150k"
	Income150to175k = "$150k-$175k"
	Income175to200k = "$175k-$200k"
	Income200to250k = "$200k-$250k"
	Income250kPlus  = "$250k+"
)

// Population bucket labels, smallest first.
const (
	PopulationUnder1k  = "Under 1,000"
	Population1kTo5k   = "1,000-5,000"
	Population5kTo10k  = "5,000-10,000"
	Population10kTo25k = "10,000-25,000"
	Population25kTo40k = "25,000-40,000"
	Population40kPlus  = "40,000+"
)

type threshold struct {
	below int64
	label string
}

var incomeThresholds = []threshold{
	{100_000, IncomeUnder100k},
	{125_000, Income100to125k},
	{150_000, Income125to150k},
	{175_000, Income150to175k},
	{200_000, Income175to200k},
	{250_000, Income200to250k},
}

var populationThresholds = []threshold{
	{1_000, PopulationUnder1k},
	{5_000, Population1kTo5k},
	{10_000, Population5kTo10k},
	{25_000, Population10kTo25k},
	{40_000, Population25kTo40k},
}

// PopulationOrder is the display order for population buckets.
var PopulationOrder = []string{
	PopulationUnder1k,
	Population1kTo5k,
	Population5kTo10k,
	Population10kTo25k,
	Population25kTo40k,
	Population40kPlus,
}

// Income returns the bucket for a median household income. nil means missing.
func Income(income *int64) string {
	return classify(income, incomeThresholds, Income250kPlus)
}

// Population returns the bucket for a population count. nil means missing.
func Population(population *int64) string {
	return classify(population, populationThresholds, Population40kPlus)
}

func classify(v *int64, thresholds []threshold, top string) string {
	if v == nil {
		return Unknown
	}
	for _, t := range thresholds {
		if *v < t.below {
			return t.label
		}
	}
	return top
}

// PopulationRank returns the sort position of a population bucket.
// Labels outside PopulationOrder sort last.
func PopulationRank(label string) int {
	for i, l := range PopulationOrder {
		if l == label {
			return i
		}
	}
	return len(PopulationOrder)
}
