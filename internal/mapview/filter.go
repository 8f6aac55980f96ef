package mapview

import (
	"net/url"
	"slices"
	"strconv"

	"github.com/rotisserie/eris"
)

// Checkbox filter kinds carried in data-filter-type.
const (
	KindIncome     = "income"
	KindPopulation = "population"
	KindBusiness   = "business"
)

// Set is a set of bucket labels.
type Set map[string]struct{}

// NewSet returns a set holding labels.
func NewSet(labels ...string) Set {
	s := make(Set, len(labels))
	for _, l := range labels {
		s[l] = struct{}{}
	}
	return s
}

// Has reports whether label is in the set.
func (s Set) Has(label string) bool {
	_, ok := s[label]
	return ok
}

// Sorted returns the labels in ascending order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for l := range s {
		out = append(out, l)
	}
	slices.Sort(out)
	return out
}

func (s Set) clone() Set {
	c := make(Set, len(s))
	for l := range s {
		c[l] = struct{}{}
	}
	return c
}

// Filter is the current selection. The zero value selects nothing.
type Filter struct {
	Income       Set
	Population   Set
	ShowColleges bool
}

// NewFilter builds a Filter from label lists.
func NewFilter(income, population []string, showColleges bool) Filter {
	return Filter{
		Income:       NewSet(income...),
		Population:   NewSet(population...),
		ShowColleges: showColleges,
	}
}

// FilterFromQuery reads repeated income and population params and a boolean
// colleges param.
func FilterFromQuery(q url.Values) Filter {
	show, _ := strconv.ParseBool(q.Get("colleges"))
	return NewFilter(nonEmpty(q["income"]), nonEmpty(q["population"]), show)
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Active reports whether at least one bucket of each kind is selected.
func (f Filter) Active() bool {
	return len(f.Income) > 0 && len(f.Population) > 0
}

// NeedsColleges reports whether the college dataset must be loaded.
func (f Filter) NeedsColleges() bool {
	return f.ShowColleges && f.Active()
}

// NeedsBoundaries reports whether the boundary dataset must be loaded.
func (f Filter) NeedsBoundaries() bool {
	return f.Active()
}

// Match reports whether a record with the given buckets is visible.
func (f Filter) Match(income, population string) bool {
	return f.Income.Has(income) && f.Population.Has(population)
}

// Change is a single checkbox toggle.
type Change struct {
	Kind    string
	Value   string
	Checked bool
}

// With returns a copy of f with c applied. f is not modified.
func (f Filter) With(c Change) (Filter, error) {
	out := Filter{
		Income:       f.Income.clone(),
		Population:   f.Population.clone(),
		ShowColleges: f.ShowColleges,
	}

	var target Set
	switch c.Kind {
	case KindIncome:
		target = out.Income
	case KindPopulation:
		target = out.Population
	case KindBusiness:
		out.ShowColleges = c.Checked
		return out, nil
	default:
		return f, eris.Errorf("mapview: unknown filter kind %q", c.Kind)
	}

	if c.Checked {
		target[c.Value] = struct{}{}
	} else {
		delete(target, c.Value)
	}
	return out, nil
}

type bucketed interface {
	Buckets() (income, population string)
}

// Apply returns the records whose income and population buckets are both
// selected. The result is never nil.
func Apply[T bucketed](f Filter, records []T) []T {
	out := make([]T, 0, len(records))
	for _, r := range records {
		if f.Match(r.Buckets()) {
			out = append(out, r)
		}
	}
	return out
}
