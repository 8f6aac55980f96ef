package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Backends that round-trip the college table through a dataframe may send
// ZIPs and phone numbers as numbers and counts as floats or "1,250" strings.
// The types below accept either spelling.

var jsonNull = []byte("null")

// looseText decodes a JSON string, number or bool as text; null is "".
type looseText string

func (t *looseText) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, jsonNull):
		*t = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return eris.Wrap(err, "model: decode text")
		}
		*t = looseText(s)
	case b[0] == '{' || b[0] == '[':
		return eris.Errorf("model: want text, got %.20s", b)
	default:
		*t = looseText(integralText(string(b)))
	}
	return nil
}

// integralText renders 2139.0 as "2139" and leaves other literals alone.
func integralText(lit string) string {
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) >= 1e15 {
		return lit
	}
	return strconv.FormatInt(int64(f), 10)
}

// looseZIP is looseText that restores leading zeros when the ZIP arrived as
// a number. String ZIPs pass through as sent.
type looseZIP string

func (z *looseZIP) UnmarshalJSON(b []byte) error {
	var t looseText
	if err := t.UnmarshalJSON(b); err != nil {
		return err
	}
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] != '"' && t != "" {
		*z = looseZIP(PadZIP(string(t)))
		return nil
	}
	*z = looseZIP(t)
	return nil
}

// looseCount decodes a non-negative count from a number or a numeric string.
// Blank, negative and unparseable values are missing.
type looseCount struct{ v *int64 }

func (c *looseCount) UnmarshalJSON(b []byte) error {
	f, ok, err := looseNumber(b)
	if err != nil {
		return err
	}
	c.v = nil
	if ok && f >= 0 {
		n := int64(math.Round(f))
		c.v = &n
	}
	return nil
}

// looseFloat decodes a float from a number or a numeric string.
type looseFloat struct{ v *float64 }

func (c *looseFloat) UnmarshalJSON(b []byte) error {
	f, ok, err := looseNumber(b)
	if err != nil {
		return err
	}
	c.v = nil
	if ok {
		c.v = &f
	}
	return nil
}

func looseNumber(b []byte) (float64, bool, error) {
	var t looseText
	if err := t.UnmarshalJSON(b); err != nil {
		return 0, false, err
	}
	s := strings.ReplaceAll(strings.TrimSpace(string(t)), ",", "")
	if s == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false, nil
	}
	return f, true, nil
}

// looseGeometry accepts a GeoJSON document either as a string or inline.
type looseGeometry string

func (g *looseGeometry) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		*g = looseGeometry(b)
		return nil
	}
	var t looseText
	if err := t.UnmarshalJSON(b); err != nil {
		return err
	}
	*g = looseGeometry(t)
	return nil
}

type collegeWire struct {
	Name             looseText  `json:"NAME"`
	Address          looseText  `json:"ADDRESS"`
	City             looseText  `json:"CITY"`
	State            looseText  `json:"STATE"`
	ZIP              looseZIP   `json:"ZIP"`
	Telephone        looseText  `json:"TELEPHONE"`
	Population       looseCount `json:"POPULATION"`
	County           looseText  `json:"COUNTY"`
	CountyFIPS       looseText  `json:"COUNTYFIPS"`
	Country          looseText  `json:"COUNTRY"`
	Website          looseText  `json:"WEBSITE"`
	Latitude         looseFloat `json:"latitude"`
	Longitude        looseFloat `json:"longitude"`
	IncomeBucket     looseText  `json:"income_bucket"`
	PopulationBucket looseText  `json:"population_bucket"`
}

// UnmarshalJSON decodes a college tolerating numeric text fields and string
// numbers. A ZIP sent as a number is zero-padded back to five digits.
func (c *College) UnmarshalJSON(b []byte) error {
	var w collegeWire
	if err := json.Unmarshal(b, &w); err != nil {
		return eris.Wrap(err, "model: decode college")
	}
	*c = College{
		Name:             string(w.Name),
		Address:          string(w.Address),
		City:             string(w.City),
		State:            string(w.State),
		ZIP:              string(w.ZIP),
		Telephone:        string(w.Telephone),
		Population:       w.Population.v,
		County:           string(w.County),
		CountyFIPS:       string(w.CountyFIPS),
		Country:          string(w.Country),
		Website:          string(w.Website),
		Latitude:         w.Latitude.v,
		Longitude:        w.Longitude.v,
		IncomeBucket:     string(w.IncomeBucket),
		PopulationBucket: string(w.PopulationBucket),
	}
	return nil
}

type boundaryWire struct {
	ZIPCode          looseZIP      `json:"zip_code"`
	Geometry         looseGeometry `json:"geometry"`
	IncomeBucket     looseText     `json:"income_bucket"`
	PopulationBucket looseText     `json:"population_bucket"`
}

// UnmarshalJSON decodes a boundary whose zip_code may be numeric and whose
// geometry may be a string or an inline object.
func (b *Boundary) UnmarshalJSON(data []byte) error {
	var w boundaryWire
	if err := json.Unmarshal(data, &w); err != nil {
		return eris.Wrap(err, "model: decode boundary")
	}
	*b = Boundary{
		ZIPCode:          string(w.ZIPCode),
		Geometry:         string(w.Geometry),
		IncomeBucket:     string(w.IncomeBucket),
		PopulationBucket: string(w.PopulationBucket),
	}
	return nil
}
