// Package regions loads the bundled region reference table and answers
// code, display-name, and population lookups for the experiment tooling.
//
// The table is the combined census mapping shipped with the package: one row
// per state, district, territory, country aggregate, and HHS region. It is
// read once per process and never mutated.
package regions

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
)

//go:embed data/regions_mapping_combined.csv
var regionsCSV []byte

// Kind classifies a catalog record.
type Kind string

const (
	KindState     Kind = "state"
	KindDistrict  Kind = "district"
	KindTerritory Kind = "territory"
	KindCountry   Kind = "country"
	KindHHSRegion Kind = "hhsregion"
)

// Selector keywords accepted by ExpandSelectors. Anything else passes
// through as a literal region code.
const (
	SelectorAll        = "all"
	Selector50States   = "50states"
	SelectorHHSRegions = "hhsregions"
)

// ErrNotFound reports a code or display name with no unique catalog match.
var ErrNotFound = errors.New("region not found")

// Record is one row of the reference table.
type Record struct {
	Code        string // short identifier, e.g. "CA" or "hhs4"
	DisplayName string // e.g. "California"
	Population  int64
	Kind        Kind
	HHSRegion   string // parent grouping, e.g. "hhs4"; empty where not applicable
}

// Catalog holds the loaded reference table and its lookup indexes.
type Catalog struct {
	records []Record
	byCode  map[string]int
	byName  map[string]int
}

// Load parses the embedded reference table.
func Load() (*Catalog, error) {
	return parse(bytes.NewReader(regionsCSV))
}

func parse(r io.Reader) (*Catalog, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading region table header: %w", err)
	}
	col := map[string]int{}
	for i, name := range header {
		col[name] = i
	}
	for _, name := range []string{"stname", "stusps", "hhsregion", "population", "stid"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("region table missing column %q", name)
		}
	}

	cat := &Catalog{
		byCode: make(map[string]int),
		byName: make(map[string]int),
	}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading region table: %w", err)
		}
		pop, err := strconv.ParseInt(row[col["population"]], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("region %s: bad population %q: %w",
				row[col["stusps"]], row[col["population"]], err)
		}
		rec := Record{
			Code:        row[col["stusps"]],
			DisplayName: row[col["stname"]],
			Population:  pop,
			Kind:        Kind(row[col["stid"]]),
		}
		if hhs := row[col["hhsregion"]]; hhs != "" && rec.Kind != KindHHSRegion {
			rec.HHSRegion = "hhs" + hhs
		}
		if _, dup := cat.byCode[rec.Code]; dup {
			return nil, fmt.Errorf("region table: duplicate code %q", rec.Code)
		}
		cat.byCode[rec.Code] = len(cat.records)
		cat.byName[rec.DisplayName] = len(cat.records)
		cat.records = append(cat.records, rec)
	}
	return cat, nil
}

// Records returns every record in table order.
func (c *Catalog) Records() []Record {
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

// LookupByCode returns the record for a region code.
func (c *Catalog) LookupByCode(code string) (Record, error) {
	i, ok := c.byCode[code]
	if !ok {
		return Record{}, fmt.Errorf("%w: unknown code %q", ErrNotFound, code)
	}
	return c.records[i], nil
}

// LookupPopulation returns the population for a region display name.
func (c *Catalog) LookupPopulation(displayName string) (int64, error) {
	i, ok := c.byName[displayName]
	if !ok {
		return 0, fmt.Errorf("%w: no population for %q", ErrNotFound, displayName)
	}
	return c.records[i].Population, nil
}

// ExpandSelectors expands selector keywords into region codes. Literal codes
// pass through untouched so selectors and codes can be mixed in one list;
// validity of literals is checked later at lookup time. The result is
// deduplicated, first occurrence wins.
func (c *Catalog) ExpandSelectors(selectors []string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(code string) {
		if !seen[code] {
			seen[code] = true
			out = append(out, code)
		}
	}
	for _, sel := range selectors {
		switch sel {
		case SelectorAll:
			for _, rec := range c.records {
				add(rec.Code)
			}
		case Selector50States:
			for _, rec := range c.records {
				if rec.Kind == KindState {
					add(rec.Code)
				}
			}
		case SelectorHHSRegions:
			for _, rec := range c.records {
				if rec.Kind == KindHHSRegion {
					add(rec.Code)
				}
			}
		default:
			add(sel)
		}
	}
	return out
}
