// internal/engine/geo/geo.go
package geo

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"creator-match/internal/models"
)

//go:embed regions.yaml
var defaultTable []byte

// Place is a resolved position in the administrative hierarchy. Any suffix
// of the hierarchy may be empty.
type Place struct {
	Region   string
	City     string
	District string
}

func (p Place) IsZero() bool {
	return p.Region == "" && p.City == "" && p.District == ""
}

// String renders the place as region/city/district.
func (p Place) String() string {
	return p.Region + "/" + p.City + "/" + p.District
}

// ParsePlace reverses String.
func ParsePlace(s string) Place {
	parts := strings.SplitN(s, "/", 3)
	for len(parts) < 3 {
		parts = append(parts, "")
	}
	return Place{Region: parts[0], City: parts[1], District: parts[2]}
}

func (p Place) Location() models.Location {
	return models.Location{Region: p.Region, City: p.City, District: p.District}
}

// Tier is how close two places are. Tiers are discrete on purpose.
type Tier int

const (
	TierNone Tier = iota
	TierRegion
	TierCity
	TierDistrict
)

func (t Tier) Score() int {
	switch t {
	case TierDistrict:
		return 100
	case TierCity:
		return 70
	case TierRegion:
		return 40
	}
	return 0
}

func (t Tier) String() string {
	switch t {
	case TierDistrict:
		return "district"
	case TierCity:
		return "city"
	case TierRegion:
		return "region"
	}
	return "none"
}

// Proximity compares two resolved places. A district matches when the
// names agree and neither side names a different city or region, so a
// district whose city could not be resolved still counts.
func Proximity(a, b Place) Tier {
	switch {
	case a.District != "" && key(a.District) == key(b.District) && agree(a.City, b.City) && agree(a.Region, b.Region):
		return TierDistrict
	case a.City != "" && a.City == b.City:
		return TierCity
	case a.Region != "" && a.Region == b.Region:
		return TierRegion
	}
	return TierNone
}

func agree(a, b string) bool {
	return a == "" || b == "" || a == b
}

// Closest returns the best tier between target and any of places.
func Closest(target Place, places []Place) Tier {
	best := TierNone
	for _, p := range places {
		if t := Proximity(target, p); t > best {
			best = t
		}
	}
	return best
}

// --- table ---

type fileTable struct {
	Provinces []struct {
		Name    string   `yaml:"name"`
		Aliases []string `yaml:"aliases"`
		Region  string   `yaml:"region"`
	} `yaml:"provinces"`
	Regions []struct {
		Name   string `yaml:"name"`
		Cities []struct {
			Name      string   `yaml:"name"`
			Aliases   []string `yaml:"aliases"`
			Districts []struct {
				Name    string   `yaml:"name"`
				Aliases []string `yaml:"aliases"`
			} `yaml:"districts"`
		} `yaml:"cities"`
	} `yaml:"regions"`
}

type city struct {
	region    string
	name      string
	districts map[string]string // alias -> canonical district
}

type term struct {
	text   string
	places []Place
}

type Table struct {
	regions   map[string]string // region name or province alias -> region
	cities    map[string]*city
	districts map[string][]Place
	terms     []term
}

var (
	defaultOnce sync.Once
	defaultTbl  *Table
)

// Default returns the embedded table.
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := Parse(defaultTable)
		if err != nil {
			panic(fmt.Sprintf("embedded region table: %v", err))
		}
		defaultTbl = t
	})
	return defaultTbl
}

// Load reads a replacement table from path.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read region table: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Table, error) {
	var ft fileTable
	if err := yaml.Unmarshal(data, &ft); err != nil {
		return nil, fmt.Errorf("parse region table: %w", err)
	}
	if len(ft.Regions) == 0 {
		return nil, fmt.Errorf("region table has no regions")
	}

	t := &Table{
		regions:   map[string]string{},
		cities:    map[string]*city{},
		districts: map[string][]Place{},
	}
	termIndex := map[string]int{}
	addTerm := func(text string, p Place) {
		text = key(text)
		if text == "" {
			return
		}
		if i, ok := termIndex[text]; ok {
			t.terms[i].places = append(t.terms[i].places, p)
			return
		}
		termIndex[text] = len(t.terms)
		t.terms = append(t.terms, term{text: text, places: []Place{p}})
	}

	for _, r := range ft.Regions {
		t.regions[key(r.Name)] = r.Name
		for _, c := range r.Cities {
			ce := &city{region: r.Name, name: c.Name, districts: map[string]string{}}
			cityPlace := Place{Region: r.Name, City: c.Name}
			for _, alias := range append([]string{c.Name}, c.Aliases...) {
				if _, dup := t.cities[key(alias)]; dup {
					return nil, fmt.Errorf("city alias %q defined twice", alias)
				}
				t.cities[key(alias)] = ce
				addTerm(alias, cityPlace)
			}
			for _, d := range c.Districts {
				p := Place{Region: r.Name, City: c.Name, District: d.Name}
				t.districts[key(d.Name)] = append(t.districts[key(d.Name)], p)
				for _, alias := range append([]string{d.Name}, d.Aliases...) {
					ce.districts[key(alias)] = d.Name
					addTerm(alias, p)
				}
			}
		}
	}
	for _, p := range ft.Provinces {
		for _, alias := range append([]string{p.Name}, p.Aliases...) {
			t.regions[key(alias)] = p.Region
		}
	}
	return t, nil
}

// ParseAddress resolves a Korean street address such as
// "경기도 성남시 분당구 판교역로 166" into region, city and district.
func (t *Table) ParseAddress(addr string) (models.Location, bool) {
	tokens := strings.FieldsFunc(addr, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t' || r == '\n'
	})
	if len(tokens) > 6 {
		tokens = tokens[:6]
	}

	var p Place
	var c *city
	for _, tok := range tokens {
		if c == nil {
			if found := t.lookupCity(tok); found != nil {
				c = found
				p.Region, p.City = found.region, found.name
				continue
			}
			if region, ok := t.regions[key(tok)]; ok && p.Region == "" {
				p.Region = region
				continue
			}
			if places := t.districts[key(tok)]; len(places) == 1 {
				p = places[0]
				break
			}
			continue
		}
		if d, ok := c.districts[key(tok)]; ok {
			p.District = d
			break
		}
	}
	if p.IsZero() {
		return models.Location{}, false
	}
	return p.Location(), true
}

// Resolve canonicalises a location supplied by a caller. Unknown names are
// kept as given so exact comparison still works.
func (t *Table) Resolve(loc models.Location) Place {
	p := Place{Region: loc.Region, City: loc.City, District: loc.District}

	if r, ok := t.regions[key(p.Region)]; ok {
		p.Region = r
	}
	if c := t.lookupCity(p.City); c != nil {
		p.City = c.name
		if p.Region == "" || p.Region != c.region {
			p.Region = c.region
		}
		if d, ok := c.districts[key(p.District)]; ok {
			p.District = d
		}
		return p
	}
	if p.City == "" && p.District != "" {
		if places := t.districts[key(p.District)]; len(places) == 1 {
			return places[0]
		}
	}
	return p
}

// FindMentions returns the places named in free text, in order of first
// appearance. Longer names win over names they contain, and a district
// name shared by several cities counts only when one of them is named too.
func (t *Table) FindMentions(text string) []Place {
	text = strings.ToLower(text)
	if text == "" {
		return nil
	}

	type hit struct {
		start, end int
		places     []Place
	}
	var hits []hit
	for _, tm := range t.terms {
		for off := 0; off < len(text); {
			i := strings.Index(text[off:], tm.text)
			if i < 0 {
				break
			}
			start := off + i
			hits = append(hits, hit{start: start, end: start + len(tm.text), places: tm.places})
			off = start + len(tm.text)
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		li, lj := hits[i].end-hits[i].start, hits[j].end-hits[j].start
		if li != lj {
			return li > lj
		}
		return hits[i].start < hits[j].start
	})

	var accepted []hit
	for _, h := range hits {
		overlaps := false
		for _, a := range accepted {
			if h.start < a.end && a.start < h.end {
				overlaps = true
				break
			}
		}
		if !overlaps {
			accepted = append(accepted, h)
		}
	}
	sort.Slice(accepted, func(i, j int) bool { return accepted[i].start < accepted[j].start })

	named := map[string]bool{}
	for _, h := range accepted {
		if len(h.places) == 1 {
			named[h.places[0].City] = true
		}
	}

	var out []Place
	seen := map[Place]bool{}
	withDistrict := map[string]bool{}
	for _, h := range accepted {
		p, ok := pick(h.places, named)
		if !ok || seen[p] {
			continue
		}
		seen[p] = true
		if p.District != "" {
			withDistrict[p.City] = true
		}
		out = append(out, p)
	}

	// a bare city adds nothing once one of its districts is known
	filtered := out[:0]
	for _, p := range out {
		if p.District == "" && withDistrict[p.City] {
			continue
		}
		filtered = append(filtered, p)
	}
	return filtered
}

func pick(places []Place, named map[string]bool) (Place, bool) {
	if len(places) == 1 {
		return places[0], true
	}
	var match []Place
	for _, p := range places {
		if named[p.City] {
			match = append(match, p)
		}
	}
	if len(match) == 1 {
		return match[0], true
	}
	return Place{}, false
}

func (t *Table) lookupCity(name string) *city {
	k := key(name)
	if k == "" {
		return nil
	}
	if c, ok := t.cities[k]; ok {
		return c
	}
	for _, suffix := range []string{"특별자치시", "특별시", "광역시", "시"} {
		if strings.HasSuffix(k, suffix) {
			if c, ok := t.cities[strings.TrimSuffix(k, suffix)]; ok {
				return c
			}
		}
	}
	return nil
}

func key(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
