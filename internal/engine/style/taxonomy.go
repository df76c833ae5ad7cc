// internal/engine/style/taxonomy.go
package style

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed taxonomy.yaml
var defaultTaxonomy []byte

type taxonomyFile struct {
	DefaultCompatibility float64 `yaml:"default_compatibility"`
	Categories           []struct {
		Name    string   `yaml:"name"`
		Mode    string   `yaml:"mode"`
		Aliases []string `yaml:"aliases"`
	} `yaml:"categories"`
	Styles        map[string][]string           `yaml:"styles"`
	Audience      map[string][]string           `yaml:"audience"`
	Compatibility map[string]map[string]float64 `yaml:"compatibility"`
}

type keywordSet struct {
	name     string
	keywords []string
}

// Taxonomy is the fixed vocabulary behind heuristic analysis and scoring.
type Taxonomy struct {
	defaultCompat float64
	canonical     map[string]string // alias -> category
	modes         map[string]string // category -> service mode
	categories    []keywordSet
	styles        []keywordSet
	audience      []keywordSet
	compat        map[string]map[string]float64
}

var (
	defaultOnce sync.Once
	defaultTax  *Taxonomy
)

func DefaultTaxonomy() *Taxonomy {
	defaultOnce.Do(func() {
		t, err := ParseTaxonomy(defaultTaxonomy)
		if err != nil {
			panic(fmt.Sprintf("embedded taxonomy: %v", err))
		}
		defaultTax = t
	})
	return defaultTax
}

// LoadTaxonomy reads a taxonomy file; an empty path yields the embedded one.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	if path == "" {
		return DefaultTaxonomy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy: %w", err)
	}
	return ParseTaxonomy(data)
}

func ParseTaxonomy(data []byte) (*Taxonomy, error) {
	var f taxonomyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse taxonomy: %w", err)
	}
	if len(f.Categories) == 0 {
		return nil, fmt.Errorf("taxonomy defines no categories")
	}
	if f.DefaultCompatibility < 0 || f.DefaultCompatibility > 1 {
		return nil, fmt.Errorf("default_compatibility must be within [0,1]")
	}

	t := &Taxonomy{
		defaultCompat: f.DefaultCompatibility,
		canonical:     map[string]string{},
		modes:         map[string]string{},
		compat:        map[string]map[string]float64{},
	}
	for _, c := range f.Categories {
		name := normalize(c.Name)
		if name == "" {
			return nil, fmt.Errorf("category without name")
		}
		t.modes[name] = c.Mode
		kws := []string{name}
		t.canonical[name] = name
		for _, a := range c.Aliases {
			a = normalize(a)
			if prev, dup := t.canonical[a]; dup && prev != name {
				return nil, fmt.Errorf("alias %q maps to both %s and %s", a, prev, name)
			}
			t.canonical[a] = name
			kws = append(kws, a)
		}
		t.categories = append(t.categories, keywordSet{name: name, keywords: kws})
	}
	t.styles = sortedSets(f.Styles)
	t.audience = sortedSets(f.Audience)
	for mode, row := range f.Compatibility {
		t.compat[mode] = map[string]float64{}
		for st, v := range row {
			if v < 0 || v > 1 {
				return nil, fmt.Errorf("compatibility %s/%s must be within [0,1]", mode, st)
			}
			t.compat[mode][st] = v
		}
	}
	return t, nil
}

// Canonical maps a category name or alias to its canonical category.
// Unknown input comes back normalized.
func (t *Taxonomy) Canonical(s string) string {
	n := normalize(s)
	if c, ok := t.canonical[n]; ok {
		return c
	}
	return n
}

// CanonicalSet canonicalises and deduplicates tags, keeping first-seen order.
func (t *Taxonomy) CanonicalSet(tags []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, tag := range tags {
		c := t.Canonical(tag)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

func (t *Taxonomy) Mode(category string) string {
	return t.modes[t.Canonical(category)]
}

// CategoriesIn lists the categories whose keywords occur in text, ordered by
// hit count.
func (t *Taxonomy) CategoriesIn(text string) []string {
	return match(t.categories, text)
}

// StylesIn lists the content styles whose keywords occur in text.
func (t *Taxonomy) StylesIn(text string) []string {
	return match(t.styles, text)
}

// AgeBandsIn lists the audience age bands whose keywords occur in text.
func (t *Taxonomy) AgeBandsIn(text string) []string {
	return match(t.audience, text)
}

// Categories lists the canonical category names in file order.
func (t *Taxonomy) Categories() []string {
	return names(t.categories)
}

func (t *Taxonomy) Styles() []string {
	return names(t.styles)
}

func (t *Taxonomy) AgeBands() []string {
	return names(t.audience)
}

func names(sets []keywordSet) []string {
	out := make([]string, len(sets))
	for i, s := range sets {
		out[i] = s.name
	}
	return out
}

// IsStyle reports whether tag names a content style.
func (t *Taxonomy) IsStyle(tag string) bool {
	for _, s := range t.styles {
		if s.name == normalize(tag) {
			return true
		}
	}
	return false
}

// Compatibility is the best fit of any of styles for the category's mode.
func (t *Taxonomy) Compatibility(category string, styles []string) float64 {
	row := t.compat[t.Mode(category)]
	best := -1.0
	for _, s := range styles {
		if v, ok := row[normalize(s)]; ok && v > best {
			best = v
		}
	}
	if best < 0 {
		return t.defaultCompat
	}
	return best
}

func match(sets []keywordSet, text string) []string {
	text = strings.ToLower(text)
	type hit struct {
		name  string
		count int
		order int
	}
	var hits []hit
	for i, s := range sets {
		n := 0
		for _, kw := range s.keywords {
			n += strings.Count(text, kw)
		}
		if n > 0 {
			hits = append(hits, hit{name: s.name, count: n, order: i})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].count != hits[j].count {
			return hits[i].count > hits[j].count
		}
		return hits[i].order < hits[j].order
	})
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.name
	}
	return out
}

func sortedSets(m map[string][]string) []keywordSet {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]keywordSet, 0, len(names))
	for _, name := range names {
		kws := []string{normalize(name)}
		for _, k := range m[name] {
			kws = append(kws, normalize(k))
		}
		out = append(out, keywordSet{name: normalize(name), keywords: kws})
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
