// Package districts is the static district directory used for browsing and
// for the refresh scheduler. Slugs follow the URL form "kanpur-nagar".
package districts

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"
)

//go:embed data/*.json
var dataFS embed.FS

// District is one directory entry.
type District struct {
	State string `json:"state"`
	Name  string `json:"name"`
	Code  int    `json:"code"`
	Slug  string `json:"slug"`
}

type stateFile struct {
	State     string `json:"state"`
	StateCode int    `json:"stateCode"`
	Districts []struct {
		Name string `json:"name"`
		Code int    `json:"code"`
	} `json:"districts"`
}

// Directory is an immutable, sorted list of districts.
type Directory struct {
	all    []District
	bySlug map[string]District
}

// Load reads every embedded state file.
func Load() (*Directory, error) {
	entries, err := dataFS.ReadDir("data")
	if err != nil {
		return nil, fmt.Errorf("failed to list district data: %w", err)
	}

	d := &Directory{bySlug: map[string]District{}}
	for _, e := range entries {
		raw, err := dataFS.ReadFile("data/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", e.Name(), err)
		}
		var sf stateFile
		if err := json.Unmarshal(raw, &sf); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", e.Name(), err)
		}
		stateSlug := Slug(sf.State)
		for _, x := range sf.Districts {
			dist := District{State: sf.State, Name: x.Name, Code: x.Code, Slug: Slug(x.Name)}
			d.all = append(d.all, dist)
			d.bySlug[stateSlug+"/"+dist.Slug] = dist
		}
	}

	sort.Slice(d.all, func(i, j int) bool {
		if d.all[i].State != d.all[j].State {
			return d.all[i].State < d.all[j].State
		}
		return d.all[i].Name < d.all[j].Name
	})
	return d, nil
}

// MustLoad is Load for package-level initialisation; embedded data is fixed
// at build time so a failure is a programming error.
func MustLoad() *Directory {
	d, err := Load()
	if err != nil {
		panic(err)
	}
	return d
}

// All returns every district. The slice is a copy.
func (d *Directory) All() []District {
	return append([]District(nil), d.all...)
}

// Search returns districts whose name contains q, case-insensitively.
// A blank query returns everything.
func (d *Directory) Search(q string) []District {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return d.All()
	}
	out := []District{}
	for _, dist := range d.all {
		if strings.Contains(strings.ToLower(dist.Name), q) {
			out = append(out, dist)
		}
	}
	return out
}

// Lookup resolves a (state, district) slug pair. Known districts come back
// with their canonical spelling; unknown ones are title-cased from the slug
// and ok is false.
func (d *Directory) Lookup(stateSlug, districtSlug string) (District, bool) {
	key := strings.ToLower(stateSlug) + "/" + strings.ToLower(districtSlug)
	if dist, ok := d.bySlug[key]; ok {
		return dist, true
	}
	return District{
		State: FromSlug(stateSlug),
		Name:  FromSlug(districtSlug),
		Slug:  strings.ToLower(districtSlug),
	}, false
}

// Slug lowercases name and replaces spaces with hyphens.
func Slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}

// FromSlug turns "kanpur-nagar" into "Kanpur Nagar".
func FromSlug(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "-", " "))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
