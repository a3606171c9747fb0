package prompts

import (
	"cmp"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/JaimeStill/covenant/pkg/query"
	"github.com/JaimeStill/covenant/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "prompts", "p").
	Project("id", "ID").
	Project("name", "Name").
	Project("stage", "Stage").
	Project("instructions", "Instructions").
	Project("description", "Description").
	Project("active", "Active")

var defaultSort = []query.SortField{{Field: "Name"}, {Field: "ID"}}

// Filters narrows a prompt listing. Nil fields are ignored. Stage and
// Active match exactly; Name is a case-insensitive substring match.
type Filters struct {
	Stage  *Stage  `json:"stage,omitempty"`
	Name   *string `json:"name,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

// Match reports whether p satisfies every set criterion.
func (f Filters) Match(p Prompt) bool {
	if f.Stage != nil && p.Stage != *f.Stage {
		return false
	}
	if f.Active != nil && p.Active != *f.Active {
		return false
	}
	if f.Name != nil && !contains(p.Name, *f.Name) {
		return false
	}
	return true
}

// FiltersFromQuery extracts filter values from URL query parameters.
// An unknown stage is kept verbatim and matches nothing.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("stage"); s != "" {
		stage, err := ParseStage(s)
		if err != nil {
			stage = Stage(s)
		}
		f.Stage = &stage
	}

	if n := values.Get("name"); n != "" {
		f.Name = &n
	}

	if a := values.Get("active"); a != "" {
		if v, err := strconv.ParseBool(a); err == nil {
			f.Active = &v
		}
	}

	return f
}

func contains(s, needle string) bool {
	needle = strings.ToLower(strings.TrimSpace(needle))
	return needle == "" || strings.Contains(strings.ToLower(s), needle)
}

func matchSearch(p Prompt, search *string) bool {
	if search == nil {
		return true
	}
	if contains(p.Name, *search) {
		return true
	}
	return p.Description != nil && contains(*p.Description, *search)
}

// sortPrompts orders by the requested fields, then by name and id.
func sortPrompts(ps []Prompt, fields []query.SortField) {
	slices.SortStableFunc(ps, func(a, b Prompt) int {
		for _, f := range fields {
			var c int
			switch strings.ToLower(f.Field) {
			case "name":
				c = cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
			case "stage":
				c = cmp.Compare(slices.Index(stages, a.Stage), slices.Index(stages, b.Stage))
			case "active":
				c = cmp.Compare(boolRank(a.Active), boolRank(b.Active))
			}
			if f.Descending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		if c := cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

func scanPrompt(s repository.Scanner) (Prompt, error) {
	var p Prompt
	err := s.Scan(
		&p.ID,
		&p.Name,
		&p.Stage,
		&p.Instructions,
		&p.Description,
		&p.Active,
	)
	return p, err
}
