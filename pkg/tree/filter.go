package tree

import (
	"fmt"
	"strings"

	"websites-content-system/pkg/models"
)

// Policy decides what happens to a page that does not match a filter but has
// matching descendants.
type Policy int

const (
	// KeepAncestors emits the non-matching page once, with only its retained
	// children. Tree depth is unchanged.
	KeepAncestors Policy = iota
	// PromoteDescendants drops the non-matching page and splices its retained
	// descendants into its parent's children.
	PromoteDescendants
)

func (p Policy) String() string {
	switch p {
	case KeepAncestors:
		return "keep"
	case PromoteDescendants:
		return "promote"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy maps "keep"/"promote" (or "") to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "keep", "ancestors":
		return KeepAncestors, nil
	case "promote":
		return PromoteDescendants, nil
	}
	return KeepAncestors, fmt.Errorf("unknown filter policy %q", s)
}

// matcher is a FilterSpec compiled into lookup sets.
type matcher struct {
	owners    map[string]struct{}
	reviewers map[string]struct{}
	products  map[string]struct{}
	query     string
	hasQuery  bool
}

func newMatcher(f models.FilterSpec) matcher {
	m := matcher{
		owners:    toSet(f.Owners, false),
		reviewers: toSet(f.Reviewers, false),
		products:  toSet(f.Products, true),
	}
	// The query is matched verbatim; whitespace is significant.
	if f.Query != nil && *f.Query != "" {
		m.query = strings.ToLower(*f.Query)
		m.hasQuery = true
	}
	return m
}

func toSet(values []string, fold bool) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if fold {
			v = strings.ToLower(v)
		}
		set[v] = struct{}{}
	}
	return set
}

func (m matcher) active() bool {
	return len(m.owners) > 0 || len(m.reviewers) > 0 || len(m.products) > 0 || m.hasQuery
}

// match applies every active dimension to a single page, ignoring children.
func (m matcher) match(p *models.Page) bool {
	if len(m.owners) > 0 {
		if p.Owner.IsDefault() {
			return false
		}
		if _, ok := m.owners[p.Owner.Email]; !ok {
			return false
		}
	}

	if len(m.reviewers) > 0 {
		found := false
		for _, r := range p.Reviewers {
			if r.Email == "" {
				continue
			}
			if _, ok := m.reviewers[r.Email]; ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(m.products) > 0 {
		found := false
		for _, pr := range p.Products {
			if _, ok := m.products[strings.ToLower(pr.Name)]; ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if m.hasQuery {
		if !strings.Contains(strings.ToLower(p.URL), m.query) &&
			!strings.Contains(strings.ToLower(p.Name), m.query) {
			return false
		}
	}

	return true
}

// IsActive reports whether f constrains at least one dimension.
func IsActive(f models.FilterSpec) bool {
	return newMatcher(f).active()
}

// Matches reports whether page p satisfies every active dimension of f on
// its own, regardless of its descendants.
func Matches(p *models.Page, f models.FilterSpec) bool {
	if p == nil {
		return false
	}
	return newMatcher(f).match(p)
}

// FilterProject prunes project's tree to the pages matching f, keeping
// non-matching ancestors of matches. See FilterProjectWithPolicy.
func FilterProject(project models.ProjectTree, f models.FilterSpec) models.ProjectTree {
	return FilterProjectWithPolicy(project, f, KeepAncestors)
}

// FilterProjectWithPolicy returns a new project whose tree holds only pages
// that match f or lead to a match. The root is always present. With no
// active dimension the project is returned unchanged.
//
// The input tree is never mutated: retained pages are shallow copies with
// fresh children slices.
func FilterProjectWithPolicy(project models.ProjectTree, f models.FilterSpec, policy Policy) models.ProjectTree {
	m := newMatcher(f)
	if !m.active() {
		return project
	}

	out := models.ProjectTree{Name: project.Name}
	if project.Templates == nil {
		out.Templates = &models.Page{Children: []*models.Page{}}
		return out
	}

	root := project.Templates.ShallowCopy()
	root.Children = filterChildren(project.Templates.Children, m, policy)
	out.Templates = root
	return out
}

// FilterProjects applies the filter to every project of a forest.
func FilterProjects(projects []models.ProjectTree, f models.FilterSpec, policy Policy) []models.ProjectTree {
	out := make([]models.ProjectTree, len(projects))
	for i, p := range projects {
		out[i] = FilterProjectWithPolicy(p, f, policy)
	}
	return out
}

func filterChildren(children []*models.Page, m matcher, policy Policy) []*models.Page {
	results := make([]*models.Page, 0, len(children))
	for _, child := range children {
		if child == nil {
			continue
		}
		kept := filterChildren(child.Children, m, policy)

		switch {
		case m.match(child), policy == KeepAncestors && len(kept) > 0:
			cp := child.ShallowCopy()
			cp.Children = kept
			results = append(results, cp)
		case policy == PromoteDescendants:
			results = append(results, kept...)
		}
	}
	return results
}
