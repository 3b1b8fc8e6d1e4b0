package tree

import (
	"sort"
	"strings"

	"websites-content-system/pkg/models"
)

// FindPage resolves a URL path such as "/about/contact" against the tree,
// one segment at a time. It returns nil when any segment is missing.
func FindPage(root *models.Page, path string) *models.Page {
	if root == nil {
		return nil
	}
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return root
	}

	node := root
	prefix := ""
	for _, segment := range strings.Split(trimmed, "/") {
		prefix += "/" + segment
		var next *models.Page
		for _, child := range node.Children {
			if child != nil && child.Name == prefix {
				next = child
				break
			}
		}
		if next == nil {
			return nil
		}
		node = next
	}
	return node
}

// FindPageByID returns the page with the given id, or nil.
func FindPageByID(root *models.Page, id string) *models.Page {
	if root == nil || id == "" {
		return nil
	}
	if root.ID == id {
		return root
	}
	for _, child := range root.Children {
		if found := FindPageByID(child, id); found != nil {
			return found
		}
	}
	return nil
}

// InsertPage returns a copy of project with page appended to its parent's
// children. Only the path from the root to the parent is copied. The second
// result is false (and project is returned as is) when the page is already
// present or its parent cannot be found.
func InsertPage(project models.ProjectTree, page *models.Page) (models.ProjectTree, bool) {
	if page == nil || page.ID == "" || page.ParentID == "" || project.Templates == nil {
		return project, false
	}
	if FindPageByID(project.Templates, page.ID) != nil {
		return project, false
	}

	root, ok := insertUnder(project.Templates, page)
	if !ok {
		return project, false
	}
	return models.ProjectTree{Name: project.Name, Templates: root}, true
}

func insertUnder(node, page *models.Page) (*models.Page, bool) {
	if node.ID == page.ParentID {
		cp := node.ShallowCopy()
		cp.Children = make([]*models.Page, 0, len(node.Children)+1)
		cp.Children = append(cp.Children, node.Children...)
		cp.Children = append(cp.Children, page)
		return cp, true
	}
	for i, child := range node.Children {
		if child == nil {
			continue
		}
		if updated, ok := insertUnder(child, page); ok {
			cp := node.ShallowCopy()
			cp.Children = append([]*models.Page(nil), node.Children...)
			cp.Children[i] = updated
			return cp, true
		}
	}
	return nil, false
}

// lastSegment is the sort key for sibling pages.
func lastSegment(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}

// SortByName returns a copy of the tree with every children list sorted by
// the last segment of the page name.
func SortByName(root *models.Page) *models.Page {
	if root == nil {
		return nil
	}
	cp := root.ShallowCopy()
	cp.Children = make([]*models.Page, 0, len(root.Children))
	for _, child := range root.Children {
		if child != nil {
			cp.Children = append(cp.Children, SortByName(child))
		}
	}
	sort.SliceStable(cp.Children, func(i, j int) bool {
		return lastSegment(cp.Children[i].Name) < lastSegment(cp.Children[j].Name)
	})
	return cp
}

// Walk visits the tree in pre-order. Returning false from fn skips the
// page's descendants.
func Walk(root *models.Page, fn func(p *models.Page, depth int) bool) {
	walk(root, 0, fn)
}

func walk(p *models.Page, depth int, fn func(*models.Page, int) bool) {
	if p == nil {
		return
	}
	if !fn(p, depth) {
		return
	}
	for _, child := range p.Children {
		walk(child, depth+1, fn)
	}
}

// Names lists every page name in pre-order, root first.
func Names(root *models.Page) []string {
	var names []string
	Walk(root, func(p *models.Page, _ int) bool {
		names = append(names, p.Name)
		return true
	})
	return names
}

// Count returns the number of pages in the tree.
func Count(root *models.Page) int {
	n := 0
	Walk(root, func(*models.Page, int) bool {
		n++
		return true
	})
	return n
}

// Build assembles a tree from flat page rows linked through ParentID. The
// root is the first page without a parent after sorting by name; rows whose
// parent is unknown are dropped. Children are sorted by their last name
// segment. Returns nil when no root exists.
func Build(pages []models.Page) *models.Page {
	rows := make([]*models.Page, 0, len(pages))
	for i := range pages {
		p := pages[i]
		p.Children = nil
		rows = append(rows, &p)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return lastSegment(rows[i].Name) < lastSegment(rows[j].Name)
	})

	var root *models.Page
	byParent := make(map[string][]*models.Page)
	for _, p := range rows {
		if p.ParentID == "" {
			if root == nil {
				root = p
			}
			continue
		}
		byParent[p.ParentID] = append(byParent[p.ParentID], p)
	}
	if root == nil {
		return nil
	}

	seen := map[string]bool{root.ID: true}
	var attach func(p *models.Page)
	attach = func(p *models.Page) {
		p.Children = []*models.Page{}
		for _, child := range byParent[p.ID] {
			if seen[child.ID] {
				continue
			}
			seen[child.ID] = true
			p.Children = append(p.Children, child)
			attach(child)
		}
	}
	attach(root)
	return root
}
