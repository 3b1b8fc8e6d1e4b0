package sitescan

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"websites-content-system/pkg/models"
	"websites-content-system/pkg/tree"
)

const indexFile = "index.html"

// Scanner builds page trees from a site repository's templates directory
type Scanner struct {
	logger *zap.Logger
}

// New returns a Scanner
func New(logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{logger: logger}
}

// ScanRepository scans <repoDir>/templates
func (s *Scanner) ScanRepository(repoDir string) (*models.Page, error) {
	return s.Scan(filepath.Join(repoDir, "templates"))
}

// Scan walks templatesDir and returns the root page. Directories become
// pages described by their index.html; other .html and .md files become
// leaf pages. Names are URL paths without extension.
func (s *Scanner) Scan(templatesDir string) (*models.Page, error) {
	info, err := os.Stat(templatesDir)
	if err != nil {
		return nil, fmt.Errorf("scan templates: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan templates: %s is not a directory", templatesDir)
	}

	root, err := s.scanDir(templatesDir, templatesDir, "/")
	if err != nil {
		return nil, err
	}
	if root == nil {
		root = &models.Page{Name: "/", URL: "/", Children: []*models.Page{}}
	}
	root.Status = models.PageStatusNew
	s.logger.Debug("templates scanned", zap.String("dir", templatesDir), zap.Int("pages", tree.Count(root)))
	return root, nil
}

func skip(name string) bool {
	return strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")
}

// scanDir returns nil for directories without an index and without pages.
func (s *Scanner) scanDir(base, dir, name string) (*models.Page, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	page := &models.Page{Name: name, URL: name, Status: models.PageStatusNew, Children: []*models.Page{}}
	hasIndex := false
	byName := map[string]*models.Page{}
	add := func(child *models.Page) {
		if existing, ok := byName[child.Name]; ok {
			s.mergeSibling(existing, child)
			return
		}
		byName[child.Name] = child
		page.Children = append(page.Children, child)
	}

	for _, entry := range entries {
		entryName := entry.Name()
		if skip(entryName) {
			continue
		}
		full := filepath.Join(dir, entryName)

		if entry.IsDir() {
			child, err := s.scanDir(base, full, path.Join(name, entryName))
			if err != nil {
				return nil, err
			}
			if child != nil {
				add(child)
			}
			continue
		}

		if entryName == indexFile {
			meta, err := readMetadata(full)
			if err != nil {
				return nil, err
			}
			applyMetadata(page, meta)
			page.Ext = ".html"
			page.FilePath = relPath(base, full)
			hasIndex = true
			continue
		}

		ext := filepath.Ext(entryName)
		if ext != ".html" && ext != ".md" {
			continue
		}
		meta, err := readMetadata(full)
		if err != nil {
			return nil, err
		}
		leafName := path.Join(name, strings.TrimSuffix(entryName, ext))
		leaf := &models.Page{
			Name:     leafName,
			URL:      leafName,
			Status:   models.PageStatusNew,
			Ext:      ext,
			FilePath: relPath(base, full),
			Children: []*models.Page{},
		}
		applyMetadata(leaf, meta)
		add(leaf)
	}

	if !hasIndex && len(page.Children) == 0 && name != "/" {
		return nil, nil
	}
	return page, nil
}

// mergeSibling folds dup into existing when both resolve to the same URL,
// e.g. about/ next to about.html. A directory without an index takes the
// file's metadata; when both carry a template the first one wins.
func (s *Scanner) mergeSibling(existing, dup *models.Page) {
	switch {
	case existing.FilePath == "":
		existing.Title, existing.Description, existing.CopyDocLink = dup.Title, dup.Description, dup.CopyDocLink
		existing.Ext, existing.FilePath = dup.Ext, dup.FilePath
	case dup.FilePath != "":
		s.logger.Warn("duplicate template ignored",
			zap.String("page", existing.Name),
			zap.String("kept", existing.FilePath),
			zap.String("ignored", dup.FilePath))
	}
	existing.Children = append(existing.Children, dup.Children...)
}

func readMetadata(file string) (Metadata, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return Metadata{}, fmt.Errorf("read template %s: %w", file, err)
	}
	if filepath.Ext(file) == ".md" {
		return ParseMarkdown(data), nil
	}
	return ParseHTML(data), nil
}

func applyMetadata(p *models.Page, meta Metadata) {
	p.Title = meta.Title
	p.Description = meta.Description
	p.CopyDocLink = meta.CopyDocLink
}

func relPath(base, full string) string {
	rel, err := filepath.Rel(base, full)
	if err != nil {
		return full
	}
	return filepath.ToSlash(rel)
}
