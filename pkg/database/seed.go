package database

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"websites-content-system/pkg/models"
)

// productsFile is the layout of the product seed YAML:
//
//	products:
//	  - name: Ubuntu Pro
//	    slug: ubuntu-pro
type productsFile struct {
	Products []struct {
		Name string `yaml:"name"`
		Slug string `yaml:"slug"`
	} `yaml:"products"`
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases name and joins its words with dashes
func Slugify(name string) string {
	return strings.Trim(slugRe.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

// LoadProducts reads the product seed file. A missing file yields no products.
func LoadProducts(path string) ([]models.Product, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read products file: %w", err)
	}
	var f productsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse products file %s: %w", path, err)
	}
	out := make([]models.Product, 0, len(f.Products))
	for _, p := range f.Products {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			continue
		}
		slug := p.Slug
		if slug == "" {
			slug = Slugify(name)
		}
		out = append(out, models.Product{Name: name, Slug: slug})
	}
	return out, nil
}

// Defaults are the rows every installation starts with
type Defaults struct {
	Project *models.Project
	User    *models.User
}

// Bootstrap creates the Default project and user and seeds products
func Bootstrap(db DatabaseInterface, products []models.Product) (*Defaults, error) {
	project, err := db.GetOrCreateProject(models.DefaultProjectName)
	if err != nil {
		return nil, fmt.Errorf("default project: %w", err)
	}
	user, err := db.GetOrCreateUser(&models.User{Name: models.DefaultUserName})
	if err != nil {
		return nil, fmt.Errorf("default user: %w", err)
	}
	if err := db.EnsureProducts(products); err != nil {
		return nil, err
	}
	return &Defaults{Project: project, User: user}, nil
}
