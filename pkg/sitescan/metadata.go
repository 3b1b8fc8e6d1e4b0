package sitescan

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
	"gopkg.in/yaml.v3"
)

// Metadata is what a template file says about its page
type Metadata struct {
	Title       string
	Description string
	CopyDocLink string
}

var whitespaceRe = regexp.MustCompile(`\s+`)

func blockRe(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?s){%-?\s*block\s+` + name + `\s*-?%}(.*?){%-?\s*endblock`)
}

var (
	titleBlockRe       = blockRe("title")
	descriptionBlockRe = blockRe("meta_description")
	copydocBlockRe     = blockRe("meta_copydoc")
	jinjaTagRe         = regexp.MustCompile(`(?s){[{%#].*?[}%#]}`)
)

func clean(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

func block(re *regexp.Regexp, data []byte) string {
	m := re.FindSubmatch(data)
	if m == nil {
		return ""
	}
	return clean(jinjaTagRe.ReplaceAllString(string(m[1]), ""))
}

// ParseHTML extracts metadata from a Jinja/HTML template. Jinja blocks take
// precedence; the rendered <title> and meta description fill the gaps.
func ParseHTML(data []byte) Metadata {
	meta := Metadata{
		Title:       block(titleBlockRe, data),
		Description: block(descriptionBlockRe, data),
		CopyDocLink: block(copydocBlockRe, data),
	}
	if meta.Title != "" && meta.Description != "" {
		return meta
	}

	r, err := charset.NewReader(bytes.NewReader(data), "text/html")
	if err != nil {
		return meta
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return meta
	}
	if meta.Title == "" {
		meta.Title = clean(jinjaTagRe.ReplaceAllString(doc.Find("title").First().Text(), ""))
	}
	if meta.Description == "" {
		meta.Description = clean(doc.Find(`meta[name="description"]`).AttrOr("content", ""))
	}
	if meta.CopyDocLink == "" {
		meta.CopyDocLink = clean(doc.Find(`meta[name="copydoc"]`).AttrOr("content", ""))
	}
	return meta
}

type frontMatter struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	CopyDoc     string `yaml:"copydoc"`
}

// ParseMarkdown reads the YAML front matter of a Markdown page, falling back
// to its first heading for the title.
func ParseMarkdown(data []byte) Metadata {
	var meta Metadata
	body := data
	if bytes.HasPrefix(data, []byte("---")) {
		rest := data[3:]
		if end := bytes.Index(rest, []byte("\n---")); end >= 0 {
			var fm frontMatter
			if err := yaml.Unmarshal(rest[:end], &fm); err == nil {
				meta = Metadata{Title: clean(fm.Title), Description: clean(fm.Description), CopyDocLink: clean(fm.CopyDoc)}
			}
			body = rest[end+4:]
		}
	}
	if meta.Title == "" {
		for _, line := range strings.Split(string(body), "\n") {
			if strings.HasPrefix(line, "# ") {
				meta.Title = clean(strings.TrimPrefix(line, "# "))
				break
			}
		}
	}
	return meta
}
