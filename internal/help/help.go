// Package help loads the FAQ shown on the help page. Answers are written in
// Markdown and sanitised after conversion.
package help

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"gopkg.in/yaml.v3"
)

//go:embed faq.yaml
var builtin string

// Entry is one question with its rendered answer.
type Entry struct {
	Question string
	Answer   template.HTML
}

// Page is the help page content.
type Page struct {
	Title   string
	Entries []Entry
}

type document struct {
	Title   string `yaml:"title"`
	Entries []struct {
		Question string `yaml:"question"`
		Answer   string `yaml:"answer"`
	} `yaml:"entries"`
}

func newPolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.RequireNoFollowOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	return policy
}

// Load reads a FAQ document and renders every answer.
func Load(r io.Reader) (Page, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return Page{}, fmt.Errorf("decode faq: %w", err)
	}

	md := goldmark.New()
	policy := newPolicy()
	page := Page{Title: doc.Title}
	for i, e := range doc.Entries {
		q := strings.TrimSpace(e.Question)
		if q == "" {
			return Page{}, fmt.Errorf("faq entry %d: question is required", i)
		}
		var buf bytes.Buffer
		if err := md.Convert([]byte(e.Answer), &buf); err != nil {
			return Page{}, fmt.Errorf("faq entry %d: %w", i, err)
		}
		page.Entries = append(page.Entries, Entry{
			Question: q,
			Answer:   template.HTML(policy.SanitizeBytes(buf.Bytes())),
		})
	}
	return page, nil
}

// Default returns the embedded FAQ.
func Default() (Page, error) {
	return Load(strings.NewReader(builtin))
}
