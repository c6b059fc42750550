// Package prompt renders the language model prompts from text templates.
package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"ResearchDigest/internal/domain"
)

// Template names; a file "<name>.tmpl" in the override directory replaces the built-in one.
const (
	Decompose = "decompose"
	Deep      = "deep"
	Quick     = "quick"
	SummaryZh = "summary_zh"
	SummaryEn = "summary_en"
)

//go:embed templates/*.tmpl
var builtin embed.FS

var names = []string{Decompose, Deep, Quick, SummaryZh, SummaryEn}

// Catalogue holds parsed prompt templates.
type Catalogue struct {
	templates map[string]*template.Template
}

type answerData struct {
	Question   string
	References []domain.Item
	Sparse     bool
}

type summaryData struct {
	Title   string
	Summary string
}

// Load parses the built-in templates and applies overrides found in dir.
func Load(dir string) (*Catalogue, error) {
	c := &Catalogue{templates: make(map[string]*template.Template, len(names))}
	for _, name := range names {
		raw, err := builtin.ReadFile("templates/" + name + ".tmpl")
		if err != nil {
			return nil, fmt.Errorf("read builtin template %s: %w", name, err)
		}
		if dir != "" {
			override, err := os.ReadFile(filepath.Join(dir, name+".tmpl"))
			switch {
			case err == nil:
				raw = override
			case !os.IsNotExist(err):
				return nil, fmt.Errorf("read template %s: %w", name, err)
			}
		}
		tpl, err := template.New(name).Funcs(template.FuncMap{"references": References}).Parse(string(raw))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		c.templates[name] = tpl
	}
	return c, nil
}

// MustLoad is Load for the built-in set, which always parses.
func MustLoad() *Catalogue {
	c, err := Load("")
	if err != nil {
		panic(err)
	}
	return c
}

// Decompose renders the sub-query instruction.
func (c *Catalogue) Decompose(question string) (string, error) {
	return c.render(Decompose, answerData{Question: question})
}

// Deep renders the citation-grounded prompt; sparse asks the model to label outside knowledge.
func (c *Catalogue) Deep(question string, refs []domain.Item, sparse bool) (string, error) {
	return c.render(Deep, answerData{Question: question, References: refs, Sparse: sparse})
}

// Quick renders the short low-latency prompt.
func (c *Catalogue) Quick(question string, refs []domain.Item) (string, error) {
	return c.render(Quick, answerData{Question: question, References: refs})
}

// SummaryZh renders the short Chinese summary request.
func (c *Catalogue) SummaryZh(title, summary string) (string, error) {
	return c.render(SummaryZh, summaryData{Title: title, Summary: summary})
}

// SummaryEn renders the long English newsletter summary request.
func (c *Catalogue) SummaryEn(title, summary string) (string, error) {
	return c.render(SummaryEn, summaryData{Title: title, Summary: summary})
}

func (c *Catalogue) render(name string, data any) (string, error) {
	tpl, ok := c.templates[name]
	if !ok {
		return "", fmt.Errorf("template %s is not loaded", name)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// References formats items as a numbered markdown list: "N. [title](url) - source".
func References(items []domain.Item) string {
	lines := make([]string, 0, len(items))
	for i, it := range items {
		line := fmt.Sprintf("%d. [%s](%s)", i+1, strings.TrimSpace(it.Title), strings.TrimSpace(it.URL))
		if src := strings.TrimSpace(it.Source); src != "" {
			line += " - " + src
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
