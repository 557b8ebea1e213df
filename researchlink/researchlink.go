// Package researchlink builds search URLs for albums that no provider
// matched, so they can be looked up by hand.
package researchlink

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"text/template"
)

// Query is what a link template is executed with. Track is the first
// qualifying track title of the album.
type Query struct {
	Artist string
	Album  string
	Track  string
}

type Link struct {
	Name, URL string
}

type source struct {
	name string
	tmpl *template.Template
}

// Builder holds named link templates in the order they were added.
type Builder struct {
	sources []source
}

// Add parses raw as a template over Query. The template is tried once
// against an empty Query so that unknown fields are reported here rather
// than when an album goes unmatched.
func (b *Builder) Add(name, raw string) error {
	if name == "" {
		return errors.New("no name")
	}
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%s: no template", name)
	}
	tmpl, err := template.New(name).Funcs(funcMap).Parse(raw)
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}
	if err := tmpl.Execute(&strings.Builder{}, Query{}); err != nil {
		return fmt.Errorf("check template: %w", err)
	}
	b.sources = append(b.sources, source{name: name, tmpl: tmpl})
	return nil
}

func (b *Builder) Names() []string {
	var names []string
	for _, s := range b.sources {
		names = append(names, s.name)
	}
	return names
}

// Build executes every template with q. Links that fail to build are left
// out and their errors joined.
func (b *Builder) Build(q Query) ([]Link, error) {
	var links []Link
	var errs []error
	for _, s := range b.sources {
		var sb strings.Builder
		if err := s.tmpl.Execute(&sb, q); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
			continue
		}
		links = append(links, Link{Name: s.name, URL: sb.String()})
	}
	return links, errors.Join(errs...)
}

var funcMap = template.FuncMap{
	"lower": strings.ToLower,
	"query": url.QueryEscape,
	"path":  url.PathEscape,
}
