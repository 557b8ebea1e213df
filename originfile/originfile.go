// Package originfile reads the origin.yaml files some download tools leave in
// album folders. They are shown as a hint when confirming a match.
package originfile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-git/go-billy/v5"
	"gopkg.in/yaml.v2"

	"github.com/tidytag/tidytag/fileutil"
)

// https://github.com/x1ppy/gazelle-origin

const pattern = "origin.y*ml"

// Find returns the origin file in dir, or nil if there isn't one.
func Find(fs billy.Filesystem, dir string) (*OriginFile, error) {
	matches, err := fileutil.GlobBase(fs, dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("glob for origin file: %w", err)
	}
	if len(matches) == 0 {
		return nil, nil
	}
	res, err := Parse(fs, matches[0])
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", matches[0], err)
	}
	return res, nil
}

func Parse(fs billy.Filesystem, path string) (*OriginFile, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	var res OriginFile
	if err := yaml.NewDecoder(f).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &res, nil
}

// OriginFile holds the fields used for the hint. Other keys are ignored.
type OriginFile struct {
	Artist          string `yaml:"Artist"`
	Name            string `yaml:"Name"`
	EditionYear     int    `yaml:"Edition year"`
	OriginalYear    int    `yaml:"Original year"`
	RecordLabel     string `yaml:"Record label"`
	CatalogueNumber string `yaml:"Catalog number"`
	Media           string `yaml:"Media"`
	Format          string `yaml:"Format"`
	Permalink       string `yaml:"Permalink"`
}

// Year is the original year, or the edition year when that is missing.
func (o *OriginFile) Year() int {
	if o.OriginalYear > 0 {
		return o.OriginalYear
	}
	return o.EditionYear
}

// String is like "Artist - Name (Year) [Label CatNo] Media Format", leaving
// out whatever is empty.
func (o *OriginFile) String() string {
	var b strings.Builder
	b.WriteString(strings.Join(nonEmpty(o.Artist, o.Name), " - "))
	if y := o.Year(); y > 0 {
		b.WriteString(" (" + strconv.Itoa(y) + ")")
	}
	if label := nonEmpty(o.RecordLabel, o.CatalogueNumber); len(label) > 0 {
		b.WriteString(" [" + strings.Join(label, " ") + "]")
	}
	for _, s := range nonEmpty(o.Media, o.Format) {
		b.WriteString(" " + s)
	}
	return strings.TrimSpace(b.String())
}

func nonEmpty(ss ...string) []string {
	var r []string
	for _, s := range ss {
		if s = strings.TrimSpace(s); s != "" {
			r = append(r, s)
		}
	}
	return r
}
