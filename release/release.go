// Package release holds the provider neutral view of a remote catalog record.
package release

import (
	"errors"
	"slices"
	"strconv"
	"strings"

	"github.com/araddon/dateparse"
)

var ErrNoID = errors.New("release has no id")

// Query is what the matcher asks a provider for. Album is empty and Track
// set for the track title fallback search.
type Query struct {
	Artist string
	Album  string
	Track  string
}

type Release struct {
	Provider string
	ID       string
	URL      string
	Title    string
	Year     int

	Artists      []string
	ExtraArtists []string
	Labels       []string
	Genres       []string

	Tracks []Track

	// TrackCount is known for some search results before a lookup. Zero
	// means unknown.
	TrackCount int
}

// Track is one tracklist entry. Position has no guaranteed numeric format,
// it may be a label like "A1". Disc is set only for releases with more than
// one disc, and Position then counts from 1 on each disc.
type Track struct {
	Disc     int
	Position string
	Title    string
}

// Discs is the number of distinct discs in the tracklist, at least 1.
func (r *Release) Discs() int {
	seen := map[int]struct{}{}
	for _, t := range r.Tracks {
		seen[t.Disc] = struct{}{}
	}
	return max(len(seen), 1)
}

// SplitDiscPosition splits positions like "2-05" or "2.5" into a disc and a
// position on that disc.
func SplitDiscPosition(pos string) (disc int, rest string, ok bool) {
	d, rest, found := strings.Cut(pos, "-")
	if !found {
		d, rest, found = strings.Cut(pos, ".")
	}
	if !found || d == "" || rest == "" {
		return 0, pos, false
	}
	disc, err := strconv.Atoi(d)
	if err != nil || disc <= 0 {
		return 0, pos, false
	}
	if _, err := strconv.Atoi(rest); err != nil {
		return 0, pos, false
	}
	return disc, rest, true
}

// YearString is the year as a string, or empty if the release has none.
func (r *Release) YearString() string {
	if r.Year <= 0 {
		return ""
	}
	return strconv.Itoa(r.Year)
}

// ArtistNames is the release artists followed by the extra artists.
func (r *Release) ArtistNames() []string {
	var names []string
	for _, n := range slices.Concat(r.Artists, r.ExtraArtists) {
		if n != "" {
			names = append(names, n)
		}
	}
	return names
}

// YearFromDate returns the year of a loosely formatted date like "1991",
// "1991-09" or "24 Sep 1991", or zero.
func YearFromDate(str string) int {
	if str == "" {
		return 0
	}
	if len(str) == 4 {
		if y, err := strconv.Atoi(str); err == nil {
			return y
		}
	}
	t, err := dateparse.ParseAny(str)
	if err != nil {
		return 0
	}
	return t.Year()
}
