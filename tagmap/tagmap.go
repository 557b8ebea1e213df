package tagmap

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/tidytag/tidytag/release"
	"github.com/tidytag/tidytag/tags"
)

var dmp = diffmatchpatch.New()

type Diff struct {
	Field         string
	Before, After []diffmatchpatch.Diff
	Equal         bool
}

type TagWeights map[string]float64

func (tw TagWeights) For(field string) float64 {
	if field == "" {
		return 1
	}
	for f, w := range tw {
		if strings.HasPrefix(field, f) {
			return w
		}
	}
	return 1
}

// ReleaseTags is the tag update for one local file paired with track. Album
// level fields are only included when the release has them, so that Write
// leaves existing values alone otherwise.
func ReleaseTags(rel *release.Release, track release.Track) tags.Tags {
	var t tags.Tags
	t.Set(tags.Title, track.Title)
	t.Set(tags.TrackNumber, track.Position)
	if track.Disc > 0 {
		t.Set(tags.DiscNumber, strconv.Itoa(track.Disc))
	}

	if names := rel.ArtistNames(); len(names) > 0 {
		t.Set(tags.Artist, strings.Join(names, ", "))
	}
	if year := rel.YearString(); year != "" {
		t.Set(tags.Date, year)
	}
	if labels := filterZero(rel.Labels...); len(labels) > 0 {
		t.Set(tags.Label, strings.Join(labels, ", "))
	}
	if genres := filterZero(rel.Genres...); len(genres) > 0 {
		t.Set(tags.Genre, strings.Join(genres, ", "))
	}
	return t
}

// DiffRelease compares the local tags of an album, in pairing order, with the
// release they are about to be paired with. The score is a weighted
// percentage similarity, 100 meaning identical.
func DiffRelease(weights TagWeights, rel *release.Release, local []tags.Tags) (float64, []Diff) {
	if len(local) == 0 {
		return 0, nil
	}
	first := local[0]

	var score float64
	diff := Differ(weights, &score)

	var diffs []Diff
	diffs = append(diffs,
		diff("release", first.Get(tags.Album), rel.Title),
		diff("artist", first.Get(tags.Artist), strings.Join(rel.ArtistNames(), ", ")),
		diff("year", yearOf(first.Get(tags.Date)), rel.YearString()),
		diff("label", first.Get(tags.Label), strings.Join(rel.Labels, ", ")),
	)

	for i := range max(len(local), len(rel.Tracks)) {
		var before, after string
		if i < len(local) {
			before = strings.Join(filterZero(local[i].Get(tags.TrackNumber), local[i].Get(tags.Title)), " ")
		}
		if i < len(rel.Tracks) {
			after = strings.Join(filterZero(rel.Tracks[i].Position, rel.Tracks[i].Title), " ")
		}
		diffs = append(diffs, diff(fmt.Sprintf("track %d", i+1), before, after))
	}

	return score, diffs
}

func Differ(weights TagWeights, score *float64) func(field string, a, b string) Diff {
	var total float64
	var dist float64

	return func(field, a, b string) Diff {
		// separate, normalised diff only for score. if we have both fields
		if a != "" && b != "" {
			a, b := norm(a), norm(b)

			diffs := dmp.DiffMain(a, b, false)
			dist += float64(dmp.DiffLevenshtein(diffs)) * weights.For(field)
			total += float64(len([]rune(b)))

			if total > 0 {
				*score = 100 - (dist * 100 / total)
			}
		}

		diffs := dmp.DiffMain(a, b, false)
		dist := float64(dmp.DiffLevenshtein(diffs))
		return Diff{
			Field:  field,
			Before: filterFunc(diffs, func(d diffmatchpatch.Diff) bool { return d.Type <= diffmatchpatch.DiffEqual }),
			After:  filterFunc(diffs, func(d diffmatchpatch.Diff) bool { return d.Type >= diffmatchpatch.DiffEqual }),
			Equal:  dist == 0,
		}
	}
}

// DiffText renders one side of a diff, colouring the changed parts.
func DiffText(diffs []diffmatchpatch.Diff) string {
	if len(diffs) == 0 {
		return "[empty]"
	}
	return dmp.DiffPrettyText(diffs)
}

func yearOf(date string) string {
	if y := release.YearFromDate(date); y > 0 {
		return fmt.Sprint(y)
	}
	return ""
}

func norm(input string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) {
			return unicode.ToLower(r)
		}
		if unicode.IsNumber(r) {
			return r
		}
		return -1
	}, input)
}

func filterZero[T comparable](elms ...T) []T {
	var zero T
	return slices.DeleteFunc(slices.Clone(elms), func(t T) bool {
		return t == zero
	})
}

func filterFunc[T any](diffs []T, f func(T) bool) []T {
	var r []T
	for _, diff := range diffs {
		if f(diff) {
			r = append(r, diff)
		}
	}
	return r
}
