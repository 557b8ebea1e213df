// tags normalises known tag key variants and defines the tag store used by the pipeline
package tags

import (
	"errors"
	"iter"
	"maps"
	"path/filepath"
	"slices"
	"strings"
)

// https://picard-docs.musicbrainz.org/downloads/MusicBrainz_Picard_Tag_Map.html

const (
	Album              = "album"
	AlbumArtist        = "albumartist"         // alts "album_artist" "album artist"
	Artist             = "artist"              //
	Performer          = "performer"           //
	ContributingArtist = "contributing_artist" // alts "contributingartist" "contributing artist"
	Title              = "title"
	TrackNumber        = "tracknumber" // alts "track" "trackc"
	DiscNumber         = "discnumber"  // alts "disc"
	Date               = "date"        // alts "year"
	Label              = "label"       // alts "organization" "publisher"
	Genre              = "genre"
)

var alternatives = map[string]string{
	"album_artist":        AlbumArtist,
	"album artist":        AlbumArtist,
	"contributingartist":  ContributingArtist,
	"contributing artist": ContributingArtist,
	"track":               TrackNumber,
	"trackc":              TrackNumber,
	"disc":                DiscNumber,
	"year":                Date,
	"organization":        Label,
	"publisher":           Label,
}

var ErrWrite = errors.New("error writing tags")

// Store reads and writes tags for a path. Write has partial update semantics,
// only the keys present in t are changed.
type Store interface {
	Read(path string) (Tags, error)
	Write(path string, t Tags) error
}

func CanRead(path string) bool {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3", ".flac", ".aac", ".m4a", ".m4b", ".ogg", ".opus", ".wma", ".wav", ".wv":
		return true
	}
	return false
}

type Tags struct {
	t map[string][]string
}

func NewTags(vs ...string) Tags {
	if len(vs)%2 != 0 {
		panic("vs should be kv pairs")
	}
	var t Tags
	for i := 0; i < len(vs)-1; i += 2 {
		t.Set(vs[i], vs[i+1])
	}
	return t
}

// FromRaw builds normalised Tags from a raw key/values map. When both a key
// and one of its alternatives are present, the canonical key wins.
func FromRaw(raw map[string][]string) Tags {
	t := Tags{t: make(map[string][]string, len(raw))}
	for k, vs := range raw {
		if lk := strings.ToLower(k); lk == NormKey(lk) {
			t.t[lk] = slices.Clone(vs)
		}
	}
	for k, vs := range raw {
		nk := NormKey(k)
		if _, ok := t.t[nk]; ok {
			continue
		}
		t.t[nk] = slices.Clone(vs)
	}
	return t
}

func (t Tags) Iter() iter.Seq2[string, []string] {
	return func(yield func(string, []string) bool) {
		for _, k := range slices.Sorted(maps.Keys(t.t)) {
			if !yield(k, t.t[k]) {
				break
			}
		}
	}
}

func (t *Tags) Set(key string, values ...string) {
	if t.t == nil {
		t.t = map[string][]string{}
	}
	t.t[NormKey(key)] = values
}

func (t Tags) Get(key string) string {
	if vs := t.t[NormKey(key)]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func (t Tags) Values(key string) []string {
	return t.t[NormKey(key)]
}

func (t Tags) Len() int {
	return len(t.t)
}

func (t Tags) Clone() Tags {
	c := Tags{t: make(map[string][]string, len(t.t))}
	for k, vs := range t.t {
		c.t[k] = slices.Clone(vs)
	}
	return c
}

// Update copies every key of other into t and reports whether anything changed.
func (t *Tags) Update(other Tags) bool {
	var changed bool
	for k, vs := range other.t {
		if slices.Equal(t.t[k], vs) {
			continue
		}
		t.Set(k, slices.Clone(vs)...)
		changed = true
	}
	return changed
}

// Raw returns the underlying map. Callers must not modify it.
func (t Tags) Raw() map[string][]string {
	return t.t
}

func Equal(a, b Tags) bool {
	return maps.EqualFunc(a.t, b.t, slices.Equal)
}

func NormKey(k string) string {
	k = strings.ToLower(k)
	if nk, ok := alternatives[k]; ok {
		return nk
	}
	return k
}
