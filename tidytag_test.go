package tidytag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidytag/tidytag/addon"
	"github.com/tidytag/tidytag/release"
	"github.com/tidytag/tidytag/tags"
	"github.com/tidytag/tidytag/tags/tagstest"
)

type confirmFunc func(Confirmation) bool

func (f confirmFunc) Confirm(_ context.Context, c Confirmation) (bool, error) {
	return f(c), nil
}

func writeAlbum(t *testing.T, fs billy.Filesystem, dir, artist, album string, n int) {
	t.Helper()
	for i := range n {
		path := fmt.Sprintf("%s/track %d.flac", dir, i+1)
		require.NoError(t, tagstest.WriteFile(fs, path,
			tags.Artist, artist,
			tags.Album, album,
			tags.TrackNumber, fmt.Sprint(i+1),
			tags.Title, fmt.Sprintf("track %d", i+1),
		))
	}
}

func listFiles(t *testing.T, fs billy.Filesystem, root string) []string {
	t.Helper()
	var paths []string
	err := util.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			paths = append(paths, path)
		}
		return nil
	})
	require.NoError(t, err)
	sort.Strings(paths)
	return paths
}

func geogaddi(n int) (*fakeProvider, *release.Release) {
	var titles []string
	for i := range n {
		titles = append(titles, fmt.Sprintf("Song %d", i+1))
	}
	rel := newRelease("geo", "Geogaddi", 2002, []string{"Boards of Canada"}, titles...)
	p := &fakeProvider{name: "fake"}
	p.add(rel)
	p.searches = map[release.Query][]release.Release{
		{Artist: "Boards of Canada", Album: "Geogaddi"}: {summary(rel)},
	}
	return p, rel
}

func newConfig(fs billy.Filesystem, providers ...Provider) *Config {
	return &Config{
		FS:        fs,
		Tags:      &tagstest.Store{FS: fs},
		Providers: providers,
		FixInside: true,
	}
}

func TestProcessAlbum(t *testing.T) {
	t.Parallel()

	fs := memfs.New()
	writeAlbum(t, fs, "/music/incoming", "Boards of Canada", "Geogaddi", 10)
	require.NoError(t, util.WriteFile(fs, "/music/incoming/cover.jpg", []byte("jpg"), 0o644))

	p, _ := geogaddi(10)
	cfg := newConfig(fs, p)

	res := ProcessAlbum(context.Background(), cfg, "/music", "/music/incoming")
	require.Equal(t, StatusOrganized, res.Status, res.Err)
	assert.Empty(t, res.Failures)

	dest := "/music/Boards of Canada/Geogaddi (2002)"
	assert.Equal(t, dest, res.DestDir)
	require.Len(t, res.Paths, 10)
	assert.Equal(t, dest+"/01 - Song 1.flac", res.Paths[0])
	assert.Equal(t, dest+"/10 - Song 10.flac", res.Paths[9])

	files := listFiles(t, fs, "/music")
	assert.Len(t, files, 11)
	assert.Contains(t, files, dest+"/cover.jpg")

	_, err := fs.Stat("/music/incoming")
	assert.Error(t, err)

	got, err := cfg.Tags.Read(dest + "/07 - Song 7.flac")
	require.NoError(t, err)
	assert.Equal(t, "Song 7", got.Get(tags.Title))
	assert.Equal(t, "7", got.Get(tags.TrackNumber))
	assert.Equal(t, "2002", got.Get(tags.Date))
}

func TestProcessAlbumFallback(t *testing.T) {
	t.Parallel()

	fs := memfs.New()
	writeAlbum(t, fs, "/music/in", "Boards of Canada", "Geogaddi", 2)

	long := newRelease("long", "Geogaddi", 2002, []string{"Boards of Canada"}, "a", "b", "c")
	right := newRelease("right", "Music Is Math", 2002, []string{"Boards of Canada"}, "Music Is Math", "Beware")
	p := &fakeProvider{name: "fake"}
	p.add(long)
	p.add(right)
	p.searches = map[release.Query][]release.Release{
		{Artist: "Boards of Canada", Album: "Geogaddi"}: {summary(long)},
		{Artist: "Boards of Canada", Track: "track 1"}:  {summary(right)},
	}

	res := ProcessAlbum(context.Background(), newConfig(fs, p), "/music", "/music/in")
	require.Equal(t, StatusOrganized, res.Status, res.Err)
	assert.Equal(t, StrategyTrack, res.Match.Strategy)

	// the folder keeps the local album name
	assert.Equal(t, "/music/Boards of Canada/Geogaddi (2002)", res.DestDir)
}

func TestProcessAlbumNotFound(t *testing.T) {
	t.Parallel()

	fs := memfs.New()
	writeAlbum(t, fs, "/music/in", "Boards of Canada", "Geogaddi", 3)
	before := listFiles(t, fs, "/music")

	p, _ := geogaddi(4)
	res := ProcessAlbum(context.Background(), newConfig(fs, p), "/music", "/music/in")
	assert.Equal(t, StatusNotFound, res.Status)
	assert.ErrorIs(t, res.Err, ErrNoReleaseFound)
	assert.Equal(t, before, listFiles(t, fs, "/music"))
}

func TestProcessAlbumNoTracks(t *testing.T) {
	t.Parallel()

	fs := memfs.New()
	require.NoError(t, tagstest.WriteFile(fs, "/music/in/a.flac", tags.Title, "no number"))

	p, _ := geogaddi(1)
	res := ProcessAlbum(context.Background(), newConfig(fs, p), "/music", "/music/in")
	assert.Equal(t, StatusNoTracks, res.Status)
	assert.ErrorIs(t, res.Err, ErrNoQualifyingTracks)
	assert.Empty(t, p.queries)
}

func TestProcessAlbumDeclined(t *testing.T) {
	t.Parallel()

	fs := memfs.New()
	writeAlbum(t, fs, "/music/in", "Boards of Canada", "Geogaddi", 3)
	require.NoError(t, util.WriteFile(fs, "/music/in/origin.yaml", []byte("Name: Geogaddi\nEdition year: 2002\n"), 0o644))
	before := listFiles(t, fs, "/music")

	p, _ := geogaddi(3)
	cfg := newConfig(fs, p)

	var asked Confirmation
	cfg.Confirmer = confirmFunc(func(c Confirmation) bool {
		asked = c
		return false
	})

	res := ProcessAlbum(context.Background(), cfg, "/music", "/music/in")
	assert.Equal(t, StatusDeclined, res.Status)
	assert.ErrorIs(t, res.Err, ErrDeclined)
	assert.Equal(t, before, listFiles(t, fs, "/music"))

	assert.Equal(t, "geo", asked.Match.Release.ID)
	assert.Len(t, asked.Plan.Pairs, 3)
	assert.NotEmpty(t, asked.Diff)
	require.NotNil(t, asked.Origin)
	assert.Equal(t, "Geogaddi", asked.Origin.Name)
}

func TestProcessIdempotent(t *testing.T) {
	t.Parallel()

	fs := memfs.New()
	writeAlbum(t, fs, "/music/in", "Boards of Canada", "Geogaddi", 3)
	require.NoError(t, util.WriteFile(fs, "/music/in/cover.jpg", []byte("jpg"), 0o644))

	p, _ := geogaddi(3)
	cfg := newConfig(fs, p)

	results, err := Process(context.Background(), cfg, "/music")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, StatusOrganized, results[0].Status, results[0].Err)

	first := listFiles(t, fs, "/music")
	var contents [][]byte
	for _, f := range first {
		data, err := util.ReadFile(fs, f)
		require.NoError(t, err)
		contents = append(contents, data)
	}

	// the organized album is found again through its artist folder
	results, err = Process(context.Background(), cfg, "/music")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, StatusOrganized, results[0].Status, results[0].Err)
	assert.Empty(t, results[0].Failures)
	assert.Equal(t, "/music/Boards of Canada/Geogaddi (2002)", results[0].Dir)
	assert.Equal(t, results[0].Dir, results[0].DestDir)

	assert.Equal(t, first, listFiles(t, fs, "/music"))
	for i, f := range first {
		data, err := util.ReadFile(fs, f)
		require.NoError(t, err)
		assert.Equal(t, contents[i], data, f)
	}

	// without fix inside it's skipped before any search
	cfg.FixInside = false
	p.queries = nil
	results, err = Process(context.Background(), cfg, "/music")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, StatusSkipped, results[0].Status)
	assert.Empty(t, p.queries)
}

func TestProcessVisitsEachAlbumOnce(t *testing.T) {
	t.Parallel()

	fs := memfs.New()
	// sorts before the artist folder it will be moved into
	writeAlbum(t, fs, "/music/A new rip", "Boards of Canada", "Geogaddi", 2)
	writeAlbum(t, fs, "/music/Boards of Canada/Music Has the Right", "Boards of Canada", "Music Has the Right", 1)
	require.NoError(t, util.WriteFile(fs, "/music/notes.txt", []byte("x"), 0o644))
	require.NoError(t, fs.MkdirAll("/music/empty", 0o755))

	p, _ := geogaddi(2)
	cfg := newConfig(fs, p)
	cfg.FixInside = false

	results, err := Process(context.Background(), cfg, "/music")
	require.NoError(t, err)

	byDir := map[string]Status{}
	for _, r := range results {
		byDir[r.Dir] = r.Status
	}
	assert.Equal(t, map[string]Status{
		"/music/A new rip": StatusOrganized,
		"/music/Boards of Canada/Music Has the Right": StatusSkipped,
	}, byDir)
}

func TestProcessMultiDiscIdempotent(t *testing.T) {
	t.Parallel()

	fs := memfs.New()
	writeAlbum(t, fs, "/music/in", "Boards of Canada", "Geogaddi", 4)

	p, rel := geogaddi(4)
	for i := range rel.Tracks {
		rel.Tracks[i].Disc = i/2 + 1
		rel.Tracks[i].Position = fmt.Sprint(i%2 + 1)
	}
	cfg := newConfig(fs, p)

	results, err := Process(context.Background(), cfg, "/music")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, StatusOrganized, results[0].Status, results[0].Err)

	dest := "/music/Boards of Canada/Geogaddi (2002)"
	want := []string{
		dest + "/1-01 - Song 1.flac",
		dest + "/1-02 - Song 2.flac",
		dest + "/2-01 - Song 3.flac",
		dest + "/2-02 - Song 4.flac",
	}
	assert.Equal(t, want, results[0].Paths)

	got, err := cfg.Tags.Read(dest + "/2-01 - Song 3.flac")
	require.NoError(t, err)
	assert.Equal(t, "1", got.Get(tags.TrackNumber))
	assert.Equal(t, "2", got.Get(tags.DiscNumber))

	results, err = Process(context.Background(), cfg, "/music")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, StatusOrganized, results[0].Status, results[0].Err)
	assert.Empty(t, results[0].Failures)
	assert.Equal(t, want, results[0].Paths)
	assert.Equal(t, want, listFiles(t, fs, "/music"))

	for i, path := range want {
		got, err := cfg.Tags.Read(path)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("Song %d", i+1), got.Get(tags.Title), path)
	}
}

func TestProcessAlbumFolderIgnoresExtraArtists(t *testing.T) {
	t.Parallel()

	fs := memfs.New()
	writeAlbum(t, fs, "/music/in", "Boards of Canada", "Geogaddi", 2)

	p, rel := geogaddi(2)
	for i := range 300 {
		rel.ExtraArtists = append(rel.ExtraArtists, fmt.Sprintf("Session Engineer %d", i+1))
	}
	cfg := newConfig(fs, p)

	results, err := Process(context.Background(), cfg, "/music")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, StatusOrganized, results[0].Status, results[0].Err)
	assert.Empty(t, results[0].Failures)
	assert.Equal(t, "/music/Boards of Canada/Geogaddi (2002)", results[0].DestDir)

	got, err := cfg.Tags.Read(results[0].Paths[0])
	require.NoError(t, err)
	assert.Equal(t, "Boards of Canada", got.Get(tags.AlbumArtist))
	assert.Contains(t, got.Get(tags.Artist), "Session Engineer 300")

	// the credited artist tag differs from the folder, the album artist doesn't
	cfg.FixInside = false
	p.queries = nil
	results, err = Process(context.Background(), cfg, "/music")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, StatusSkipped, results[0].Status)
	assert.Empty(t, p.queries)
}

func TestProcessAlbumDotNames(t *testing.T) {
	t.Parallel()

	fs := memfs.New()
	writeAlbum(t, fs, "/music/in", "..", ".", 1)

	rel := newRelease("dots", ".", 0, nil, "Song")
	p := &fakeProvider{name: "fake"}
	p.add(rel)
	p.searches = map[release.Query][]release.Release{
		{Artist: "..", Album: "."}: {summary(rel)},
	}

	res := ProcessAlbum(context.Background(), newConfig(fs, p), "/music", "/music/in")
	require.Equal(t, StatusOrganized, res.Status, res.Err)
	assert.Equal(t, "/music/__/_", res.DestDir)
	assert.Equal(t, []string{"/music/__/_/01 - Song.flac"}, listFiles(t, fs, "/music"))
}

type addonFunc func(addon.Album) error

func (f addonFunc) AfterOrganize(_ context.Context, album addon.Album) error { return f(album) }

func TestProcessAlbumAddons(t *testing.T) {
	t.Parallel()

	fs := memfs.New()
	writeAlbum(t, fs, "/music/in", "Boards of Canada", "Geogaddi", 2)

	p, _ := geogaddi(2)
	cfg := newConfig(fs, p)

	var got []addon.Album
	errBroken := errors.New("broken")
	cfg.Addons = []addon.Addon{
		addonFunc(func(a addon.Album) error { got = append(got, a); return nil }),
		addonFunc(func(addon.Album) error { return errBroken }),
	}

	res := ProcessAlbum(context.Background(), cfg, "/music", "/music/in")
	require.Equal(t, StatusOrganized, res.Status, res.Err)
	require.Len(t, res.Failures, 1)
	assert.ErrorIs(t, res.Failures[0], errBroken)

	dest := "/music/Boards of Canada/Geogaddi (2002)"
	assert.Equal(t, []addon.Album{{
		Dir:    dest,
		Artist: "Boards of Canada",
		Title:  "Geogaddi",
		Paths:  []string{dest + "/01 - Song 1.flac", dest + "/02 - Song 2.flac"},
	}}, got)
}
