package tidytag

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"

	"github.com/go-git/go-billy/v5"
	"go.senan.xyz/natcmp"

	"github.com/tidytag/tidytag/fileutil"
	"github.com/tidytag/tidytag/tags"
)

const (
	UnknownArtist = "Unknown Artist"
	UnknownAlbum  = "Unknown Album"
)

// AlbumFolder is a snapshot of one album directory as scanned. Later stages
// return new path lists instead of changing it.
type AlbumFolder struct {
	Path string
	Root string

	// Tracks are the files with a numeric track number, in natural filename
	// order.
	Tracks []LocalTrack

	// Unreadable holds one error for every audio file whose tags could not
	// be read.
	Unreadable []error

	Artist string
	Album  string

	// FirstTitle is the title of the first qualifying track, used for the
	// track search fallback.
	FirstTitle string
}

type LocalTrack struct {
	Path string
	Tags tags.Tags
}

// Scan reads the audio files directly inside dir. Files with unreadable tags
// or without a numeric track number don't qualify, but are left in place for
// the organizer to move along with the rest of the folder.
func Scan(fsys billy.Filesystem, store tags.Store, dir, root string) (AlbumFolder, error) {
	album := AlbumFolder{
		Path:   dir,
		Root:   root,
		Artist: UnknownArtist,
		Album:  UnknownAlbum,
	}

	paths, err := audioPaths(fsys, dir)
	if err != nil {
		return AlbumFolder{}, err
	}

	for _, path := range paths {
		t, err := store.Read(path)
		if err != nil {
			slog.Warn("excluding unreadable file", "path", path, "err", err)
			album.Unreadable = append(album.Unreadable, fmt.Errorf("read %s: %w", path, err))
			continue
		}
		if !fileutil.IsDigits(t.Get(tags.TrackNumber)) {
			slog.Debug("excluding file without track number", "path", path)
			continue
		}
		album.Tracks = append(album.Tracks, LocalTrack{Path: path, Tags: t})
	}

	if len(album.Tracks) == 0 {
		return album, nil
	}

	first := album.Tracks[0].Tags
	album.Artist = firstNonEmpty(
		first.Get(tags.Artist),
		first.Get(tags.AlbumArtist),
		first.Get(tags.Performer),
		first.Get(tags.ContributingArtist),
		UnknownArtist,
	)
	album.Album = firstNonEmpty(first.Get(tags.Album), UnknownAlbum)
	album.FirstTitle = first.Get(tags.Title)
	return album, nil
}

// Paths returns the qualifying track paths in order.
func (a *AlbumFolder) Paths() []string {
	var paths []string
	for _, t := range a.Tracks {
		paths = append(paths, t.Path)
	}
	return paths
}

func audioPaths(fsys billy.Filesystem, dir string) ([]string, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !tags.CanRead(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	slices.SortFunc(paths, natcmp.Compare)
	return paths, nil
}

func hasAudio(fsys billy.Filesystem, dir string) (bool, error) {
	paths, err := audioPaths(fsys, dir)
	if err != nil {
		return false, err
	}
	return len(paths) > 0, nil
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
