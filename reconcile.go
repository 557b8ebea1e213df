package tidytag

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-git/go-billy/v5"

	"github.com/tidytag/tidytag/fileutil"
	"github.com/tidytag/tidytag/release"
	"github.com/tidytag/tidytag/tagmap"
	"github.com/tidytag/tidytag/tags"
)

type Pair struct {
	Local LocalTrack
	Entry release.Track
}

// Plan pairs the nth qualifying local file with the nth tracklist entry.
type Plan struct {
	Album   AlbumFolder
	Release *release.Release
	Pairs   []Pair

	// Artist names the artist folder and is written as the album artist.
	Artist string

	// Sequential is false when the local track numbers don't read 1..n in
	// pairing order, restarting at 1 whenever the disc number changes. The
	// pairing is positional regardless, so in that case it may not be what
	// the user expects.
	Sequential bool
}

// NewPlan only builds a plan when the counts match exactly.
func NewPlan(album AlbumFolder, rel *release.Release) (*Plan, error) {
	if len(album.Tracks) != len(rel.Tracks) {
		return nil, fmt.Errorf("%w: %d/%d", ErrTrackCountMismatch, len(album.Tracks), len(rel.Tracks))
	}
	plan := &Plan{Album: album, Release: rel, Artist: ResolvedArtist(album, rel), Sequential: true}
	disc, want := 0, 1
	for i, lt := range album.Tracks {
		plan.Pairs = append(plan.Pairs, Pair{Local: lt, Entry: rel.Tracks[i]})

		if d, _ := strconv.Atoi(lt.Tags.Get(tags.DiscNumber)); d != disc {
			disc, want = d, 1
		}
		if n, _ := strconv.Atoi(lt.Tags.Get(tags.TrackNumber)); n != want {
			plan.Sequential = false
		}
		want++
	}
	return plan, nil
}

// TrackFilename is "NN - Title.ext", or "D-NN - Title.ext" for a track on a
// multi disc release. NN is the position padded to two characters.
func TrackFilename(entry release.Track, ext string) string {
	num := fileutil.Pad0(entry.Position, 2)
	if entry.Disc > 0 {
		num = strconv.Itoa(entry.Disc) + "-" + num
	}
	return num + " - " + fileutil.SafeName(entry.Title) + ext
}

type ReconcileOutcome struct {
	// Paths are the new paths of the files that were tagged and renamed, in
	// plan order.
	Paths    []string
	Failures []error
}

// Reconcile writes release metadata into each planned file and renames it in
// place. A failure on one file is recorded and the rest carry on. A file
// whose new name is already taken is left untouched. Tags already written to
// a file that then fails to rename are not rolled back.
func Reconcile(fsys billy.Filesystem, store tags.Store, plan *Plan) ReconcileOutcome {
	var out ReconcileOutcome
	for _, pair := range plan.Pairs {
		path := pair.Local.Path
		newPath := filepath.Join(filepath.Dir(path), TrackFilename(pair.Entry, filepath.Ext(path)))

		if err := checkFree(fsys, path, newPath); err != nil {
			err = fmt.Errorf("%w: %s: %w", ErrRename, path, err)
			slog.Error("renaming file", "path", path, "err", err)
			out.Failures = append(out.Failures, err)
			continue
		}

		t := tagmap.ReleaseTags(plan.Release, pair.Entry)
		t.Set(tags.AlbumArtist, plan.Artist)
		if err := store.Write(path, t); err != nil {
			err = fmt.Errorf("%w: %s: %w", ErrTagWrite, path, err)
			slog.Error("writing tags", "path", path, "err", err)
			out.Failures = append(out.Failures, err)
			continue
		}

		if err := rename(fsys, path, newPath); err != nil {
			err = fmt.Errorf("%w: %s: %w", ErrRename, path, err)
			slog.Error("renaming file", "path", path, "err", err)
			out.Failures = append(out.Failures, err)
			continue
		}

		out.Paths = append(out.Paths, newPath)
	}
	return out
}

var errDestExists = errors.New("destination exists")

func checkFree(fsys billy.Filesystem, from, to string) error {
	if from == to {
		return nil
	}
	if _, err := fsys.Lstat(to); err == nil {
		return fmt.Errorf("%w: %s", errDestExists, to)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat dest: %w", err)
	}
	return nil
}

// rename never overwrites. Renaming to the same path is a no-op.
func rename(fsys billy.Filesystem, from, to string) error {
	if from == to {
		return nil
	}
	if err := checkFree(fsys, from, to); err != nil {
		return err
	}
	if err := fsys.Rename(from, to); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
