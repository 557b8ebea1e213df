package tidytag

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-git/go-billy/v5"
	"go.senan.xyz/natcmp"

	"github.com/tidytag/tidytag/addon"
	"github.com/tidytag/tidytag/fileutil"
	"github.com/tidytag/tidytag/notifications"
	"github.com/tidytag/tidytag/originfile"
	"github.com/tidytag/tidytag/release"
	"github.com/tidytag/tidytag/researchlink"
	"github.com/tidytag/tidytag/tagmap"
	"github.com/tidytag/tidytag/tags"
)

var (
	ErrNoQualifyingTracks = errors.New("no tracks with a numeric track number")
	ErrNoReleaseFound     = errors.New("no release with a matching track count")
	ErrTagWrite           = errors.New("tag write failed")
	ErrRename             = errors.New("rename failed")
	ErrMoveConflict       = errors.New("move conflict")
	ErrFolderRemoval      = errors.New("source folder not removed")
	ErrTrackCountMismatch = errors.New("track count mismatch")
	ErrDeclined           = errors.New("declined")
)

// Confirmation is everything known about a match before any file is touched.
type Confirmation struct {
	Album  AlbumFolder
	Match  *Match
	Plan   *Plan
	Score  float64
	Diff   []tagmap.Diff
	Origin *originfile.OriginFile
}

type Confirmer interface {
	Confirm(ctx context.Context, c Confirmation) (bool, error)
}

type Config struct {
	FS        billy.Filesystem
	Tags      tags.Store
	Providers []Provider

	// FixInside reprocesses albums that already sit in their artist folder.
	FixInside bool

	// Confirmer is asked before an album is changed. Nil accepts every match.
	Confirmer Confirmer

	TagWeights    tagmap.TagWeights
	ResearchLinks *researchlink.Builder
	Notifications *notifications.Notifications
	Addons        []addon.Addon
}

type Status string

const (
	StatusOrganized Status = "organized"
	StatusSkipped   Status = "skipped"
	StatusDeclined  Status = "declined"
	StatusNotFound  Status = "not-found"
	StatusNoTracks  Status = "no-tracks"
	StatusFailed    Status = "failed"
)

type AlbumResult struct {
	Dir     string
	Status  Status
	Match   *Match
	DestDir string

	// Paths are the final paths of the reconciled tracks.
	Paths []string

	// Err is why the album was not organized. Failures are the per file
	// problems of an album that was.
	Err      error
	Failures []error
}

// ProcessAlbum runs scan, match, confirm, reconcile and organize for one
// album folder. It never returns early with an error, the result says how far
// it got.
func ProcessAlbum(ctx context.Context, cfg *Config, root, dir string) AlbumResult {
	res := AlbumResult{Dir: dir}

	album, err := Scan(cfg.FS, cfg.Tags, dir, root)
	if err != nil {
		res.Status, res.Err = StatusFailed, fmt.Errorf("scan: %w", err)
		return res
	}
	if len(album.Tracks) == 0 {
		res.Status, res.Err = StatusNoTracks, ErrNoQualifyingTracks
		return res
	}

	if isOrganized(album) && !cfg.FixInside {
		slog.DebugContext(ctx, "skipping organized album", "dir", dir)
		res.Status = StatusSkipped
		return res
	}

	match, err := MatchProviders(ctx, cfg.Providers, album)
	if err != nil {
		res.Status, res.Err = StatusFailed, fmt.Errorf("match: %w", err)
		return res
	}
	if match == nil {
		res.Status, res.Err = StatusNotFound, ErrNoReleaseFound
		logResearchLinks(ctx, cfg.ResearchLinks, album)
		cfg.Notifications.Sendf(ctx, notifications.NotFound, "no release found for %q by %q", album.Album, album.Artist)
		return res
	}
	res.Match = match

	plan, err := NewPlan(album, match.Release)
	if err != nil {
		res.Status, res.Err = StatusFailed, err
		return res
	}
	if !plan.Sequential {
		slog.WarnContext(ctx, "local track numbers are not sequential, pairing by file order", "dir", dir)
	}

	if cfg.Confirmer != nil {
		c := Confirmation{Album: album, Match: match, Plan: plan}
		c.Score, c.Diff = tagmap.DiffRelease(cfg.TagWeights, match.Release, localTags(album))
		if c.Origin, err = originfile.Find(cfg.FS, dir); err != nil {
			slog.WarnContext(ctx, "reading origin file", "dir", dir, "err", err)
		}

		cfg.Notifications.Sendf(ctx, notifications.NeedsInput, "%q by %q needs confirmation", album.Album, album.Artist)
		ok, err := cfg.Confirmer.Confirm(ctx, c)
		if err != nil {
			res.Status, res.Err = StatusFailed, fmt.Errorf("confirm: %w", err)
			return res
		}
		if !ok {
			res.Status, res.Err = StatusDeclined, ErrDeclined
			return res
		}
	}

	reconciled := Reconcile(cfg.FS, cfg.Tags, plan)
	res.Failures = append(res.Failures, reconciled.Failures...)

	dest := TargetDir(root, plan.Artist, resolvedAlbum(album, match.Release), match.Release.Year)
	organized, err := Organize(cfg.FS, dir, reconciled.Paths, dest)
	res.Failures = append(res.Failures, organized.Failures...)
	if err != nil {
		res.Status, res.Err = StatusFailed, fmt.Errorf("organize: %w", err)
		res.Paths = reconciled.Paths
		return res
	}

	res.Status = StatusOrganized
	res.DestDir = organized.Dir
	res.Paths = organized.Paths

	organizedAlbum := addon.Album{Dir: res.DestDir, Artist: plan.Artist, Title: match.Release.Title, Paths: res.Paths}
	for _, a := range cfg.Addons {
		if err := a.AfterOrganize(ctx, organizedAlbum); err != nil {
			slog.ErrorContext(ctx, "running addon", "addon", a, "dir", res.DestDir, "err", err)
			res.Failures = append(res.Failures, fmt.Errorf("addon %v: %w", a, err))
		}
	}

	slog.InfoContext(ctx, "organized album", "dir", dir, "dest", res.DestDir, "provider", match.Provider, "id", match.Release.ID, "failures", len(res.Failures))
	cfg.Notifications.Sendf(ctx, notifications.Complete, "organized %q into %s", match.Release.Title, res.DestDir)
	return res
}

// Process visits every album folder under root in natural order. A child of
// root without audio files of its own is taken to be an artist folder and its
// children are visited instead. Only failing to read root itself is an
// error.
func Process(ctx context.Context, cfg *Config, root string) ([]AlbumResult, error) {
	dirs, err := subdirs(cfg.FS, root)
	if err != nil {
		return nil, fmt.Errorf("read root: %w", err)
	}

	knownDests := map[string]struct{}{}

	var results []AlbumResult
	visit := func(dir string) {
		if _, ok := knownDests[dir]; ok {
			return
		}
		res := ProcessAlbum(ctx, cfg, root, dir)
		logResult(ctx, res)
		if res.DestDir != "" {
			knownDests[res.DestDir] = struct{}{}
		}
		results = append(results, res)
	}

	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if _, ok := knownDests[dir]; ok {
			continue
		}

		ok, err := hasAudio(cfg.FS, dir)
		if err != nil {
			slog.ErrorContext(ctx, "reading dir", "dir", dir, "err", err)
			continue
		}
		if ok {
			visit(dir)
			continue
		}

		albums, err := subdirs(cfg.FS, dir)
		if err != nil {
			slog.ErrorContext(ctx, "reading artist dir", "dir", dir, "err", err)
			continue
		}
		for _, album := range albums {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			visit(album)
		}
	}

	var failed int
	for _, r := range results {
		if r.Status == StatusFailed || len(r.Failures) > 0 {
			failed++
		}
	}
	if failed > 0 {
		cfg.Notifications.Sendf(ctx, notifications.RunError, "processed %d albums, %d with errors", len(results), failed)
	} else {
		cfg.Notifications.Sendf(ctx, notifications.RunComplete, "processed %d albums", len(results))
	}
	return results, nil
}

// ResolvedArtist is the artist the album is filed under: the release's own
// artists, without extra credits, or else the local artist.
func ResolvedArtist(album AlbumFolder, rel *release.Release) string {
	var names []string
	for _, n := range rel.Artists {
		if n != "" {
			names = append(names, n)
		}
	}
	if len(names) > 0 {
		return strings.Join(names, ", ")
	}
	return album.Artist
}

func resolvedAlbum(album AlbumFolder, rel *release.Release) string {
	if album.Album == UnknownAlbum && rel.Title != "" {
		return rel.Title
	}
	return album.Album
}

// isOrganized reports whether the album already sits in a folder named after
// its album artist, below root. Reconciling writes the album artist, so this
// holds for albums that were organized before.
func isOrganized(album AlbumFolder) bool {
	parent := filepath.Dir(album.Path)
	if parent == filepath.Clean(album.Root) {
		return false
	}
	artist := album.Artist
	if len(album.Tracks) > 0 {
		artist = cmp.Or(album.Tracks[0].Tags.Get(tags.AlbumArtist), artist)
	}
	return filepath.Base(parent) == fileutil.SafeName(artist)
}

func localTags(album AlbumFolder) []tags.Tags {
	var r []tags.Tags
	for _, t := range album.Tracks {
		r = append(r, t.Tags)
	}
	return r
}

func logResearchLinks(ctx context.Context, b *researchlink.Builder, album AlbumFolder) {
	if b == nil {
		return
	}
	links, err := b.Build(researchlink.Query{Artist: album.Artist, Album: album.Album, Track: album.FirstTitle})
	if err != nil {
		slog.WarnContext(ctx, "building research links", "err", err)
	}
	for _, l := range links {
		slog.InfoContext(ctx, "research link", "dir", album.Path, "name", l.Name, "url", l.URL)
	}
}

func logResult(ctx context.Context, res AlbumResult) {
	switch res.Status {
	case StatusFailed:
		slog.ErrorContext(ctx, "processing album", "dir", res.Dir, "err", res.Err)
	case StatusNotFound, StatusNoTracks:
		slog.WarnContext(ctx, "album not matched", "dir", res.Dir, "err", res.Err)
	case StatusDeclined:
		slog.InfoContext(ctx, "album declined", "dir", res.Dir)
	}
}

func subdirs(fsys billy.Filesystem, dir string) ([]string, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(dir, e.Name()))
		}
	}
	slices.SortFunc(dirs, natcmp.Compare)
	return dirs, nil
}
