package tidytag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"

	"github.com/tidytag/tidytag/release"
)

// Provider is a remote catalog. Search returns candidates in the provider's
// own order with summary data only, Lookup returns the full release with its
// tracklist.
type Provider interface {
	Name() string
	Search(ctx context.Context, q release.Query) ([]release.Release, error)
	Lookup(ctx context.Context, candidate release.Release) (*release.Release, error)
}

type Strategy string

const (
	StrategyAlbum Strategy = "album"
	StrategyTrack Strategy = "track"
)

type Match struct {
	Provider string
	Strategy Strategy
	Release  *release.Release
}

// MatchProviders tries each provider in turn and returns the first match. A
// nil match with a nil error means no provider had a release with the right
// number of tracks. Errors from one provider don't stop the next from being
// tried, but are returned if nothing matched.
func MatchProviders(ctx context.Context, providers []Provider, album AlbumFolder) (*Match, error) {
	var errs []error
	for _, p := range providers {
		m, err := MatchRelease(ctx, p, album)
		if err != nil {
			slog.WarnContext(ctx, "provider failed", "provider", p.Name(), "dir", album.Path, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		if m != nil {
			return m, nil
		}
	}
	return nil, errors.Join(errs...)
}

// MatchRelease searches p by artist and album, then by artist and the first
// track title. The first candidate with exactly as many tracks as the album
// has qualifying files is accepted. A candidate whose lookup fails is
// skipped; those errors are only returned when nothing matched.
func MatchRelease(ctx context.Context, p Provider, album AlbumFolder) (*Match, error) {
	want := len(album.Tracks)
	if want == 0 {
		return nil, nil
	}

	candidates, err := p.Search(ctx, release.Query{Artist: album.Artist, Album: album.Album})
	if err != nil {
		return nil, fmt.Errorf("search album: %w", err)
	}
	candidates = preferTitle(candidates, album.Album)

	rel, lookupErrs := firstWithCount(ctx, p, candidates, want)
	if rel != nil {
		return &Match{Provider: p.Name(), Strategy: StrategyAlbum, Release: rel}, nil
	}

	if album.FirstTitle == "" {
		return nil, errors.Join(lookupErrs...)
	}
	slog.InfoContext(ctx, "no album match, searching by track", "provider", p.Name(), "dir", album.Path, "track", album.FirstTitle)

	candidates, err = p.Search(ctx, release.Query{Artist: album.Artist, Track: album.FirstTitle})
	if err != nil {
		return nil, errors.Join(append(lookupErrs, fmt.Errorf("search track: %w", err))...)
	}

	rel, errs := firstWithCount(ctx, p, candidates, want)
	if rel != nil {
		return &Match{Provider: p.Name(), Strategy: StrategyTrack, Release: rel}, nil
	}
	return nil, errors.Join(append(lookupErrs, errs...)...)
}

func firstWithCount(ctx context.Context, p Provider, candidates []release.Release, want int) (*release.Release, []error) {
	var errs []error
	for _, c := range candidates {
		if c.TrackCount > 0 && c.TrackCount != want {
			slog.DebugContext(ctx, "skipping candidate", "provider", p.Name(), "id", c.ID, "tracks", c.TrackCount, "want", want)
			continue
		}
		rel, err := p.Lookup(ctx, c)
		if err != nil {
			slog.WarnContext(ctx, "looking up candidate", "provider", p.Name(), "id", c.ID, "err", err)
			errs = append(errs, fmt.Errorf("lookup %s: %w", c.ID, err))
			continue
		}
		if len(rel.Tracks) != want {
			slog.DebugContext(ctx, "skipping candidate", "provider", p.Name(), "id", c.ID, "tracks", len(rel.Tracks), "want", want)
			continue
		}
		return rel, nil
	}
	return nil, errs
}

// preferTitle moves candidates whose title equals title, ignoring case and
// whitespace, to the front. Order is otherwise kept.
func preferTitle(candidates []release.Release, title string) []release.Release {
	fold := cases.Fold()
	key := normTitle(fold, title)
	var exact, rest []release.Release
	for _, c := range candidates {
		if normTitle(fold, c.Title) == key {
			exact = append(exact, c)
			continue
		}
		rest = append(rest, c)
	}
	return append(exact, rest...)
}

func normTitle(fold cases.Caser, s string) string {
	return fold.String(strings.Join(strings.Fields(s), " "))
}
