package musicbrainz

import (
	"cmp"
	"context"
	"fmt"
	"strconv"

	"github.com/tidytag/tidytag/release"
)

const providerName = "musicbrainz"

func (c *MBClient) Name() string { return providerName }

// Search finds candidate releases. An album query searches releases directly,
// a track query searches recordings and collects the releases they appear on.
func (c *MBClient) Search(ctx context.Context, q release.Query) ([]release.Release, error) {
	if q.Track != "" {
		recordings, err := c.SearchRecording(ctx, RecordingQuery{Recording: q.Track, Artist: q.Artist})
		if err != nil {
			return nil, err
		}
		var rels []release.Release
		seen := map[string]struct{}{}
		for _, rec := range recordings {
			for _, sr := range rec.Releases {
				if _, ok := seen[sr.ID]; ok {
					continue
				}
				seen[sr.ID] = struct{}{}
				rels = append(rels, c.fromSearched(sr))
			}
		}
		return rels, nil
	}

	searched, err := c.SearchRelease(ctx, ReleaseQuery{Release: q.Album, Artist: q.Artist})
	if err != nil {
		return nil, err
	}
	var rels []release.Release
	for _, sr := range searched {
		rels = append(rels, c.fromSearched(sr))
	}
	return rels, nil
}

// Lookup fetches the full tracklist and credits for a search candidate.
func (c *MBClient) Lookup(ctx context.Context, candidate release.Release) (*release.Release, error) {
	if candidate.ID == "" {
		return nil, fmt.Errorf("lookup: %w", release.ErrNoID)
	}
	mbr, err := c.GetRelease(ctx, candidate.ID)
	if err != nil {
		return nil, err
	}
	return c.fromRelease(mbr), nil
}

func (c *MBClient) fromSearched(sr SearchedRelease) release.Release {
	return release.Release{
		Provider:   providerName,
		ID:         sr.ID,
		URL:        c.releaseURL(sr.ID),
		Title:      sr.Title,
		Year:       release.YearFromDate(sr.Date),
		Artists:    ArtistsNames(sr.Artists),
		TrackCount: sr.TrackCount,
	}
}

func (c *MBClient) fromRelease(mbr *Release) *release.Release {
	rel := &release.Release{
		Provider: providerName,
		ID:       mbr.ID,
		URL:      c.releaseURL(mbr.ID),
		Title:    mbr.Title,
		Artists:  ArtistsNames(mbr.Artists),
	}

	switch {
	case !mbr.Date.IsZero():
		rel.Year = mbr.Date.Year()
	case !mbr.ReleaseGroup.FirstReleaseDate.IsZero():
		rel.Year = mbr.ReleaseGroup.FirstReleaseDate.Year()
	}

	seenLabel := map[string]struct{}{}
	for _, li := range mbr.LabelInfo {
		if li.Label.Name == "" {
			continue
		}
		if _, ok := seenLabel[li.Label.Name]; ok {
			continue
		}
		seenLabel[li.Label.Name] = struct{}{}
		rel.Labels = append(rel.Labels, li.Label.Name)
	}

	for _, g := range AnyGenres(mbr) {
		rel.Genres = append(rel.Genres, g.Name)
	}

	for i, m := range mbr.Media {
		var disc int
		if len(mbr.Media) > 1 {
			disc = cmp.Or(m.Position, i+1)
		}
		for _, t := range MediaTracks(m) {
			pos := t.Number
			if pos == "" {
				pos = strconv.Itoa(t.Position)
			}
			title := t.Title
			if title == "" {
				title = t.Recording.Title
			}
			rel.Tracks = append(rel.Tracks, release.Track{Disc: disc, Position: pos, Title: title})
		}
	}
	rel.TrackCount = len(rel.Tracks)
	return rel
}

func (c *MBClient) releaseURL(id string) string {
	return "https://musicbrainz.org/release/" + id
}
