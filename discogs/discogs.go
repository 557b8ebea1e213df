// Package discogs is a client for the parts of the Discogs database API
// needed to find a release and read its tracklist.
package discogs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tidytag/tidytag/clientutil"
	"github.com/tidytag/tidytag/release"
)

const DefaultBaseURL = "https://api.discogs.com/"

const providerName = "discogs"

const perPage = 10

type Client struct {
	BaseURL   string
	Token     string
	RateLimit time.Duration

	initOnce   sync.Once
	HTTPClient *http.Client
}

type StatusError int

func (se StatusError) Error() string {
	return strconv.Itoa(int(se))
}

func (c *Client) request(ctx context.Context, u string, dest any) error {
	c.initOnce.Do(func() {
		var auth string
		if c.Token != "" {
			auth = "Discogs token=" + c.Token
		}
		c.HTTPClient = clientutil.Wrap(c.HTTPClient, clientutil.Chain(
			clientutil.WithCache(),
			clientutil.WithRateLimit(c.RateLimit),
			clientutil.WithHeader("Authorization", auth),
		))
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("make request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("discogs returned non 2xx: %w", StatusError(resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type SearchResult struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Year  string `json:"year"`
	URI   string `json:"uri"`
}

// SearchReleases runs a database search restricted to releases. Empty
// parameters are left out of the query.
func (c *Client) SearchReleases(ctx context.Context, artist, title, track string) ([]SearchResult, error) {
	if artist == "" && title == "" && track == "" {
		return nil, nil
	}

	urlV := url.Values{}
	urlV.Set("type", "release")
	urlV.Set("per_page", strconv.Itoa(perPage))
	if artist != "" {
		urlV.Set("artist", artist)
	}
	if title != "" {
		urlV.Set("release_title", title)
	}
	if track != "" {
		urlV.Set("track", track)
	}

	u, _ := url.JoinPath(c.BaseURL, "database", "search")
	var sr struct {
		Results []SearchResult `json:"results"`
	}
	if err := c.request(ctx, u+"?"+urlV.Encode(), &sr); err != nil {
		return nil, fmt.Errorf("search releases: %w", err)
	}
	return sr.Results, nil
}

type Name struct {
	Name string `json:"name"`
}

type TrackEntry struct {
	Position string `json:"position"`
	Title    string `json:"title"`
	Type     string `json:"type_"`
}

type Release struct {
	ID           int          `json:"id"`
	Title        string       `json:"title"`
	Year         int          `json:"year"`
	URI          string       `json:"uri"`
	Artists      []Name       `json:"artists"`
	ExtraArtists []Name       `json:"extraartists"`
	Labels       []Name       `json:"labels"`
	Genres       []string     `json:"genres"`
	Tracklist    []TrackEntry `json:"tracklist"`
}

func (c *Client) GetRelease(ctx context.Context, id string) (*Release, error) {
	u, _ := url.JoinPath(c.BaseURL, "releases", id)
	var r Release
	if err := c.request(ctx, u, &r); err != nil {
		return nil, fmt.Errorf("get release: %w", err)
	}
	return &r, nil
}

func (c *Client) Name() string { return providerName }

func (c *Client) Search(ctx context.Context, q release.Query) ([]release.Release, error) {
	results, err := c.SearchReleases(ctx, q.Artist, q.Album, q.Track)
	if err != nil {
		return nil, err
	}
	var rels []release.Release
	for _, r := range results {
		artist, title := SplitTitle(r.Title)
		rel := release.Release{
			Provider: providerName,
			ID:       strconv.Itoa(r.ID),
			URL:      releaseURL(r.ID, r.URI),
			Title:    title,
			Year:     release.YearFromDate(r.Year),
		}
		if artist != "" {
			rel.Artists = []string{artist}
		}
		rels = append(rels, rel)
	}
	return rels, nil
}

func (c *Client) Lookup(ctx context.Context, candidate release.Release) (*release.Release, error) {
	if candidate.ID == "" {
		return nil, fmt.Errorf("lookup: %w", release.ErrNoID)
	}
	r, err := c.GetRelease(ctx, candidate.ID)
	if err != nil {
		return nil, err
	}

	rel := &release.Release{
		Provider:     providerName,
		ID:           strconv.Itoa(r.ID),
		URL:          releaseURL(r.ID, r.URI),
		Title:        r.Title,
		Year:         r.Year,
		Artists:      names(r.Artists),
		ExtraArtists: names(r.ExtraArtists),
		Labels:       dedupe(names(r.Labels)),
		Genres:       r.Genres,
	}
	for _, t := range r.Tracklist {
		switch t.Type {
		case "heading", "index":
			continue
		}
		track := release.Track{Position: t.Position, Title: t.Title}
		if disc, pos, ok := release.SplitDiscPosition(t.Position); ok {
			track.Disc, track.Position = disc, pos
		}
		rel.Tracks = append(rel.Tracks, track)
	}
	if rel.Discs() == 1 {
		for i := range rel.Tracks {
			rel.Tracks[i].Disc = 0
		}
	}
	rel.TrackCount = len(rel.Tracks)
	return rel, nil
}

// SplitTitle splits a search result title of the form "Artist - Title".
func SplitTitle(s string) (artist, title string) {
	artist, title, ok := strings.Cut(s, " - ")
	if !ok {
		return "", s
	}
	return strings.TrimSpace(artist), strings.TrimSpace(title)
}

func releaseURL(id int, uri string) string {
	if strings.HasPrefix(uri, "http") {
		return uri
	}
	return "https://www.discogs.com/release/" + strconv.Itoa(id)
}

func names(ns []Name) []string {
	var r []string
	for _, n := range ns {
		if n.Name != "" {
			r = append(r, n.Name)
		}
	}
	return r
}

func dedupe(s []string) []string {
	var r []string
	seen := map[string]struct{}{}
	for _, v := range s {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		r = append(r, v)
	}
	return r
}
