package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/araddon/dateparse"

	"github.com/tidytag/tidytag/clientutil"
)

const DefaultBaseURL = "https://musicbrainz.org/ws/2/"

// searchLimit bounds how many candidates a search returns. Each one may cost
// a rate limited lookup.
const searchLimit = 10

type MBClient struct {
	BaseURL   string
	RateLimit time.Duration

	initOnce   sync.Once
	HTTPClient *http.Client
}

func (c *MBClient) request(ctx context.Context, r *http.Request, dest any) error {
	c.initOnce.Do(func() {
		c.HTTPClient = clientutil.Wrap(c.HTTPClient, clientutil.Chain(
			clientutil.WithCache(),
			clientutil.WithRateLimit(c.RateLimit),
		))
	})

	r = r.WithContext(ctx)
	resp, err := c.HTTPClient.Do(r)
	if err != nil {
		return fmt.Errorf("make request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("musicbrainz returned non 2xx: %w", StatusError(resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *MBClient) GetRelease(ctx context.Context, mbid string) (*Release, error) {
	urlV := url.Values{}
	urlV.Set("fmt", "json")
	urlV.Set("inc", "recordings+artist-credits+labels+release-groups+genres")

	url, _ := url.Parse(joinPath(c.BaseURL, "release", mbid))
	url.RawQuery = urlV.Encode()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url.String(), nil)

	var sr Release
	if err := c.request(ctx, req, &sr); err != nil {
		return nil, fmt.Errorf("request release: %w", err)
	}

	return &sr, nil
}

type ReleaseQuery struct {
	Release string
	Artist  string
}

// SearchRelease returns release search results in score order. No query
// terms means no results.
func (c *MBClient) SearchRelease(ctx context.Context, q ReleaseQuery) ([]SearchedRelease, error) {
	// https://musicbrainz.org/doc/MusicBrainz_API/Search#Release

	var params []string
	if q.Release != "" {
		params = append(params, field("release", strings.ToLower(q.Release)))
	}
	if q.Artist != "" {
		params = append(params, field("artist", strings.ToLower(q.Artist)))
	}
	if len(params) == 0 {
		return nil, nil
	}

	var sr struct {
		Releases []SearchedRelease `json:"releases"`
	}
	if err := c.search(ctx, "release", params, &sr); err != nil {
		return nil, fmt.Errorf("search release: %w", err)
	}
	return sr.Releases, nil
}

type RecordingQuery struct {
	Recording string
	Artist    string
}

// SearchRecording returns recordings matching a track title. Each carries the
// releases it appears on.
func (c *MBClient) SearchRecording(ctx context.Context, q RecordingQuery) ([]SearchedRecording, error) {
	// https://musicbrainz.org/doc/MusicBrainz_API/Search#Recording

	if q.Recording == "" {
		return nil, nil
	}
	params := []string{field("recording", strings.ToLower(q.Recording))}
	if q.Artist != "" {
		params = append(params, field("artist", strings.ToLower(q.Artist)))
	}

	var sr struct {
		Recordings []SearchedRecording `json:"recordings"`
	}
	if err := c.search(ctx, "recording", params, &sr); err != nil {
		return nil, fmt.Errorf("search recording: %w", err)
	}
	return sr.Recordings, nil
}

func (c *MBClient) search(ctx context.Context, entity string, params []string, dest any) error {
	urlV := url.Values{}
	urlV.Set("fmt", "json")
	urlV.Set("limit", fmt.Sprint(searchLimit))
	urlV.Set("query", strings.Join(params, " "))

	url, _ := url.Parse(joinPath(c.BaseURL, entity))
	url.RawQuery = urlV.Encode()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url.String(), nil)

	return c.request(ctx, req, dest)
}

type SearchedRelease struct {
	ID         string         `json:"id"`
	Score      int            `json:"score"`
	Title      string         `json:"title"`
	Date       string         `json:"date"`
	TrackCount int            `json:"track-count"`
	Artists    []ArtistCredit `json:"artist-credit"`
}

type SearchedRecording struct {
	ID       string            `json:"id"`
	Score    int               `json:"score"`
	Title    string            `json:"title"`
	Releases []SearchedRelease `json:"releases"`
}

type ArtistCredit struct {
	Name       string `json:"name"`
	JoinPhrase string `json:"joinphrase"`
	Artist     Artist `json:"artist"`
}

type Artist struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	SortName string  `json:"sort-name"`
	Genres   []Genre `json:"genres"`
}

type Genre struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type Track struct {
	ID        string `json:"id"`
	Length    int    `json:"length"`
	Recording struct {
		ID      string         `json:"id"`
		Title   string         `json:"title"`
		Genres  []Genre        `json:"genres"`
		Artists []ArtistCredit `json:"artist-credit"`
	} `json:"recording"`
	Number   string         `json:"number"`
	Position int            `json:"position"`
	Title    string         `json:"title"`
	Artists  []ArtistCredit `json:"artist-credit"`
}

type Media struct {
	TrackCount int     `json:"track-count"`
	Tracks     []Track `json:"tracks"`
	Pregap     *Track  `json:"pregap,omitempty"`
	Format     string  `json:"format"`
	Position   int     `json:"position"`
}

type LabelInfo struct {
	Label         Label  `json:"label"`
	CatalogNumber string `json:"catalog-number"`
}

type Label struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Genres []Genre `json:"genres"`
}

type Release struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Genres       []Genre        `json:"genres"`
	Artists      []ArtistCredit `json:"artist-credit"`
	Date         AnyTime        `json:"date"`
	Media        []Media        `json:"media"`
	ReleaseGroup ReleaseGroup   `json:"release-group"`
	LabelInfo    []LabelInfo    `json:"label-info"`
}

type ReleaseGroup struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	FirstReleaseDate AnyTime        `json:"first-release-date"`
	Genres           []Genre        `json:"genres"`
	Artists          []ArtistCredit `json:"artist-credit"`
}

func ArtistsNames(credits []ArtistCredit) []string {
	var r []string
	for _, c := range credits {
		r = append(r, c.Artist.Name)
	}
	return r
}

// MediaTracks is the tracks of one medium, pregap first.
func MediaTracks(media Media) []Track {
	var tracks []Track
	if media.Pregap != nil {
		tracks = append(tracks, *media.Pregap)
	}
	return append(tracks, media.Tracks...)
}

func AnyGenres(release *Release) (genres []Genre) {
	defer func() {
		genres = mergeAndSortGenres(genres)
	}()

	// try release and artist first
	genres = append(genres, release.Genres...)
	genres = append(genres, release.ReleaseGroup.Genres...)
	for _, a := range release.Artists {
		genres = append(genres, a.Artist.Genres...)
	}
	if len(genres) > 0 {
		return genres
	}

	// fallback to label
	for _, l := range release.LabelInfo {
		genres = append(genres, l.Label.Genres...)
	}
	return genres
}

type AnyTime struct {
	time.Time
}

func (at *AnyTime) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	if str == "" {
		return nil
	}
	var err error
	at.Time, err = dateparse.ParseAny(str)
	if err != nil {
		return fmt.Errorf("parse any: %w", err)
	}
	return nil
}

func mergeAndSortGenres(genres []Genre) []Genre {
	var order []string
	byName := map[string]*Genre{}
	for _, g := range genres {
		if g.Name == "" {
			continue
		}
		if e, ok := byName[g.Name]; ok {
			e.Count += g.Count
			continue
		}
		byName[g.Name] = &g
		order = append(order, g.Name)
	}
	var out []Genre
	for _, name := range order {
		out = append(out, *byName[name])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	return out
}

// https://lucene.apache.org/core/7_7_2/queryparser/org/apache/lucene/queryparser/classic/package-summary.html#Escaping_Special_Characters
var escapeLucene *strings.Replacer

func init() {
	var pairs []string
	for _, c := range []string{`&&`, `||`, `+`, `-`, `!`, `(`, `)`, `{`, `}`, `[`, `]`, `^`, `"`, `~`, `*`, `?`, `:`, `\`, `/`} {
		pairs = append(pairs, c, `\`+c)
	}
	escapeLucene = strings.NewReplacer(pairs...)
}

func field(k string, v any) string {
	vstr := fmt.Sprint(v)
	vstr = escapeLucene.Replace(vstr)
	return fmt.Sprintf("%s:(%v)", k, vstr)
}

func joinPath(base string, p ...string) string {
	r, _ := url.JoinPath(base, p...)
	return r
}
