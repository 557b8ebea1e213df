package testcmds

import (
	"bytes"
	"embed"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"

	"github.com/tidytag/tidytag/clientutil"
	"github.com/tidytag/tidytag/fileutil"
	"github.com/tidytag/tidytag/tags"
	"github.com/tidytag/tidytag/tags/tagstest"
)

//go:embed testdata/responses
var responses embed.FS

// Store reads and writes text encoded tags on the real filesystem.
var Store = &tagstest.Store{FS: osfs.Default}

// RegisterTransport serves provider requests from testdata/responses. A
// request for /a/b is answered with a/b.json. Searches are answered with
// a/b/<query>.json, where the query is slugged, or with an empty result.
func RegisterTransport() {
	os.Setenv("TIDYTAG_MB_BASE_URL", "http://musicbrainz.test/musicbrainz/ws/2/")
	os.Setenv("TIDYTAG_MB_RATE_LIMIT", "0")
	os.Setenv("TIDYTAG_DISCOGS_BASE_URL", "http://discogs.test/discogs/")
	os.Setenv("TIDYTAG_DISCOGS_RATE_LIMIT", "0")

	http.DefaultTransport = clientutil.RoundTripFunc(serveResponse)
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

func responsePath(r *http.Request) (name string, search bool) {
	p := path.Join("testdata/responses", r.URL.Path)
	if q := r.URL.Query().Get("query"); q != "" {
		return path.Join(p, slug(q)+".json"), true
	}
	if strings.HasSuffix(r.URL.Path, "/search") {
		var parts []string
		for _, k := range []string{"artist", "release_title", "track"} {
			if v := r.URL.Query().Get(k); v != "" {
				parts = append(parts, k, v)
			}
		}
		return path.Join(p, slug(strings.Join(parts, " "))+".json"), true
	}
	return p + ".json", false
}

func slug(s string) string {
	return strings.Trim(nonAlnum.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

func serveResponse(r *http.Request) (*http.Response, error) {
	name, search := responsePath(r)
	data, err := responses.ReadFile(name)
	switch {
	case errors.Is(err, fs.ErrNotExist) && search:
		data = []byte(`{}`)
	case errors.Is(err, fs.ErrNotExist):
		return response(r, http.StatusNotFound, nil), nil
	case err != nil:
		return nil, err
	}
	return response(r, http.StatusOK, data), nil
}

func response(r *http.Request, code int, body []byte) *http.Response {
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", code, http.StatusText(code)),
		StatusCode:    code,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": {"application/json"}},
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       r,
	}
}

// Tag writes or checks tags. Usage is
//
//	tag write|check <path or glob> key v1 v2 , key v1
func Tag() {
	flag.Parse()

	op := flag.Arg(0)
	switch op {
	case "write", "check":
	default:
		log.Fatalf("bad op %s", op)
	}

	pat := flag.Arg(1)
	paths := parsePattern(pat)
	if len(paths) == 0 {
		log.Fatalf("no paths to match pattern")
	}

	pairs := parseTagMap(flag.Args()[2:])

	var exit int
	for _, p := range paths {
		switch op {
		case "write":
			if err := ensureFile(p); err != nil {
				log.Fatalf("ensure file: %v", err)
			}
			t := tags.FromRaw(pairs)
			if err := Store.Write(p, t); err != nil {
				log.Fatalf("write tags: %v", err)
			}
		case "check":
			t, err := Store.Read(p)
			if err != nil {
				log.Fatalf("read tags: %v", err)
			}
			for k, vs := range pairs {
				if got := t.Values(k); !slices.Equal(vs, got) {
					log.Printf("%s exp %q got %q", p, vs, got)
					exit = 1
				}
			}
		}
	}

	os.Exit(exit)
}

func Find() {
	maxDepth := flag.Int("max-depth", -1, "")
	flag.Parse()

	paths := flag.Args()
	sort.Strings(paths)

	for _, p := range paths {
		err := filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			path = filepath.Clean(path)
			if *maxDepth != -1 && strings.Count(path, string(filepath.Separator)) > *maxDepth {
				return nil
			}
			fmt.Println(path)
			return nil
		})
		if err != nil {
			log.Fatal(err)
		}
	}
}

func Touch() {
	flag.Parse()

	for _, p := range flag.Args() {
		if err := os.MkdirAll(filepath.Dir(p), os.ModePerm); err != nil {
			log.Fatalf("mkdirall: %v", err)
		}
		f, err := os.Create(p)
		if err != nil {
			log.Fatalf("err creating: %v", err)
		}
		f.Close()
	}
}

func parsePattern(pat string) []string {
	// assume the file exists if the pattern doesn't look like a glob
	if fileutil.GlobEscape(pat) == pat {
		return []string{pat}
	}
	paths, _ := filepath.Glob(pat)
	return paths
}

func parseTagMap(args []string) map[string][]string {
	r := make(map[string][]string)
	var k string
	for _, v := range args {
		if v == "," {
			k = ""
			continue
		}
		if k == "" {
			k = v
			r[k] = nil
			continue
		}
		r[k] = append(r[k], v)
	}
	return r
}

func ensureFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return tagstest.WriteFile(Store.FS, path)
}
