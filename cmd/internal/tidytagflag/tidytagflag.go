package tidytagflag

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.senan.xyz/flagconf"

	"github.com/tidytag/tidytag"
	"github.com/tidytag/tidytag/addon"
	"github.com/tidytag/tidytag/discogs"
	"github.com/tidytag/tidytag/musicbrainz"
	"github.com/tidytag/tidytag/notifications"
	"github.com/tidytag/tidytag/researchlink"
	"github.com/tidytag/tidytag/tagmap"
)

func Parse() {
	userConfig, err := os.UserConfigDir()
	if err != nil {
		panic(err)
	}

	defaultConfigPath := filepath.Join(userConfig, tidytag.Name, "config")
	configPath := flag.String("config-path", defaultConfigPath, "Path to config file")

	printVersion := flag.Bool("version", false, "Print the version and exit")
	printConfig := flag.Bool("config", false, "Print the parsed config and exit")

	flag.Parse()
	flagconf.ReadEnvPrefix = func(_ *flag.FlagSet) string { return tidytag.Name }
	flagconf.ParseEnv()
	flagconf.ParseConfig(*configPath)

	if *printVersion {
		fmt.Printf("%s %s\n", flag.CommandLine.Name(), tidytag.Version)
		os.Exit(0)
	}
	if *printConfig {
		flag.VisitAll(func(f *flag.Flag) {
			fmt.Printf("%-20s %s\n", f.Name, f.Value)
		})
		os.Exit(0)
	}
}

// Logging installs the default slog logger. The returned func exits the
// process, with status 1 if anything was logged at error level.
func Logging() (exit func()) {
	var logLevel slog.LevelVar
	flag.TextVar(&logLevel, "log-level", &logLevel, "Set the logging level")

	h := &slogErrorHandler{
		Handler: slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &logLevel}),
	}

	logger := slog.New(h)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(slog.LevelError)

	return func() {
		if h.hadSlogError.Load() {
			os.Exit(1)
		}
		os.Exit(0)
	}
}

type slogErrorHandler struct {
	slog.Handler
	hadSlogError atomic.Bool
}

func (n *slogErrorHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level == slog.LevelError {
		n.hadSlogError.Store(true)
	}
	return n.Handler.Handle(ctx, r)
}

func Config() *tidytag.Config {
	var cfg tidytag.Config

	flag.BoolVar(&cfg.FixInside, "fix-inside", true, "Also reprocess albums which are already inside their artist folder")
	flag.Var(&addonsParser{&cfg.Addons}, "addon", "Run an addon after an album is organized, eg \"subproc cmd <dir> <files>\" (stackable)")

	cfg.TagWeights = tagmap.TagWeights{}
	flag.Var(&tagWeightsParser{cfg.TagWeights}, "tag-weight", "Adjust distance weighting for a tag (0 to ignore) (stackable)")

	cfg.ResearchLinks = &researchlink.Builder{}
	flag.Var(&researchLinkParser{cfg.ResearchLinks}, "research-link", "Define a helper URL to help find information about an unmatched release (stackable)")

	cfg.Notifications = &notifications.Notifications{}
	flag.Var(&notificationsParser{cfg.Notifications}, "notification-uri", "Add a shoutrrr notification URI for an event (stackable)")

	return &cfg
}

// Providers holds the configured clients. Call List after parsing.
type Providers struct {
	Discogs     discogs.Client
	MusicBrainz musicbrainz.MBClient

	names []string
}

func ProviderFlags() *Providers {
	var p Providers

	flag.Var(&providersParser{&p.names}, "provider", "Release provider to search, in order (discogs, musicbrainz) (stackable)")

	flag.StringVar(&p.Discogs.BaseURL, "discogs-base-url", discogs.DefaultBaseURL, "Discogs base URL")
	flag.StringVar(&p.Discogs.Token, "discogs-token", "", "Discogs personal access token")
	flag.DurationVar(&p.Discogs.RateLimit, "discogs-rate-limit", 1*time.Second, "Discogs rate limit duration")

	flag.StringVar(&p.MusicBrainz.BaseURL, "mb-base-url", musicbrainz.DefaultBaseURL, "MusicBrainz base URL")
	flag.DurationVar(&p.MusicBrainz.RateLimit, "mb-rate-limit", 1*time.Second, "MusicBrainz rate limit duration")

	return &p
}

// List is the providers in search order. With none named, Discogs is used
// first when it has a token, then MusicBrainz.
func (p *Providers) List() []tidytag.Provider {
	names := p.names
	if len(names) == 0 {
		if p.Discogs.Token != "" {
			names = append(names, providerDiscogs)
		}
		names = append(names, providerMusicBrainz)
	}
	var r []tidytag.Provider
	for _, n := range names {
		switch n {
		case providerDiscogs:
			r = append(r, &p.Discogs)
		case providerMusicBrainz:
			r = append(r, &p.MusicBrainz)
		}
	}
	return r
}

const (
	providerDiscogs     = "discogs"
	providerMusicBrainz = "musicbrainz"
)

var _ flag.Value = (*providersParser)(nil)
var _ flag.Value = (*researchLinkParser)(nil)
var _ flag.Value = (*notificationsParser)(nil)
var _ flag.Value = (*tagWeightsParser)(nil)
var _ flag.Value = (*addonsParser)(nil)

type providersParser struct{ names *[]string }

func (p *providersParser) Set(value string) error {
	value = strings.ToLower(strings.TrimSpace(value))
	switch value {
	case providerDiscogs, providerMusicBrainz:
	default:
		return fmt.Errorf("unknown provider %q", value)
	}
	if !slices.Contains(*p.names, value) {
		*p.names = append(*p.names, value)
	}
	return nil
}
func (p providersParser) String() string {
	if p.names == nil {
		return ""
	}
	return strings.Join(*p.names, ", ")
}

type researchLinkParser struct{ *researchlink.Builder }

func (r *researchLinkParser) Set(value string) error {
	name, value, _ := strings.Cut(strings.TrimSpace(value), " ")
	return r.Add(name, strings.TrimSpace(value))
}
func (r researchLinkParser) String() string {
	if r.Builder == nil {
		return ""
	}
	return strings.Join(r.Builder.Names(), ", ")
}

type notificationsParser struct{ *notifications.Notifications }

func (n *notificationsParser) Set(value string) error {
	eventsRaw, uri, ok := strings.Cut(value, " ")
	if !ok {
		return fmt.Errorf("invalid notification uri format. expected eg \"ev1,ev2 uri\"")
	}
	var lineErrs []error
	for _, ev := range strings.Split(eventsRaw, ",") {
		ev, uri = strings.TrimSpace(ev), strings.TrimSpace(uri)
		lineErrs = append(lineErrs, n.AddURI(notifications.Event(ev), uri))
	}
	return errors.Join(lineErrs...)
}
func (n notificationsParser) String() string {
	if n.Notifications == nil {
		return ""
	}
	var parts []string
	n.Notifications.IterMappings(func(e notifications.Event, uri string) {
		url, _ := url.Parse(uri)
		parts = append(parts, fmt.Sprintf("%s: %s://%s/...", e, url.Scheme, url.Host))
	})
	return strings.Join(parts, ", ")
}

type tagWeightsParser struct{ tagmap.TagWeights }

func (tw tagWeightsParser) Set(value string) error {
	const sep = " "
	i := strings.LastIndex(value, sep)
	if i < 0 {
		return fmt.Errorf("invalid tag weight format. expected eg \"tag name 0.5\"")
	}
	tag := strings.TrimSpace(value[:i])
	weightStr := strings.TrimSpace(value[i+len(sep):])
	weight, err := strconv.ParseFloat(weightStr, 64)
	if err != nil {
		return fmt.Errorf("parse weight: %w", err)
	}
	tw.TagWeights[tag] = weight
	return nil
}
func (tw tagWeightsParser) String() string {
	var parts []string
	for a, b := range tw.TagWeights {
		parts = append(parts, fmt.Sprintf("%s: %.2f", a, b))
	}
	return strings.Join(parts, ", ")
}

type addonsParser struct {
	addons *[]addon.Addon
}

func (a *addonsParser) Set(value string) error {
	name, rest, _ := strings.Cut(strings.TrimLeft(value, " "), " ")
	addn, err := addon.New(name, rest)
	if err != nil {
		return fmt.Errorf("addon %q: %w", name, err)
	}
	*a.addons = append(*a.addons, addn)
	return nil
}
func (a addonsParser) String() string {
	if a.addons == nil {
		return ""
	}
	var parts []string
	for _, a := range *a.addons {
		parts = append(parts, fmt.Sprint(a))
	}
	return strings.Join(parts, ", ")
}
