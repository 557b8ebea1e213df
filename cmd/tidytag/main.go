package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/go-git/go-billy/v5/osfs"
	"go.senan.xyz/table/table"

	"github.com/tidytag/tidytag"
	"github.com/tidytag/tidytag/clientutil"
	"github.com/tidytag/tidytag/cmd/internal/tidytagflag"
	"github.com/tidytag/tidytag/tagmap"
	"github.com/tidytag/tidytag/tags"
)

// replaced while testing
var tg tags.Store = tags.TagLib{}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage:\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  $ %s [<options>] <library root>\n", flag.CommandLine.Name())
		fmt.Fprintf(flag.CommandLine.Output(), "\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Options:\n")
		flag.PrintDefaults()
	}
}

func main() {
	defer tidytagflag.Logging()()

	cfg := tidytagflag.Config()
	providers := tidytagflag.ProviderFlags()
	yes := flag.Bool("yes", false, "Accept every match without asking")
	tidytagflag.Parse()

	root := flag.Arg(0)
	if root == "" {
		flag.Usage()
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	clientutil.Init(fmt.Sprintf("%s/%s", tidytag.Name, tidytag.Version))

	root, err := filepath.Abs(root)
	if err != nil {
		slog.ErrorContext(ctx, "make root absolute", "err", err)
		return
	}

	cfg.FS = osfs.Default
	cfg.Tags = tg
	cfg.Providers = providers.List()
	if !*yes {
		cfg.Confirmer = &promptConfirmer{in: bufio.NewReader(os.Stdin), out: os.Stdout}
	}

	results, err := tidytag.Process(ctx, cfg, root)
	if err != nil {
		slog.ErrorContext(ctx, "processing library", "root", root, "err", err)
		return
	}

	counts := map[tidytag.Status]int{}
	for _, r := range results {
		counts[r.Status]++
		for _, f := range r.Failures {
			slog.ErrorContext(ctx, "album sub-failure", "dir", r.Dir, "err", f)
		}
	}
	slog.InfoContext(ctx, "done", "albums", len(results),
		string(tidytag.StatusOrganized), counts[tidytag.StatusOrganized],
		string(tidytag.StatusSkipped), counts[tidytag.StatusSkipped],
		string(tidytag.StatusNotFound), counts[tidytag.StatusNotFound],
		string(tidytag.StatusDeclined), counts[tidytag.StatusDeclined],
		string(tidytag.StatusFailed), counts[tidytag.StatusFailed],
	)
}

type promptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

func (p *promptConfirmer) Confirm(_ context.Context, c tidytag.Confirmation) (bool, error) {
	rel := c.Match.Release

	fmt.Fprintf(p.out, "\n%s\n", c.Album.Path)
	fmt.Fprintf(p.out, "matched %.2f%% with %s %s (%s)\n", c.Score, c.Match.Provider, rel.ID, c.Match.Strategy)
	if rel.URL != "" {
		fmt.Fprintf(p.out, "  %s\n", rel.URL)
	}
	fmt.Fprintf(p.out, "  %q by %q, year %s, %d local / %d remote tracks\n",
		rel.Title, strings.Join(rel.ArtistNames(), ", "), orNone(rel.YearString()), len(c.Album.Tracks), len(rel.Tracks))
	if c.Origin != nil {
		fmt.Fprintf(p.out, "  origin: %s\n", c.Origin)
		if c.Origin.Permalink != "" {
			fmt.Fprintf(p.out, "  origin link: %s\n", c.Origin.Permalink)
		}
	}
	if !c.Plan.Sequential {
		fmt.Fprintf(p.out, "  warning: local track numbers are not sequential, pairing by file order\n")
	}

	t := table.NewStringWriter()
	for _, d := range c.Diff {
		fmt.Fprintf(t, "%s\t%s\t%s\n", d.Field, tagmap.DiffText(d.Before), tagmap.DiffText(d.After))
	}
	for _, row := range strings.Split(strings.TrimRight(t.String(), "\n"), "\n") {
		fmt.Fprintf(p.out, "  %s\n", row)
	}

	fmt.Fprintf(p.out, "apply? [y/N] ")
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read answer: %w", err)
	}
	return strings.EqualFold(strings.TrimSpace(line), "y"), nil
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
