package tags

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"

	"github.com/sentriz/audiotags"
)

// TagLib is the Store backed by taglib.
type TagLib struct{}

var _ Store = TagLib{}

func (TagLib) Read(path string) (Tags, error) {
	f, err := audiotags.Open(path)
	if err != nil {
		return Tags{}, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	return FromRaw(f.ReadTags()), nil
}

func (TagLib) Write(path string, update Tags) error {
	f, err := audiotags.Open(path)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	t := FromRaw(f.ReadTags())
	before := t.Clone()

	// try avoid filesystem writes if we can
	if !t.Update(update) {
		return nil
	}

	if l := slog.Default(); l.Enabled(context.Background(), slog.LevelDebug) {
		pathBase := filepath.Base(path)
		for k, after := range update.Iter() {
			if before := before.Values(k); !slices.Equal(before, after) {
				l.Debug("tag change", "file", pathBase, "key", k, "from", before, "to", after)
			}
		}
	}

	if !f.WriteTags(t.Raw()) {
		return ErrWrite
	}
	return nil
}
