// Package tagstest provides a tag store which keeps tags as "key=value" lines
// inside the file itself, so that pipeline tests can run against an in
// memory filesystem without real audio files.
package tagstest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/tidytag/tidytag/tags"
)

var ErrMalformed = errors.New("malformed tag line")

type Store struct {
	FS billy.Filesystem

	// FailWrite makes Write fail for these base names.
	FailWrite map[string]struct{}
}

var _ tags.Store = (*Store)(nil)

func (s *Store) Read(path string) (tags.Tags, error) {
	data, err := util.ReadFile(s.FS, path)
	if err != nil {
		return tags.Tags{}, fmt.Errorf("read file: %w", err)
	}
	return Decode(data)
}

func (s *Store) Write(path string, update tags.Tags) error {
	if _, ok := s.FailWrite[filepath.Base(path)]; ok {
		return tags.ErrWrite
	}
	t, err := s.Read(path)
	if err != nil {
		return err
	}
	if !t.Update(update) {
		return nil
	}
	if err := util.WriteFile(s.FS, path, Encode(t), os.ModePerm); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// WriteFile creates path with tags from kv pairs, creating parents as needed.
func WriteFile(fs billy.Filesystem, path string, kv ...string) error {
	if err := fs.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("make parents: %w", err)
	}
	return util.WriteFile(fs, path, Encode(tags.NewTags(kv...)), os.ModePerm)
}

func Encode(t tags.Tags) []byte {
	var buf bytes.Buffer
	for k, vs := range t.Iter() {
		for _, v := range vs {
			fmt.Fprintf(&buf, "%s=%s\n", k, v)
		}
	}
	return buf.Bytes()
}

func Decode(data []byte) (tags.Tags, error) {
	raw := map[string][]string{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			return tags.Tags{}, fmt.Errorf("%w: %q", ErrMalformed, line)
		}
		raw[k] = append(raw[k], v)
	}
	if err := sc.Err(); err != nil {
		return tags.Tags{}, fmt.Errorf("scan: %w", err)
	}
	return tags.FromRaw(raw), nil
}
