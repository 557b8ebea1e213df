package tidytag

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/go-git/go-billy/v5"

	"github.com/tidytag/tidytag/fileutil"
)

// ValidYear is true for four digit years after 1900.
func ValidYear(year int) bool {
	return year > 1900 && year <= 9999
}

// TargetDir is root/Artist/Album (Year), or root/Artist/Album without a
// valid year.
func TargetDir(root, artist, album string, year int) string {
	name := fileutil.SafeName(album)
	if ValidYear(year) {
		name += " (" + strconv.Itoa(year) + ")"
	}
	return filepath.Join(root, fileutil.SafeName(artist), name)
}

type OrganizeOutcome struct {
	Dir string

	// Paths are the final paths of the reconciled files that were moved.
	Paths    []string
	Failures []error
}

// Organize moves the reconciled files, then everything else left in the
// album folder, into dest, and removes the emptied folder. Nothing is
// overwritten. Only failing to create dest is returned as an error, anything
// after that is recorded in the outcome.
func Organize(fsys billy.Filesystem, src string, reconciled []string, dest string) (OrganizeOutcome, error) {
	out := OrganizeOutcome{Dir: dest}

	if err := fsys.MkdirAll(dest, os.ModePerm); err != nil {
		return out, fmt.Errorf("create target dir: %w", err)
	}

	reconciled = slices.Clone(reconciled)
	slices.Sort(reconciled)

	for _, path := range reconciled {
		to := filepath.Join(dest, filepath.Base(path))
		if err := move(fsys, path, to); err != nil {
			slog.Error("moving track", "path", path, "dest", dest, "err", err)
			out.Failures = append(out.Failures, err)
			continue
		}
		out.Paths = append(out.Paths, to)
	}

	if src == dest {
		return out, nil
	}

	entries, err := fsys.ReadDir(src)
	if err != nil {
		out.Failures = append(out.Failures, fmt.Errorf("read source dir: %w", err))
		return out, nil
	}
	for _, e := range entries {
		path := filepath.Join(src, e.Name())
		if isWithin(dest, path) {
			// dest was created inside src
			continue
		}
		if err := move(fsys, path, filepath.Join(dest, e.Name())); err != nil {
			slog.Warn("leaving file behind", "path", path, "err", err)
			out.Failures = append(out.Failures, err)
			continue
		}
	}

	if err := fsys.Remove(src); err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrFolderRemoval, src, err)
		slog.Warn("removing source dir", "dir", src, "err", err)
		out.Failures = append(out.Failures, err)
	}
	return out, nil
}

func move(fsys billy.Filesystem, from, to string) error {
	if from == to {
		return nil
	}
	if err := rename(fsys, from, to); err != nil {
		if errors.Is(err, errDestExists) {
			return fmt.Errorf("%w: %s: %w", ErrMoveConflict, from, err)
		}
		return fmt.Errorf("move %s: %w", from, err)
	}
	return nil
}

func isWithin(path, dir string) bool {
	return path == dir || strings.HasPrefix(path, dir+string(filepath.Separator))
}
