package fileutil

import (
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

func GlobEscape(path string) string {
	var r strings.Builder
	for _, c := range path {
		switch c {
		case '*', '?', '[':
			r.WriteRune('[')
			r.WriteRune(c)
			r.WriteRune(']')
		default:
			r.WriteRune(c)
		}
	}
	return r.String()
}

// GlobBase matches pattern against the direct children of dir.
func GlobBase(fs billy.Filesystem, dir, pattern string) ([]string, error) {
	return util.Glob(fs, filepath.Join(GlobEscape(dir), pattern))
}

var safeNameReplacer = strings.NewReplacer(
	"\x00", "",
	"/", "-",
	`\`, "-",
)

// SafeName makes s usable as a single path element by replacing path
// separators with "-". The names "." and ".." have each dot replaced with
// "_".
func SafeName(s string) string {
	s = safeNameReplacer.Replace(s)
	if s == "." || s == ".." {
		return strings.Repeat("_", len(s))
	}
	return s
}

// Pad0 left pads s with zeros to at least width characters. Non numeric
// values like "A1" are padded the same way.
func Pad0(s string, width int) string {
	if n := width - len(s); n > 0 {
		return strings.Repeat("0", n) + s
	}
	return s
}

// IsDigits reports whether s is non empty and only ASCII digits.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
