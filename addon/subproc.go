package addon

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/google/shlex"
)

func init() {
	Register("subproc", func(conf string) (Addon, error) {
		return NewCommand(conf)
	})
}

// Command runs an external program for each organized album. An argument
// that is exactly <files> expands to one argument per track path. The
// markers <dir>, <artist> and <album> are replaced anywhere in an argument.
type Command struct {
	name string
	args []string
}

func NewCommand(conf string) (Command, error) {
	parts, err := shlex.Split(conf)
	if err != nil {
		return Command{}, fmt.Errorf("split command: %w", err)
	}
	if len(parts) == 0 {
		return Command{}, fmt.Errorf("no command provided")
	}
	return Command{name: parts[0], args: parts[1:]}, nil
}

const markerFiles = "<files>"

func (c Command) Args(album Album) []string {
	r := strings.NewReplacer(
		"<dir>", album.Dir,
		"<artist>", album.Artist,
		"<album>", album.Title,
	)
	var args []string
	for _, arg := range c.args {
		if arg == markerFiles {
			args = append(args, album.Paths...)
			continue
		}
		args = append(args, r.Replace(arg))
	}
	return args
}

func (c Command) AfterOrganize(ctx context.Context, album Album) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.name, c.Args(album)...)
	cmd.Dir = album.Dir
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("run %s: %w: %s", c.name, err, msg)
		}
		return fmt.Errorf("run %s: %w", c.name, err)
	}
	return nil
}

func (c Command) String() string {
	args := fmt.Sprintf("%q", append([]string{c.name}, c.args...))
	args = strings.TrimPrefix(args, "[")
	args = strings.TrimSuffix(args, "]")
	return fmt.Sprintf("subproc (%s)", args)
}
