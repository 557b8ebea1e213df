// Package addon runs extra steps on an album once it has been organized.
package addon

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

var ErrUnknown = errors.New("addon not found")

// Album is an organized album. Paths are the final paths of its reconciled
// tracks in track order.
type Album struct {
	Dir    string
	Artist string
	Title  string
	Paths  []string
}

type Addon interface {
	AfterOrganize(ctx context.Context, album Album) error
}

// Factory makes an addon from the rest of its flag value.
type Factory func(conf string) (Addon, error)

var (
	factoriesMu sync.Mutex
	factories   = map[string]Factory{}
)

func Register(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()

	if _, ok := factories[name]; ok {
		panic(fmt.Errorf("addon %q already registered", name))
	}
	factories[name] = f
}

func New(name, conf string) (Addon, error) {
	factoriesMu.Lock()
	f, ok := factories[name]
	factoriesMu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q (have %v)", ErrUnknown, name, Names())
	}
	return f(conf)
}

// Names is the registered addon names, sorted.
func Names() []string {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()

	var names []string
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
