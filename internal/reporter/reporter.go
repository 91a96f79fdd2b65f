// Package reporter delivers decoded frames to their destinations. Reporters
// register a factory under a type name and are built from configuration
// options.
package reporter

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mitchellh/mapstructure"

	"firestige.xyz/nf2cap/internal/core"
)

// Reporter sends output packets to one destination. Report is called from
// a single goroutine.
type Reporter interface {
	Name() string
	Report(ctx context.Context, pkt *core.OutputPacket) error
	Flush(ctx context.Context) error
	Close() error
}

// Factory builds a reporter from its options.
type Factory func(options map[string]interface{}) (Reporter, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a reporter type available to New. Registering a name twice
// panics.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := factories[name]; dup {
		panic("reporter: duplicate registration of " + name)
	}
	factories[name] = f
}

// Types lists the registered reporter types.
func Types() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds a reporter of type typ.
func New(typ string, options map[string]interface{}) (Reporter, error) {
	mu.RLock()
	f, ok := factories[typ]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrReporterNotFound, typ)
	}
	r, err := f(options)
	if err != nil {
		return nil, fmt.Errorf("reporter %s: %w", typ, err)
	}
	return r, nil
}

// decodeOptions decodes loosely typed configuration into out. Unknown keys
// are rejected.
func decodeOptions(options map[string]interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(options); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}
