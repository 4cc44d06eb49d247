// Package preset loads initial bank contents from a TOML file.
//
// A preset looks like:
//
//	default = "1"
//
//	[banks]
//	a = "0000000000000011"
//	f = "1010101010101010"
//
// Banks not listed start at the default level.
package preset

import (
	"os"
	"sort"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/edgeo-scada/gpiopanel"
)

// Preset is the decoded content of a preset file.
type Preset struct {
	Default string            `toml:"default"`
	Banks   map[string]string `toml:"banks"`
}

// Load reads and validates the preset at path.
func Load(path string) (*Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read preset")
	}
	return Parse(data)
}

// Parse decodes and validates a preset document.
func Parse(data []byte) (*Preset, error) {
	var p Preset
	if err := toml.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(err, "decode preset")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the default level and every listed bank.
func (p *Preset) Validate() error {
	if _, _, err := p.Level(); err != nil {
		return err
	}

	for _, name := range p.names() {
		if !gpiopanel.IsBankName(name) {
			return errors.Wrapf(gpiopanel.ErrUnknownBank, "preset bank %q", name)
		}
		if _, err := gpiopanel.ParseBank(p.Banks[name]); err != nil {
			return errors.Wrapf(err, "preset bank %q", name)
		}
	}
	return nil
}

// Level returns the default pin level. ok is false when the preset leaves
// it unset.
func (p *Preset) Level() (level byte, ok bool, err error) {
	switch p.Default {
	case "":
		return 0, false, nil
	case string(gpiopanel.Low):
		return gpiopanel.Low, true, nil
	case string(gpiopanel.High):
		return gpiopanel.High, true, nil
	default:
		return 0, false, errors.Errorf("preset default level %q is not 0 or 1", p.Default)
	}
}

// Apply writes every listed bank into store.
func (p *Preset) Apply(store *gpiopanel.Store) error {
	for _, name := range p.names() {
		bank, err := gpiopanel.ParseBank(p.Banks[name])
		if err != nil {
			return errors.Wrapf(err, "preset bank %q", name)
		}
		if err := store.SetBank(name, bank); err != nil {
			return errors.Wrapf(err, "preset bank %q", name)
		}
	}
	return nil
}

func (p *Preset) names() []string {
	names := make([]string, 0, len(p.Banks))
	for name := range p.Banks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
