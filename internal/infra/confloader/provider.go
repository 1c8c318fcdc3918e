package confloader

import (
	"errors"
	"maps"

	kmaps "github.com/knadh/koanf/maps"
)

var errReadBytes = errors.New("confloader: map provider has no byte form")

// mapProvider is a koanf provider over dotted keys. The keys are expanded
// into nested sections so they unmarshal the same way file and env values
// do.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errReadBytes
}

func (m mapProvider) Read() (map[string]any, error) {
	return kmaps.Unflatten(maps.Clone(map[string]any(m)), "."), nil
}
