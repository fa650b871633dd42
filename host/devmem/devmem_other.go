//go:build !linux

package devmem

import (
	"errors"

	"mmcinit/core"
)

const DefaultPath = "/dev/mem"

var errUnsupported = errors.New("devmem: /dev/mem access needs linux")

// Bus is unavailable off linux; OpenSoC always fails.
type Bus struct {
	core.Bus
}

func OpenSoC(path string) (*Bus, error) {
	return nil, errUnsupported
}

func (b *Bus) Close() error {
	return errUnsupported
}
