package state

import (
	"fmt"

	"github.com/brunoga/deep"
)

// StateBlock is a detached copy of the device state.
type StateBlock struct {
	values Values
}

// Capture deep-copies the current state, so later setters never alter
// the block.
func (s *DeviceState) Capture() (*StateBlock, error) {
	v, err := deep.Copy(s.values)
	if err != nil {
		return nil, fmt.Errorf("capture state block: %w", err)
	}
	return &StateBlock{values: v}, nil
}

// Apply restores a captured block. Every generation moves, since any
// category may differ.
func (s *DeviceState) Apply(sb *StateBlock) {
	s.values = deep.MustCopy(sb.values)
	s.bumpAll()
}
