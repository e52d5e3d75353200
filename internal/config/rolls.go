package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"SlotReplay/internal/model"
)

// ErrNoRolls is returned when the initial rolls file lists no address.
var ErrNoRolls = errors.New("initial rolls file is empty")

// InitialRolls maps each staking address to its initial roll count.
type InitialRolls map[model.Address]uint64

// Total returns the sum of all rolls.
func (r InitialRolls) Total() uint64 {
	var total uint64
	for _, n := range r {
		total += n
	}

	return total
}

// LoadInitialRolls reads a JSON object of address to roll count.
func LoadInitialRolls(path string) (InitialRolls, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read initial rolls:\n%w", err)
	}

	var raw map[string]uint64
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse initial rolls %s:\n%w", path, err)
	}

	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoRolls, path)
	}

	rolls := make(InitialRolls, len(raw))
	for text, n := range raw {
		addr, err := model.ParseAddress(text)
		if err != nil {
			return nil, fmt.Errorf("initial rolls address %q:\n%w", text, err)
		}

		rolls[addr] = n
	}

	return rolls, nil
}
