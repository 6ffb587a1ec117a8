package config

import (
	"fmt"
	"sort"
	"strings"
)

// RunMode is one fixed environment preset for a sweep. Values are immutable;
// each run builds its options from a copy, so nothing needs clearing between
// runs.
type RunMode struct {
	Name           string
	UseFixtures    bool // compose base + per-case fixture documents
	InjectFixtures bool // attach the merged document to each chat request
	Judge          bool // semantic re-scoring of near-miss evidence failures
	Serial         bool // one case at a time with an inter-case pause
}

const DefaultMode = "fixtures"

var runModes = map[string]RunMode{
	"fixtures": {
		Name:           "fixtures",
		UseFixtures:    true,
		InjectFixtures: true,
	},
	"fixtures-serial": {
		Name:           "fixtures-serial",
		UseFixtures:    true,
		InjectFixtures: true,
		Serial:         true,
	},
	"fixtures-judge": {
		Name:           "fixtures-judge",
		UseFixtures:    true,
		InjectFixtures: true,
		Judge:          true,
	},
	"live": {
		Name: "live",
	},
	"live-judge": {
		Name:  "live-judge",
		Judge: true,
	},
}

// ModeByName resolves a preset by name.
func ModeByName(name string) (RunMode, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = DefaultMode
	}
	m, ok := runModes[key]
	if !ok {
		return RunMode{}, fmt.Errorf("config: unknown run mode %q (available: %s)", name, strings.Join(ModeNames(), ", "))
	}
	return m, nil
}

// ModesByName resolves an ordered list of presets, failing on the first
// unknown name.
func ModesByName(names []string) ([]RunMode, error) {
	if len(names) == 0 {
		names = []string{DefaultMode}
	}
	out := make([]RunMode, 0, len(names))
	for _, name := range names {
		m, err := ModeByName(name)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// ModeNames lists the available presets in sorted order.
func ModeNames() []string {
	out := make([]string, 0, len(runModes))
	for name := range runModes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
