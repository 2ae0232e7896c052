// SPDX-License-Identifier: MIT

package model

import (
	"fmt"
	"strings"
	"time"
)

// StreamState is the terminal outcome of a liveness check.
type StreamState int

const (
	StateAlive StreamState = iota + 1
	StateDead
	StateUnauthorised
	StateNotFound
	StateUnsupported
	StateBlacklisted
)

var stateNames = map[StreamState]string{
	StateAlive:        "Alive",
	StateDead:         "Dead",
	StateUnauthorised: "Unauthorised",
	StateNotFound:     "NotFound",
	StateUnsupported:  "Unsupported",
	StateBlacklisted:  "Blacklisted",
}

// AllStates lists every terminal state in declaration order.
var AllStates = []StreamState{
	StateAlive, StateDead, StateUnauthorised, StateNotFound, StateUnsupported, StateBlacklisted,
}

func (s StreamState) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("StreamState(%d)", int(s))
}

// ParseStreamState parses the name written by String. Matching is case-insensitive.
func ParseStreamState(s string) (StreamState, error) {
	s = strings.TrimSpace(s)
	for st, name := range stateNames {
		if strings.EqualFold(name, s) {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown stream state %q", s)
}

// MediaStreamStatus is a cached liveness result.
type MediaStreamStatus struct {
	URL         string
	State       StreamState
	LastChecked time.Time
}
