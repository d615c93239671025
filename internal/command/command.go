package command

import "github.com/opsrig/relayctl/internal/device"

// RelayTarget is one relay in a set command: desired state plus an
// optional timed-close duration in seconds.
type RelayTarget struct {
	Channel  int
	Closed   bool
	Duration float64 // seconds; 0 means no timed close
}

// Command is the single typed result of parsing one invocation.
type Command interface {
	isCommand()
}

// SetRelays drives one or more relays. All records whether the "all"
// shorthand produced the target list; a scheduled reopen for an "all"
// close reopens every relay, not just the listed ones.
type SetRelays struct {
	Targets []RelayTarget
	All     bool
}

type ReadDigitalInput struct {
	Channel int
}

// ReadAnalogInput reads one analog channel, or both when Channel is 0.
type ReadAnalogInput struct {
	Channel int
}

// Reopen is the internal command carried by the scheduler's detached
// unit. It is built from the hidden agent invocation, never by Parse.
type Reopen struct {
	Endpoint device.Endpoint
	Target   int // relay channel, or 0 for all
	DelaySec float64
}

func (SetRelays) isCommand()        {}
func (ReadDigitalInput) isCommand() {}
func (ReadAnalogInput) isCommand()  {}
func (Reopen) isCommand()           {}
