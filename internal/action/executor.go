// Package action applies parsed commands to an open session and renders
// the status report.
package action

import (
	"fmt"
	"io"

	"github.com/opsrig/relayctl/internal/command"
	"github.com/opsrig/relayctl/internal/device"
	"github.com/opsrig/relayctl/internal/modbus"
	"github.com/opsrig/relayctl/internal/util"
)

// Scheduler hands off a timed reopen; target 0 means every relay. The
// executor never waits on the scheduled work.
type Scheduler interface {
	ScheduleReopen(target int, delaySec float64) error
}

type Executor struct {
	Session modbus.Session
	Map     device.RegisterMap
	Scale   float64
	Sched   Scheduler // nil when no timed closes can occur (agent mode)
	Out     io.Writer
}

// Run performs the command's writes, then the read-back report. A failed
// write aborts immediately; no write is retried. Timed reopens are
// scheduled only after their close write has gone through.
func (e *Executor) Run(cmd command.Command) error {
	switch c := cmd.(type) {
	case command.SetRelays:
		return e.setRelays(c)
	case command.ReadDigitalInput:
		return e.readDigital(c)
	case command.ReadAnalogInput:
		return e.readAnalog(c)
	default:
		return fmt.Errorf("unsupported command %T", cmd)
	}
}

func (e *Executor) setRelays(c command.SetRelays) error {
	for _, t := range c.Targets {
		if err := e.Session.WriteCoil(e.Map.CoilAddr(t.Channel), t.Closed); err != nil {
			return err
		}
	}

	if e.Sched != nil {
		if err := e.scheduleReopens(c); err != nil {
			return err
		}
	}

	coils, err := e.Session.ReadCoils(e.Map.CoilBase, device.RelayCount)
	if err != nil {
		return err
	}
	inputs, err := e.Session.ReadDiscreteInputs(e.Map.DiscreteBase, device.DigitalInputCount)
	if err != nil {
		return err
	}
	regs, err := e.Session.ReadInputRegisters(e.Map.InputRegBase, device.AnalogInputCount)
	if err != nil {
		return err
	}

	fmt.Fprintln(e.Out, "OK")
	fmt.Fprintf(e.Out, "Relays (DO1..DO4): %s\n", util.BitString(coils))
	fmt.Fprintf(e.Out, "Inputs (DI1..DI4): %s\n", util.BitString(inputs))
	for i, raw := range regs {
		fmt.Fprintf(e.Out, "AI%d: raw=%d  volts=%.2fV\n", i+1, raw, device.Volts(raw, e.Scale))
	}
	return nil
}

// scheduleReopens launches one detached reopen per timed close: a single
// all-relays unit for the "all" shorthand, otherwise one per channel.
func (e *Executor) scheduleReopens(c command.SetRelays) error {
	if c.All {
		if d := c.Targets[0].Duration; d > 0 {
			return e.Sched.ScheduleReopen(0, d)
		}
		return nil
	}
	for _, t := range c.Targets {
		if t.Duration > 0 {
			if err := e.Sched.ScheduleReopen(t.Channel, t.Duration); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Executor) readDigital(c command.ReadDigitalInput) error {
	inputs, err := e.Session.ReadDiscreteInputs(e.Map.DiscreteBase, device.DigitalInputCount)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.Out, "OK")
	fmt.Fprintf(e.Out, "DI%d: %s\n", c.Channel, util.BitString(inputs[c.Channel-1:c.Channel]))
	return nil
}

func (e *Executor) readAnalog(c command.ReadAnalogInput) error {
	regs, err := e.Session.ReadInputRegisters(e.Map.InputRegBase, device.AnalogInputCount)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.Out, "OK")
	for i, raw := range regs {
		ch := i + 1
		if c.Channel != 0 && ch != c.Channel {
			continue
		}
		fmt.Fprintf(e.Out, "AI%d: raw=%d  volts=%.2fV\n", ch, raw, device.Volts(raw, e.Scale))
	}
	return nil
}
