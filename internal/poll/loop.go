// Package poll drives the continuous toggle-and-verify mode: all four
// relays flip together once per interval, every write is verified by
// read-back within a bounded retry budget, and live status renders on
// two fixed terminal lines while diagnostics scroll normally.
package poll

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/opsrig/relayctl/internal/device"
	"github.com/opsrig/relayctl/internal/modbus"
	"github.com/opsrig/relayctl/internal/util"
)

const statusWidth = 120

type Loop struct {
	Session modbus.Session
	Map     device.RegisterMap
	Scale   float64

	Interval         time.Duration
	VerifyRetries    int
	VerifyRetryDelay time.Duration

	Out io.Writer

	// Owned exclusively by Run; never shared across goroutines.
	toggle   bool
	errCount uint64
}

// Run executes cycles until ctx is cancelled and returns the cumulative
// error count. A transport fault inside a cycle is counted and logged
// but never ends the loop.
func (l *Loop) Run(ctx context.Context) uint64 {
	nextTick := time.Now()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(l.Out, "\n%s  Stopped. errors=%d\n", time.Now().Format(time.DateTime), l.errCount)
			return l.errCount
		default:
		}

		if err := l.cycle(ctx); err != nil {
			l.errCount++
			l.scrollf("%s  EXCEPTION  %v  errors=%d", time.Now().Format(time.DateTime), err, l.errCount)
			// Device or network hiccup: give it half a cycle to settle.
			sleepCtx(ctx, l.Interval/2)
		}

		// Steady cadence against absolute tick times so processing
		// latency does not accumulate drift. When we fall behind,
		// resynchronize instead of issuing a zero sleep.
		nextTick = nextTick.Add(l.Interval)
		if wait := time.Until(nextTick); wait > 0 {
			sleepCtx(ctx, wait)
		} else {
			nextTick = time.Now()
		}
	}
}

func (l *Loop) cycle(ctx context.Context) error {
	l.toggle = !l.toggle

	desired := make([]bool, device.RelayCount)
	for i := range desired {
		desired[i] = l.toggle
	}

	for ch := 1; ch <= device.RelayCount; ch++ {
		if err := l.Session.WriteCoil(l.Map.CoilAddr(ch), l.toggle); err != nil {
			return err
		}
	}

	ok, actual, err := l.verify(desired)
	if err != nil {
		return err
	}
	if !ok {
		l.errCount++
		l.scrollf("%s  VERIFY FAIL  desired=%s actual=%s errors=%d",
			time.Now().Format(time.DateTime), util.BitString(desired), util.BitString(actual), l.errCount)
	}

	regs, err := l.Session.ReadInputRegisters(l.Map.InputRegBase, device.AnalogInputCount)
	if err != nil {
		return err
	}
	inputs, err := l.Session.ReadDiscreteInputs(l.Map.DiscreteBase, device.DigitalInputCount)
	if err != nil {
		return err
	}

	top := fmt.Sprintf("%s DO=%s AI1=%d(%.2fV) AI2=%d(%.2fV) err=%d",
		time.Now().Format(time.TimeOnly), util.BitString(actual),
		regs[0], device.Volts(regs[0], l.Scale),
		regs[1], device.Volts(regs[1], l.Scale),
		l.errCount)
	bottom := "DI=" + util.BitString(inputs)
	l.twoLine(top, bottom)
	return nil
}

// verify reads the coils back until they match the desired states or the
// retry budget runs out. The last read is returned either way so the
// caller can report what the device actually holds.
func (l *Loop) verify(desired []bool) (bool, []bool, error) {
	var last []bool
	for i := 0; i < l.VerifyRetries; i++ {
		actual, err := l.Session.ReadCoils(l.Map.CoilBase, device.RelayCount)
		if err != nil {
			return false, nil, err
		}
		last = actual
		if boolsEqual(actual, desired) {
			return true, actual, nil
		}
		time.Sleep(l.VerifyRetryDelay)
	}
	return false, last, nil
}

// twoLine repaints the same two terminal lines: carriage return to the
// line start, padding to clear leftovers, cursor-up to hold position.
func (l *Loop) twoLine(top, bottom string) {
	fmt.Fprintf(l.Out, "\r%-*s\n%-*s\x1b[1A\r", statusWidth, top, statusWidth, bottom)
}

// scrollf emits a permanent diagnostic line below the status area.
func (l *Loop) scrollf(format string, args ...any) {
	fmt.Fprintf(l.Out, "\n"+format+"\n", args...)
}

func boolsEqual(a, b []bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
