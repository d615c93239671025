// Package sched launches and runs the detached reopen units behind timed
// relay closes. The invoking process must be free to exit right after
// its status report, so a reopen is never an in-process timer: the
// binary re-executes itself in a new session, disowned, and the child
// does the sleep-connect-write on its own.
package sched

import (
	"fmt"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/opsrig/relayctl/internal/command"
	"github.com/opsrig/relayctl/internal/device"
	"github.com/opsrig/relayctl/internal/logging"
	"github.com/opsrig/relayctl/internal/modbus"
)

// AgentMarker is the hidden first argument of the detached invocation.
// It is followed by exactly three values: endpoint, target, delay.
const AgentMarker = "reopen"

const allTarget = "all"

// Spawner schedules reopens by re-executing Exe with the agent form.
type Spawner struct {
	Exe      string
	Endpoint device.Endpoint
}

// ScheduleReopen starts a detached unit that reopens target (0 = all)
// after delaySec seconds. Fire-and-forget: the child is released
// immediately, keeps no pipe to the parent, and survives its exit.
// Once started it cannot be revoked.
func (s *Spawner) ScheduleReopen(target int, delaySec float64) error {
	tgt := allTarget
	if target != 0 {
		tgt = strconv.Itoa(target)
	}
	cmd := exec.Command(s.Exe, AgentMarker,
		s.Endpoint.String(),
		tgt,
		strconv.FormatFloat(delaySec, 'g', -1, 64),
	)
	// Stdin/out/err left nil: exec attaches /dev/null, so nothing ties
	// the child to the parent's terminal. Setsid detaches it from the
	// process group as well.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn reopen unit: %w", err)
	}
	logging.Debug("scheduled reopen", "pid", cmd.Process.Pid, "target", tgt, "delaySec", delaySec)
	return cmd.Process.Release()
}

// ParseAgentArgs decodes the three positional values following the
// marker. This path bypasses the user-facing parser entirely.
func ParseAgentArgs(args []string) (command.Reopen, error) {
	if len(args) != 3 {
		return command.Reopen{}, fmt.Errorf("reopen agent expects 3 args, got %d", len(args))
	}
	ep, err := device.ParseEndpoint(args[0])
	if err != nil {
		return command.Reopen{}, err
	}
	target := 0
	if args[1] != allTarget {
		target, err = strconv.Atoi(args[1])
		if err != nil || !device.ValidRelay(target) {
			return command.Reopen{}, fmt.Errorf("reopen target %q must be 'all' or 1-4", args[1])
		}
	}
	delay, err := strconv.ParseFloat(args[2], 64)
	if err != nil || delay <= 0 {
		return command.Reopen{}, fmt.Errorf("reopen delay %q must be positive seconds", args[2])
	}
	return command.Reopen{Endpoint: ep, Target: target, DelaySec: delay}, nil
}

// Dialer opens a fresh session against the reopen endpoint.
type Dialer func(device.Endpoint) (modbus.Session, error)

// RunAgent is the body of the detached unit: sleep for the full delay,
// open a fresh session, write the target relay(s) open, exit. At most
// once, no retry; a connect or write failure is logged and swallowed
// since nobody is listening.
func RunAgent(r command.Reopen, regMap device.RegisterMap, dial Dialer) {
	time.Sleep(time.Duration(r.DelaySec * float64(time.Second)))

	sess, err := dial(r.Endpoint)
	if err != nil {
		logging.Warn("reopen connect failed, dropping", "endpoint", r.Endpoint.String(), "error", err)
		return
	}
	defer sess.Close()

	channels := []int{r.Target}
	if r.Target == 0 {
		channels = []int{1, 2, 3, 4}
	}
	for _, ch := range channels {
		if err := sess.WriteCoil(regMap.CoilAddr(ch), false); err != nil {
			logging.Warn("reopen write failed, dropping", "relay", ch, "error", err)
		}
	}
}
