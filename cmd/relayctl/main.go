package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/opsrig/relayctl/internal/action"
	"github.com/opsrig/relayctl/internal/command"
	"github.com/opsrig/relayctl/internal/config"
	"github.com/opsrig/relayctl/internal/device"
	"github.com/opsrig/relayctl/internal/modbus"
	"github.com/opsrig/relayctl/internal/sched"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
  relayctl [host-suffix] <command>

Relay commands (channels 1-4, durations in seconds, only with 'closed'):
  relayctl 3 open                 set relay 3 open
  relayctl 3 5 closed             close relay 3, reopen after 5s
  relayctl 1,2.5 closed 4 open    per-relay groups, left to right
  relayctl all closed             set every relay
  relayctl all,5 closed           close every relay, reopen after 5s

Input commands:
  relayctl di <1-4> read          read one digital input
  relayctl ai1 read               read analog input 1
  relayctl ai read                read both analog inputs

A leading number above 4 replaces the last octet of the configured
module address (e.g. 'relayctl 7 1 closed' talks to x.x.x.7).

Config file path comes from RELAYCTL_CONFIG (built-in defaults apply
when unset).
`)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(getenv("RELAYCTL_CONFIG", ""))
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 1
	}

	// Hidden detached-unit form: relayctl reopen <endpoint> <target> <delay>.
	// Spawned only by the scheduler, never by hand; bypasses the parser.
	if len(args) > 0 && args[0] == sched.AgentMarker {
		return runAgent(cfg, args[1:])
	}

	if len(args) == 0 {
		usage()
		return 2
	}
	for i, a := range args {
		args[i] = strings.ToLower(a)
	}

	parsed, err := command.Parse(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Syntax Violation: %v\n", trimSyntaxPrefix(err))
		return 2
	}

	endpoint := device.Endpoint{Host: cfg.Bus.Host, Port: cfg.Bus.Port, UnitID: cfg.Bus.UnitId}
	if parsed.HostSuffix > 0 {
		endpoint, err = endpoint.WithHostSuffix(parsed.HostSuffix)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Syntax Violation: %v\n", err)
			return 2
		}
	}

	sess, err := modbus.Dial(cfg, endpoint)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 1
	}
	defer sess.Close()

	exe, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 1
	}

	executor := &action.Executor{
		Session: sess,
		Map:     regMap(cfg),
		Scale:   cfg.Analog.Scale,
		Sched:   &sched.Spawner{Exe: exe, Endpoint: endpoint},
		Out:     os.Stdout,
	}
	if err := executor.Run(parsed.Command); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 1
	}
	return 0
}

// runAgent is the detached unit's own entry: decode the three positional
// values, then sleep-connect-reopen. Failures are swallowed and the exit
// status is always zero since the parent is long gone.
func runAgent(cfg *config.Config, args []string) int {
	reopen, err := sched.ParseAgentArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 1
	}
	sched.RunAgent(reopen, regMap(cfg), func(ep device.Endpoint) (modbus.Session, error) {
		return modbus.Dial(cfg, ep)
	})
	return 0
}

func regMap(cfg *config.Config) device.RegisterMap {
	return device.RegisterMap{
		CoilBase:     cfg.Map.CoilBase,
		DiscreteBase: cfg.Map.DiscreteBase,
		InputRegBase: cfg.Map.InputRegBase,
	}
}

// trimSyntaxPrefix drops the leading "syntax violation: " from wrapped
// parse errors; the surface message already carries that label.
func trimSyntaxPrefix(err error) string {
	msg := err.Error()
	if cut, ok := strings.CutPrefix(msg, command.ErrSyntax.Error()+": "); ok && errors.Is(err, command.ErrSyntax) {
		return cut
	}
	return msg
}
