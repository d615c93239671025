package sched

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opsrig/relayctl/internal/command"
	"github.com/opsrig/relayctl/internal/device"
	"github.com/opsrig/relayctl/internal/modbus"
)

func TestParseAgentArgs(t *testing.T) {
	r, err := ParseAgentArgs([]string{"192.168.1.200:502@1", "all", "5"})
	require.NoError(t, err)
	require.Equal(t, command.Reopen{
		Endpoint: device.Endpoint{Host: "192.168.1.200", Port: 502, UnitID: 1},
		Target:   0,
		DelaySec: 5,
	}, r)

	r, err = ParseAgentArgs([]string{"192.168.1.7:502@2", "3", "0.5"})
	require.NoError(t, err)
	require.Equal(t, 3, r.Target)
	require.Equal(t, uint8(2), r.Endpoint.UnitID)
	require.Equal(t, 0.5, r.DelaySec)
}

func TestParseAgentArgsRejects(t *testing.T) {
	cases := [][]string{
		{},
		{"192.168.1.200:502@1", "all"},                    // too few
		{"192.168.1.200:502@1", "all", "5", "x"},          // too many
		{"192.168.1.200", "all", "5"},                     // bad endpoint
		{"192.168.1.200:502@1", "5", "5"},                 // target out of range
		{"192.168.1.200:502@1", "none", "5"},              // bad target
		{"192.168.1.200:502@1", "all", "0"},               // non-positive delay
		{"192.168.1.200:502@1", "all", "-1"},              // negative delay
		{"192.168.1.200:502@1", "all", "soon"},            // non-numeric delay
	}
	for _, args := range cases {
		_, err := ParseAgentArgs(args)
		require.Error(t, err, "args %v", args)
	}
}

type agentWrite struct {
	Addr uint16
	On   bool
}

type agentSession struct {
	writes   []agentWrite
	writeErr error
	closed   bool
}

func (s *agentSession) ReadCoils(base, count uint16) ([]bool, error) {
	return make([]bool, count), nil
}

func (s *agentSession) WriteCoil(addr uint16, on bool) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.writes = append(s.writes, agentWrite{Addr: addr, On: on})
	return nil
}

func (s *agentSession) ReadDiscreteInputs(base, count uint16) ([]bool, error) {
	return make([]bool, count), nil
}

func (s *agentSession) ReadInputRegisters(base, count uint16) ([]uint16, error) {
	return make([]uint16, count), nil
}

func (s *agentSession) Close() error {
	s.closed = true
	return nil
}

var testMap = device.RegisterMap{CoilBase: 16}

func TestRunAgentReopensAll(t *testing.T) {
	sess := &agentSession{}
	r := command.Reopen{
		Endpoint: device.Endpoint{Host: "192.168.1.200", Port: 502, UnitID: 1},
		Target:   0,
		DelaySec: 0.01,
	}

	start := time.Now()
	RunAgent(r, testMap, func(device.Endpoint) (modbus.Session, error) { return sess, nil })

	require.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
	// The "all" target reopens every relay, not only the original set.
	require.Equal(t, []agentWrite{
		{Addr: 16, On: false}, {Addr: 17, On: false}, {Addr: 18, On: false}, {Addr: 19, On: false},
	}, sess.writes)
	require.True(t, sess.closed)
}

func TestRunAgentSingleTarget(t *testing.T) {
	sess := &agentSession{}
	r := command.Reopen{Target: 2, DelaySec: 0.01}

	RunAgent(r, testMap, func(device.Endpoint) (modbus.Session, error) { return sess, nil })
	require.Equal(t, []agentWrite{{Addr: 17, On: false}}, sess.writes)
}

// Failures at fire time are swallowed: a missed reopen must not crash or
// hang the detached unit.
func TestRunAgentSwallowsFailures(t *testing.T) {
	r := command.Reopen{Target: 0, DelaySec: 0.01}

	require.NotPanics(t, func() {
		RunAgent(r, testMap, func(device.Endpoint) (modbus.Session, error) {
			return nil, errors.New("unreachable")
		})
	})

	sess := &agentSession{writeErr: errors.New("no response")}
	require.NotPanics(t, func() {
		RunAgent(r, testMap, func(device.Endpoint) (modbus.Session, error) { return sess, nil })
	})
	require.True(t, sess.closed)
}
