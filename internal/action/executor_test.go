package action

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opsrig/relayctl/internal/command"
	"github.com/opsrig/relayctl/internal/device"
)

type coilWrite struct {
	Addr uint16
	On   bool
}

// fakeSession is an in-memory module image: 4 coils at 16, 4 discrete
// inputs at 0, 2 input registers at 0.
type fakeSession struct {
	coils  [4]bool
	inputs [4]bool
	regs   [2]uint16

	writes   []coilWrite
	writeErr error
}

func (f *fakeSession) ReadCoils(base, count uint16) ([]bool, error) {
	return append([]bool(nil), f.coils[base-16:base-16+count]...), nil
}

func (f *fakeSession) WriteCoil(addr uint16, on bool) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, coilWrite{Addr: addr, On: on})
	f.coils[addr-16] = on
	return nil
}

func (f *fakeSession) ReadDiscreteInputs(base, count uint16) ([]bool, error) {
	return append([]bool(nil), f.inputs[base:base+count]...), nil
}

func (f *fakeSession) ReadInputRegisters(base, count uint16) ([]uint16, error) {
	return append([]uint16(nil), f.regs[base:base+count]...), nil
}

func (f *fakeSession) Close() error { return nil }

type reopenCall struct {
	Target int
	Delay  float64
}

type schedRecorder struct {
	calls []reopenCall
}

func (s *schedRecorder) ScheduleReopen(target int, delaySec float64) error {
	s.calls = append(s.calls, reopenCall{Target: target, Delay: delaySec})
	return nil
}

func newExecutor(sess *fakeSession, rec *schedRecorder, out *bytes.Buffer) *Executor {
	return &Executor{
		Session: sess,
		Map:     device.RegisterMap{CoilBase: 16, DiscreteBase: 0, InputRegBase: 0},
		Scale:   1.0,
		Sched:   rec,
		Out:     out,
	}
}

func mustParse(t *testing.T, tokens ...string) command.Command {
	t.Helper()
	parsed, err := command.Parse(tokens)
	require.NoError(t, err)
	return parsed.Command
}

func TestSetSingleRelayOpen(t *testing.T) {
	sess := &fakeSession{regs: [2]uint16{205, 0}}
	rec := &schedRecorder{}
	var out bytes.Buffer

	err := newExecutor(sess, rec, &out).Run(mustParse(t, "3", "open"))
	require.NoError(t, err)

	// Exactly one write: relay 3 to open.
	require.Equal(t, []coilWrite{{Addr: 18, On: false}}, sess.writes)
	require.Empty(t, rec.calls)

	require.Contains(t, out.String(), "OK\n")
	require.Contains(t, out.String(), "Relays (DO1..DO4): 0000")
	require.Contains(t, out.String(), "AI1: raw=205  volts=1.00V")
}

func TestPairSequenceWritesInOrder(t *testing.T) {
	sess := &fakeSession{}
	var out bytes.Buffer

	err := newExecutor(sess, &schedRecorder{}, &out).Run(mustParse(t, "4", "open", "2", "closed", "1", "open"))
	require.NoError(t, err)
	require.Equal(t, []coilWrite{
		{Addr: 19, On: false},
		{Addr: 17, On: true},
		{Addr: 16, On: false},
	}, sess.writes)
}

func TestAllTimedCloseSchedulesOneReopen(t *testing.T) {
	sess := &fakeSession{}
	rec := &schedRecorder{}
	var out bytes.Buffer

	err := newExecutor(sess, rec, &out).Run(mustParse(t, "all,5", "closed"))
	require.NoError(t, err)

	// Four closes in channel order, one all-targets reopen.
	require.Equal(t, []coilWrite{
		{Addr: 16, On: true}, {Addr: 17, On: true}, {Addr: 18, On: true}, {Addr: 19, On: true},
	}, sess.writes)
	require.Equal(t, []reopenCall{{Target: 0, Delay: 5}}, rec.calls)
	require.Contains(t, out.String(), "Relays (DO1..DO4): 1111")
}

func TestPerChannelTimedCloses(t *testing.T) {
	sess := &fakeSession{}
	rec := &schedRecorder{}
	var out bytes.Buffer

	err := newExecutor(sess, rec, &out).Run(mustParse(t, "1,2", "closed", "3", "open", "4,0.5", "closed"))
	require.NoError(t, err)
	require.Equal(t, []reopenCall{{Target: 1, Delay: 2}, {Target: 4, Delay: 0.5}}, rec.calls)
}

func TestWriteFailureAborts(t *testing.T) {
	sess := &fakeSession{writeErr: errors.New("no response")}
	rec := &schedRecorder{}
	var out bytes.Buffer

	err := newExecutor(sess, rec, &out).Run(mustParse(t, "all", "closed"))
	require.Error(t, err)
	require.Empty(t, rec.calls)
	require.NotContains(t, out.String(), "OK")
}

func TestReadDigitalInput(t *testing.T) {
	sess := &fakeSession{inputs: [4]bool{false, true, false, false}}
	var out bytes.Buffer

	err := newExecutor(sess, &schedRecorder{}, &out).Run(mustParse(t, "di", "2", "read"))
	require.NoError(t, err)
	require.Empty(t, sess.writes)
	require.Contains(t, out.String(), "OK\n")
	require.Contains(t, out.String(), "DI2: 1")
}

func TestReadAnalogSingleAndBoth(t *testing.T) {
	sess := &fakeSession{regs: [2]uint16{205, 512}}
	var out bytes.Buffer

	err := newExecutor(sess, &schedRecorder{}, &out).Run(mustParse(t, "ai2", "read"))
	require.NoError(t, err)
	require.NotContains(t, out.String(), "AI1:")
	require.Contains(t, out.String(), "AI2: raw=512  volts=2.50V")

	out.Reset()
	err = newExecutor(sess, &schedRecorder{}, &out).Run(mustParse(t, "ai", "read"))
	require.NoError(t, err)
	require.Contains(t, out.String(), "AI1: raw=205")
	require.Contains(t, out.String(), "AI2: raw=512")
}

func TestAnalogScaleIsApplied(t *testing.T) {
	sess := &fakeSession{regs: [2]uint16{205, 0}}
	var out bytes.Buffer
	ex := newExecutor(sess, &schedRecorder{}, &out)
	ex.Scale = 2.0

	err := ex.Run(mustParse(t, "ai1", "read"))
	require.NoError(t, err)
	require.Contains(t, out.String(), "volts=2.00V")
}
