// Package modbus wraps the goburrow client behind the small read/write
// surface the module class needs: coils, discrete inputs and input
// registers, decoded to Go values.
package modbus

import (
	"fmt"

	"github.com/goburrow/modbus"
	"github.com/opsrig/relayctl/internal/config"
	"github.com/opsrig/relayctl/internal/device"
	"github.com/opsrig/relayctl/internal/logging"
)

const (
	coilOn  = uint16(0xFF00)
	coilOff = uint16(0x0000)
)

// Session is one open connection to a module. Every call either returns
// a decoded payload or an error; there are no partial results.
type Session interface {
	ReadCoils(base, count uint16) ([]bool, error)
	WriteCoil(addr uint16, on bool) error
	ReadDiscreteInputs(base, count uint16) ([]bool, error)
	ReadInputRegisters(base, count uint16) ([]uint16, error)
	Close() error
}

// Handler is the slice of goburrow handler behavior the session relies
// on; both the TCP and RTU client handlers satisfy it.
type Handler interface {
	modbus.ClientHandler
	Connect() error
	Close() error
}

type session struct {
	handler Handler
	client  modbus.Client
}

// Dial opens a session for the bus described by cfg, pointed at ep.
// For RTU buses the endpoint host/port are ignored; the serial line from
// the config is the path to the device.
func Dial(cfg *config.Config, ep device.Endpoint) (Session, error) {
	var handler Handler
	switch cfg.Bus.Type {
	case "rtu":
		h := modbus.NewRTUClientHandler(cfg.Bus.SerialPort)
		h.BaudRate = cfg.Bus.Baud
		h.DataBits = cfg.Bus.DataBits
		h.Parity = cfg.Bus.Parity
		h.StopBits = cfg.Bus.StopBits
		h.Timeout = cfg.Bus.Timeout()
		h.SlaveId = ep.UnitID
		if cfg.Bus.Debug {
			h.Logger = logging.WrapSlog("bus", "rtu", "port", cfg.Bus.SerialPort)
		}
		handler = h
	default:
		h := modbus.NewTCPClientHandler(ep.Addr())
		h.Timeout = cfg.Bus.Timeout()
		h.SlaveId = ep.UnitID
		if cfg.Bus.Debug {
			h.Logger = logging.WrapSlog("bus", "tcp", "addr", ep.Addr())
		}
		handler = h
	}

	if err := handler.Connect(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", ep.Addr(), err)
	}
	return &session{handler: handler, client: modbus.NewClient(handler)}, nil
}

func (s *session) Close() error { return s.handler.Close() }

func (s *session) ReadCoils(base, count uint16) ([]bool, error) {
	data, err := s.client.ReadCoils(base, count)
	if err != nil {
		return nil, fmt.Errorf("read coils: %w", err)
	}
	return unpackBits(data, count, "coil")
}

func (s *session) WriteCoil(addr uint16, on bool) error {
	val := coilOff
	if on {
		val = coilOn
	}
	if _, err := s.client.WriteSingleCoil(addr, val); err != nil {
		return fmt.Errorf("write coil %d: %w", addr, err)
	}
	return nil
}

func (s *session) ReadDiscreteInputs(base, count uint16) ([]bool, error) {
	data, err := s.client.ReadDiscreteInputs(base, count)
	if err != nil {
		return nil, fmt.Errorf("read discrete inputs: %w", err)
	}
	return unpackBits(data, count, "discrete input")
}

func (s *session) ReadInputRegisters(base, count uint16) ([]uint16, error) {
	data, err := s.client.ReadInputRegisters(base, count)
	if err != nil {
		return nil, fmt.Errorf("read input registers: %w", err)
	}
	if len(data) < int(count)*2 {
		return nil, fmt.Errorf("short input register response: %d bytes for %d regs", len(data), count)
	}
	out := make([]uint16, count)
	for i := range out {
		out[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return out, nil
}

// unpackBits expands the LSB-first bit packing of FC1/FC2 responses.
func unpackBits(data []byte, count uint16, what string) ([]bool, error) {
	if len(data) < (int(count)+7)/8 {
		return nil, fmt.Errorf("short %s response: %d bytes for %d bits", what, len(data), count)
	}
	out := make([]bool, count)
	for i := range out {
		out[i] = data[i/8]&(1<<uint(i%8)) != 0
	}
	return out, nil
}
