// Package device describes the fixed addressing of the 4-relay /
// 4-digital-input / 2-analog-input module class and the value
// conversions that go with it.
package device

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	RelayCount        = 4
	DigitalInputCount = 4
	AnalogInputCount  = 2
)

// RegisterMap holds the base addresses of the three register blocks.
type RegisterMap struct {
	CoilBase     uint16
	DiscreteBase uint16
	InputRegBase uint16
}

// CoilAddr maps relay channel 1..4 onto its coil address. The channel
// must already be validated.
func (m RegisterMap) CoilAddr(ch int) uint16 {
	return m.CoilBase + uint16(ch-1)
}

func ValidRelay(ch int) bool        { return ch >= 1 && ch <= RelayCount }
func ValidDigitalInput(ch int) bool { return ch >= 1 && ch <= DigitalInputCount }
func ValidAnalogInput(ch int) bool  { return ch >= 1 && ch <= AnalogInputCount }

// Volts converts a raw analog count to volts. The base transform is
// fixed by the converter ((raw/1024)*5); scale carries the
// hardware-revision factor from the deployment config.
func Volts(raw uint16, scale float64) float64 {
	return (float64(raw) / 1024.0) * 5.0 * scale
}

// Endpoint identifies one reachable module.
type Endpoint struct {
	Host   string
	Port   int
	UnitID uint8
}

// String renders the endpoint as "host:port@unit", the form the hidden
// reopen-agent invocation carries.
func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d@%d", e.Host, e.Port, e.UnitID)
}

func (e Endpoint) Addr() string { return fmt.Sprintf("%s:%d", e.Host, e.Port) }

// ParseEndpoint is the inverse of Endpoint.String.
func ParseEndpoint(s string) (Endpoint, error) {
	hostPort, unitStr, ok := strings.Cut(s, "@")
	if !ok {
		return Endpoint{}, fmt.Errorf("endpoint %q: missing @unit", s)
	}
	host, portStr, ok := strings.Cut(hostPort, ":")
	if !ok || host == "" {
		return Endpoint{}, fmt.Errorf("endpoint %q: missing host:port", s)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return Endpoint{}, fmt.Errorf("endpoint %q: bad port", s)
	}
	unit, err := strconv.Atoi(unitStr)
	if err != nil || unit < 1 || unit > 247 {
		return Endpoint{}, fmt.Errorf("endpoint %q: bad unit", s)
	}
	return Endpoint{Host: host, Port: port, UnitID: uint8(unit)}, nil
}

// WithHostSuffix returns a copy of the endpoint with the final octet of
// its IPv4 host replaced by n. This backs the command-line override
// token: a leading number above the relay range selects a sibling module
// on the same subnet.
func (e Endpoint) WithHostSuffix(n int) (Endpoint, error) {
	if n < 1 || n > 254 {
		return Endpoint{}, fmt.Errorf("host suffix %d out of range 1..254", n)
	}
	parts := strings.Split(e.Host, ".")
	if len(parts) != 4 {
		return Endpoint{}, fmt.Errorf("host %q is not dotted IPv4, cannot apply suffix", e.Host)
	}
	for _, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 || v > 255 {
			return Endpoint{}, fmt.Errorf("host %q is not dotted IPv4, cannot apply suffix", e.Host)
		}
	}
	parts[3] = strconv.Itoa(n)
	out := e
	out.Host = strings.Join(parts, ".")
	return out, nil
}
