package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"
)

/* =========================
   Types
   ========================= */

// Config is the full deployment configuration for one I/O module.
// Everything has a working default so the tools run without a file.
type Config struct {
	Bus    BusConfig  `json:"bus"`
	Map    MapConfig  `json:"map"`
	Analog Analog     `json:"analog"`
	Poll   PollConfig `json:"poll"`
}

type BusConfig struct {
	Type      string `json:"type"` // "tcp" | "rtu"
	Host      string `json:"host"`
	Port      int    `json:"port"`
	UnitId    uint8  `json:"unitId"`
	TimeoutMs int    `json:"timeoutMs"`

	// RTU only
	SerialPort string `json:"serialPort"`
	Baud       int    `json:"baud"`
	DataBits   int    `json:"dataBits"`
	StopBits   int    `json:"stopBits"`
	Parity     string `json:"parity"`

	Debug bool `json:"debug"`
}

// MapConfig holds the register bases for the module class. Counts are
// fixed by the class itself (4 relays, 4 discrete inputs, 2 analog
// channels) and live in the device package.
type MapConfig struct {
	CoilBase     uint16 `json:"coilBase"`
	DiscreteBase uint16 `json:"discreteBase"`
	InputRegBase uint16 `json:"inputRegBase"`
}

// Analog carries the hardware-revision scale applied on top of the fixed
// (raw/1024)*5 transform: 1.0 for direct sensing, or the divider
// compensation factor for attenuated inputs.
type Analog struct {
	Scale float64 `json:"scale"`
}

type PollConfig struct {
	IntervalMs         int `json:"intervalMs"`
	VerifyRetries      int `json:"verifyRetries"`
	VerifyRetryDelayMs int `json:"verifyRetryDelayMs"`
}

func (b BusConfig) Timeout() time.Duration { return time.Duration(b.TimeoutMs) * time.Millisecond }
func (b BusConfig) TCPAddr() string        { return fmt.Sprintf("%s:%d", b.Host, b.Port) }

func (p PollConfig) Interval() time.Duration {
	return time.Duration(p.IntervalMs) * time.Millisecond
}
func (p PollConfig) VerifyRetryDelay() time.Duration {
	return time.Duration(p.VerifyRetryDelayMs) * time.Millisecond
}

// Default returns the built-in deployment: the module's factory address
// and the documented register layout.
func Default() *Config {
	return &Config{
		Bus: BusConfig{
			Type:      "tcp",
			Host:      "192.168.1.200",
			Port:      502,
			UnitId:    1,
			TimeoutMs: 2000,
		},
		Map: MapConfig{
			CoilBase:     16, // DO1..DO4 coils at 16..19
			DiscreteBase: 0,  // DI1..DI4 discrete inputs at 0..3
			InputRegBase: 0,  // AI1..AI2 input regs at 0..1
		},
		Analog: Analog{Scale: 1.0},
		Poll: PollConfig{
			IntervalMs:         1000,
			VerifyRetries:      3,
			VerifyRetryDelayMs: 100,
		},
	}
}

/* =========================
   Strict load + validate
   ========================= */

// Load reads the config at path, or returns the defaults when path is
// empty. Unknown fields and validation failures are hard errors; absent
// optional fields fall back to their defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return decode(raw)
}

func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

func decode(raw []byte) (*Config, error) {
	clean := stripJSONComments(raw)

	dec := json.NewDecoder(strings.NewReader(string(clean)))
	dec.DisallowUnknownFields()

	cfg := Default()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs multiErr

	b := &c.Bus
	switch strings.ToLower(b.Type) {
	case "tcp":
		if strings.TrimSpace(b.Host) == "" {
			errs.add("bus.host is required for type=tcp")
		}
		if b.Port <= 0 || b.Port > 65535 {
			errs.addf("bus.port must be 1..65535, got %d", b.Port)
		}
	case "rtu":
		if strings.TrimSpace(b.SerialPort) == "" {
			errs.add("bus.serialPort is required for type=rtu")
		}
		if b.Baud <= 0 {
			errs.add("bus.baud must be > 0 for type=rtu")
		}
		if b.DataBits == 0 {
			b.DataBits = 8
		}
		if b.StopBits == 0 {
			b.StopBits = 1
		}
		if b.Parity == "" {
			b.Parity = "N"
		}
		if !slices.Contains([]string{"N", "E", "O"}, strings.ToUpper(b.Parity)) {
			errs.add("bus.parity must be one of N,E,O")
		}
	default:
		errs.addf("bus.type must be 'tcp' or 'rtu', got %q", b.Type)
	}

	if b.UnitId == 0 || b.UnitId > 247 {
		errs.addf("bus.unitId must be 1..247, got %d", b.UnitId)
	}
	if b.TimeoutMs <= 0 {
		b.TimeoutMs = 2000
	}

	if c.Analog.Scale <= 0 {
		errs.addf("analog.scale must be > 0, got %g", c.Analog.Scale)
	}

	p := &c.Poll
	if p.IntervalMs <= 0 {
		errs.add("poll.intervalMs must be > 0 (e.g., 1000)")
	}
	if p.VerifyRetries <= 0 {
		errs.add("poll.verifyRetries must be > 0")
	}
	if p.VerifyRetryDelayMs < 0 {
		errs.add("poll.verifyRetryDelayMs cannot be negative")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

/* =========================
   Comment stripping + utils
   ========================= */

var (
	lineComments  = regexp.MustCompile(`(?m)//[^\n\r]*`)
	blockComments = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

func stripJSONComments(in []byte) []byte {
	text := string(in)
	text = blockComments.ReplaceAllString(text, "")
	text = lineComments.ReplaceAllString(text, "")
	return []byte(text)
}

// small multi-error
type multiErr []string

func (m *multiErr) add(s string)            { *m = append(*m, s) }
func (m *multiErr) addf(f string, a ...any) { *m = append(*m, fmt.Sprintf(f, a...)) }
func (m multiErr) Error() string            { return "validation errors: " + strings.Join(m, "; ") }
