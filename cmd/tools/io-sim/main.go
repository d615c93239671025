package main

// Bench simulator for the 4-relay module class: serves the register map
// (coils 16..19, discrete inputs 0..3, input registers 0..1) so relayctl
// and relaypoll can run without hardware. TCP mode uses tbrandon's slave,
// RTU mode the multi-unit womat fork over a real serial line.

import (
	"flag"
	"log"
	"time"

	"github.com/goburrow/serial"
	"github.com/opsrig/relayctl/internal/config"
	tcpsim "github.com/tbrandon/mbserver"
	rtusim "github.com/womat/mbserver"
)

func main() {
	var (
		configPath string
		listenAddr string
	)
	flag.StringVar(&configPath, "config", "", "config file path (bus type and serial params)")
	flag.StringVar(&listenAddr, "listen", ":1502", "TCP listen address (tcp mode)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if cfg.Bus.Type == "rtu" {
		runRTU(cfg)
		return
	}
	runTCP(cfg, listenAddr)
}

func runTCP(cfg *config.Config, addr string) {
	srv := tcpsim.NewServer()
	seedTCP(srv, cfg)

	if err := srv.ListenTCP(addr); err != nil {
		log.Fatalf("ListenTCP: %v", err)
	}
	defer srv.Close()
	log.Printf("module simulator (tcp) listening on %s", addr)

	for {
		time.Sleep(1 * time.Second)
	}
}

func seedTCP(srv *tcpsim.Server, cfg *config.Config) {
	// Relays start open, DI2 asserted, AI1 around 1V at scale 1.
	srv.DiscreteInputs[cfg.Map.DiscreteBase+1] = 1
	srv.InputRegisters[cfg.Map.InputRegBase] = 205
	srv.InputRegisters[cfg.Map.InputRegBase+1] = 0
}

func runRTU(cfg *config.Config) {
	s := rtusim.NewServer()

	id := cfg.Bus.UnitId
	if id != 1 {
		if err := s.NewDevice(id); err != nil {
			log.Fatalf("NewDevice(%d): %v", id, err)
		}
	}
	s.Devices[id].DiscreteInputs[cfg.Map.DiscreteBase+1] = 1
	s.Devices[id].InputRegisters[cfg.Map.InputRegBase] = 205

	port, err := serial.Open(&serial.Config{
		Address:  cfg.Bus.SerialPort,
		BaudRate: cfg.Bus.Baud,
		DataBits: cfg.Bus.DataBits,
		StopBits: cfg.Bus.StopBits,
		Parity:   cfg.Bus.Parity,
		Timeout:  2 * time.Second,
	})
	if err != nil {
		log.Fatalf("serial open %s: %v", cfg.Bus.SerialPort, err)
	}
	defer port.Close()

	if err := s.ListenRTU(port); err != nil {
		log.Fatalf("ListenRTU: %v", err)
	}
	log.Printf("module simulator (rtu) ready on %s unit=%d", cfg.Bus.SerialPort, id)
	for {
		time.Sleep(1 * time.Second)
	}
}
