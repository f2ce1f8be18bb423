// Command simulate runs a bundled ECU stand-in: it answers UDS
// ReadDataByIdentifier requests over ISO-TP with a simulated EV's
// slowly drifting telemetry, so cmd/agent (or any ISO-TP/UDS client)
// can be exercised without real vehicle hardware.
package main

import (
	"bytes"
	"flag"
	"log"
	"math/rand"
	"sync"
	"time"

	"evtelemetry/internal/config"
	"evtelemetry/internal/isotp"
	"evtelemetry/internal/signal"
	"evtelemetry/internal/transport"
)

// simState is the simulated vehicle's current readings, updated once a
// second by a random walk and read by the responder loop on every
// incoming request.
type simState struct {
	mu         sync.Mutex
	soc        float64
	power      float64
	speed      float64
	battTemp   float64
	odometer   float64
	isCharging bool
	isDCFC     bool
}

func newSimState() *simState {
	return &simState{soc: 72, battTemp: 28, odometer: 18342}
}

// tick advances the simulated state by one second, cycling loosely
// between driving and charging the way a real commute-and-plug-in
// pattern would.
func (s *simState) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.isCharging:
		rate := 0.05
		if s.isDCFC {
			rate = 0.3
		}
		s.soc += rate
		s.speed = 0
		s.power = -rate * 60
		if s.soc >= 95 {
			s.isCharging = false
			s.isDCFC = false
		}
	case s.soc < 15:
		s.isCharging = true
		s.isDCFC = rand.Float64() < 0.4
		s.speed = 0
	default:
		s.speed += (rand.Float64() - 0.5) * 20
		if s.speed < 0 {
			s.speed = 0
		}
		if s.speed > 130 {
			s.speed = 130
		}
		drain := (5 + s.speed*0.08) / 3600
		s.soc -= drain
		s.power = s.speed * 0.35
		s.odometer += s.speed / 3600
	}

	s.battTemp += (rand.Float64() - 0.5) * 0.5
	if s.battTemp < 15 {
		s.battTemp = 15
	}
	if s.battTemp > 42 {
		s.battTemp = 42
	}
}

func (s *simState) valueFor(field signal.Field) (float32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch field {
	case signal.FieldSOC:
		return float32(s.soc), true
	case signal.FieldPower:
		return float32(s.power), true
	case signal.FieldSpeed:
		return float32(s.speed), true
	case signal.FieldBattTemp:
		return float32(s.battTemp), true
	case signal.FieldOdometer:
		return float32(s.odometer), true
	case signal.FieldIsCharging:
		if s.isCharging {
			return 1, true
		}
		return 0, true
	case signal.FieldIsDCFC:
		if s.isDCFC {
			return 1, true
		}
		return 0, true
	case signal.FieldIsParked:
		if s.speed == 0 && !s.isCharging {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// buildResponse is the inverse of signal.Decode: it packs value into
// the response window cfg describes, prefixed with the 0x62 positive
// ReadDataByIdentifier envelope and the DID echoed back from the
// request.
func buildResponse(cfg signal.Config, value float32) []byte {
	scale := cfg.Scale
	if scale == 0 {
		scale = 1
	}
	raw := int64((value - cfg.Offset) / scale)

	windowLen := cfg.StartByte + cfg.Length
	buf := make([]byte, 3+windowLen)
	buf[0] = 0x62
	if len(cfg.Request) >= 3 {
		copy(buf[1:3], cfg.Request[1:3])
	}

	if cfg.Bit >= 0 && cfg.Bit <= 31 {
		if raw != 0 {
			byteIdx := cfg.Bit / 8
			pos := 3 + windowLen - 1 - byteIdx
			if pos >= 3+cfg.StartByte && pos < len(buf) {
				buf[pos] |= 1 << uint(cfg.Bit%8)
			}
		}
		return buf
	}

	for i := 0; i < cfg.Length; i++ {
		shift := uint(8 * (cfg.Length - 1 - i))
		buf[3+cfg.StartByte+i] = byte((raw >> shift) & 0xFF)
	}
	return buf
}

func main() {
	var (
		configPath string
		daemonPath string
	)
	flag.StringVar(&daemonPath, "config", "config.yaml", "Daemon config to read the transport from")
	flag.StringVar(&configPath, "signals", "", "Overrides the daemon config's signal config path, if set")
	flag.Parse()

	daemon, err := config.LoadDaemon(daemonPath)
	if err != nil {
		log.Fatalf("loading daemon config: %v", err)
	}

	signalsPath := daemon.Signals.ConfigPath
	if configPath != "" {
		signalsPath = configPath
	}
	telemetryCfg, err := config.LoadTelemetryConfig(signalsPath, daemon.Signals.ObdPath)
	if err != nil {
		log.Fatalf("loading signal config: %v", err)
	}
	if len(telemetryCfg.Signals) == 0 {
		log.Fatal("signal config has no signals to answer")
	}

	port, err := transport.NewPort(daemon.TransportConfig())
	if err != nil {
		log.Fatalf("building CAN port: %v", err)
	}
	if err := port.Start(daemon.TransportConfig().Baud()); err != nil {
		log.Fatalf("starting CAN port: %v", err)
	}
	defer port.Stop()

	// The bundled example config addresses a single gateway ECU: every
	// signal shares one request/response CAN id pair, and DIDs
	// distinguish which reading is being asked for. listenID is what
	// the client transmits to; respondID is what it listens on.
	listenID, listenExt := telemetryCfg.Signals[0].TxID, telemetryCfg.Signals[0].TxExt
	respondID, respondExt := telemetryCfg.Signals[0].RxID, telemetryCfg.Signals[0].RxExt

	engine := isotp.NewEngine(port)

	state := newSimState()
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for range ticker.C {
			state.tick()
		}
	}()

	log.Printf("simulator answering %d signals on tx=0x%X rx=0x%X", len(telemetryCfg.Signals), listenID, respondID)

	for {
		req, err := engine.Receive(respondID, respondExt, listenID, listenExt)
		if err != nil {
			if isotp.IsTimeout(err) {
				continue
			}
			log.Printf("receive error: %v", err)
			continue
		}

		cfg, ok := matchSignal(telemetryCfg.Signals, req)
		if !ok {
			continue
		}

		value, ok := state.valueFor(cfg.Field)
		if !ok {
			continue
		}

		resp := buildResponse(cfg, value)
		if err := engine.Send(respondID, respondExt, listenID, listenExt, resp); err != nil {
			log.Printf("send error: %v", err)
		}
	}
}

func matchSignal(signals []signal.Config, request []byte) (signal.Config, bool) {
	for _, cfg := range signals {
		if bytes.Equal(cfg.Request, request) {
			return cfg, true
		}
	}
	return signal.Config{}, false
}
