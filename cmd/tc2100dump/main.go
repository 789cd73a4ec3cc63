// Command tc2100dump connects to a TC2100-class digital thermometer and
// dumps its readings to CSV.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"

	"tc2100/pkg/bridge/foxglove"
	"tc2100/pkg/config"
	"tc2100/pkg/engine"
	"tc2100/pkg/logger"
	"tc2100/pkg/observation"
	"tc2100/pkg/transport"
	"tc2100/pkg/tui"
)

const (
	appName    = "tc2100dump"
	appVersion = "1.1.0"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(stderr)

	port := fs.String("port", "", "path to serial port, like /dev/ttyUSB0 or COM1")
	out := fs.String("out", "", "output file; use '-' for stdout")
	version := fs.Bool("version", false, "print version and exit")
	configPath := fs.String("config", config.DefaultConfigPath, "TOML config path")
	baud := fs.Int("baud", 0, "serial baud rate (default 9600)")
	format := fs.String("format", "", "output format: csv or jsonl")
	wsAddr := fs.String("ws", "", "serve live readings to Foxglove over WebSocket at this address")
	useTUI := fs.Bool("tui", false, "show live readings in the terminal")
	mock := fs.Bool("mock", false, "publish synthetic readings instead of opening a serial port")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *version {
		fmt.Fprintln(stdout, versionString())
		return 0
	}

	cfg, _, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, "bad config:", err)
		return 2
	}
	if *port != "" {
		cfg.Serial.Port = *port
	}
	if *baud > 0 {
		cfg.Serial.Baud = *baud
	}
	if *out != "" {
		cfg.Output.Path = *out
	}
	if *format != "" {
		cfg.Output.Format = *format
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, "bad config:", err)
		return 2
	}
	if cfg.Serial.Port == "" && !*mock {
		fmt.Fprintln(stderr, "no serial port given; use --port (or --mock)")
		return 2
	}

	log := zerolog.New(zerolog.ConsoleWriter{
		Out:        stderr,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Str("app", appName).Logger()

	var sink io.Writer = stdout
	toStdout := true
	if cfg.Output.Path != "" && cfg.Output.Path != "-" {
		file, err := os.Create(cfg.Output.Path)
		if err != nil {
			fmt.Fprintln(stderr, "failed to open output file:", err)
			return 1
		}
		defer file.Close()
		sink = file
		toStdout = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	hub := engine.NewHub(engine.WithBroadcastBuffer(cfg.Serial.Buf))
	go hub.Run(ctx)

	// The live view owns the terminal; rows still go to a file when
	// --out names one, but stdout output is suspended under --tui.
	if !*useTUI || !toStdout {
		switch cfg.Output.Format {
		case config.FormatJSONL:
			go logger.NewJSONLWriter(sink).Consume(ctx, hub.Subscribe())
		default:
			go logger.NewCSVWriter(sink).Consume(ctx, hub.Subscribe())
		}
	}

	if *wsAddr != "" {
		bridgeCfg := foxglove.Config{
			WSAddr:    *wsAddr,
			Topic:     cfg.Foxglove.Topic,
			TempTopic: cfg.Foxglove.TempTopic,
			SendBuf:   cfg.Foxglove.SendBuf,
		}
		server := foxglove.NewServer(bridgeCfg, hub)
		go func() {
			if err := server.Run(ctx); err != nil {
				log.Error().Err(err).Str("addr", *wsAddr).Msg("foxglove bridge stopped")
			}
		}()
	}

	if *mock {
		go runMockPublisher(ctx, hub, 1)
	} else {
		chunks := make(chan []byte, cfg.Serial.Buf)
		transport.StartReader(ctx, cfg.Serial.Port, chunks,
			transport.WithBaudRate(cfg.Serial.Baud),
			transport.WithReconnectInterval(cfg.ReconnectInterval()),
			transport.WithBufferSize(cfg.Serial.ReaderBuf),
			transport.WithErrorHandler(func(err error) {
				log.Warn().Err(err).Str("port", cfg.Serial.Port).Msg("serial error")
			}),
		)
		go pump(ctx, chunks, hub)
	}

	if *useTUI {
		if err := tui.Run(ctx, hub); err != nil {
			log.Error().Err(err).Msg("tui failed")
			return 1
		}
		return 0
	}

	<-ctx.Done()
	return 0
}

// pump accumulates raw serial chunks, reframes them, and publishes every
// complete observation. The framer keeps no state between calls, so the
// unconsumed remainder is carried here and prepended to the next chunk.
func pump(ctx context.Context, chunks <-chan []byte, hub *engine.Hub) {
	var pending []byte
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-chunks:
			if !ok {
				return
			}
			pending = append(pending, chunk...)
			observations, rest := observation.ParseStream(pending)
			pending = append([]byte(nil), rest...)
			for _, obs := range observations {
				hub.Publish(obs)
			}
		}
	}
}

func versionString() string {
	return fmt.Sprintf("%s version %s", appName, appVersion)
}
