package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/edgeo-scada/gpiopanel"
	"github.com/edgeo-scada/gpiopanel/internal/notify"
	"github.com/edgeo-scada/gpiopanel/internal/preset"
)

// errConsoleClosed ends the errgroup when the console input runs out.
var errConsoleClosed = errors.New("console closed")

var (
	serveBind       string
	servePrompt     string
	serveInput      time.Duration
	serveLevel      string
	servePreset     string
	serveSeparator  string
	serveNoConsole  bool
	serveMaxSession int
	serveMQTTBroker string
	serveMQTTTopic  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the panel server and local console",
	Long: `Run the panel: listen for socket sessions and read commands from the local
console. The panel stops when the console input ends, on SIGINT/SIGTERM, or if
the port cannot be bound.`,
	Example: `  # Bind all interfaces on the default port
  gpiopanel serve --bind 0.0.0.0

  # Pins start high, reads reply "GPIO R a <bits>"
  gpiopanel serve --default-level 1 --read-separator " "`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveBind, "bind", "", "Bind address (default: all interfaces)")
	serveCmd.Flags().StringVar(&servePrompt, "prompt", gpiopanel.DefaultPrompt, "Console prompt")
	serveCmd.Flags().DurationVar(&serveInput, "input-timeout", gpiopanel.DefaultInputTimeout, "Console input wait before re-prompting")
	serveCmd.Flags().StringVar(&serveLevel, "default-level", "0", "Initial pin level: 0 or 1")
	serveCmd.Flags().StringVar(&servePreset, "preset", "", "TOML preset of initial bank contents")
	serveCmd.Flags().StringVar(&serveSeparator, "read-separator", "", "Text between bank tag and bits in read replies")
	serveCmd.Flags().BoolVar(&serveNoConsole, "no-console", false, "Do not read commands from stdin")
	serveCmd.Flags().IntVar(&serveMaxSession, "max-sessions", 0, "Maximum concurrent sessions (0 = unlimited)")
	serveCmd.Flags().StringVar(&serveMQTTBroker, "mqtt-broker", "", "MQTT broker URL for bank state publication")
	serveCmd.Flags().StringVar(&serveMQTTTopic, "mqtt-topic", notify.DefaultTopic, "MQTT topic prefix")

	viper.BindPFlag("bind", serveCmd.Flags().Lookup("bind"))
	viper.BindPFlag("prompt", serveCmd.Flags().Lookup("prompt"))
	viper.BindPFlag("input_timeout", serveCmd.Flags().Lookup("input-timeout"))
	viper.BindPFlag("default_level", serveCmd.Flags().Lookup("default-level"))
	viper.BindPFlag("preset", serveCmd.Flags().Lookup("preset"))
	viper.BindPFlag("read_separator", serveCmd.Flags().Lookup("read-separator"))
	viper.BindPFlag("max_sessions", serveCmd.Flags().Lookup("max-sessions"))
	viper.BindPFlag("mqtt.broker", serveCmd.Flags().Lookup("mqtt-broker"))
	viper.BindPFlag("mqtt.topic", serveCmd.Flags().Lookup("mqtt-topic"))
}

func runServe(cmd *cobra.Command, args []string) error {
	store, err := buildStore()
	if err != nil {
		return err
	}

	panelOpts := []gpiopanel.PanelOption{
		gpiopanel.WithLogger(logger),
		gpiopanel.WithReadSeparator(viper.GetString("read_separator")),
	}
	if broker := viper.GetString("mqtt.broker"); broker != "" {
		pub, err := notify.NewRealPublisher(broker, "gpiopanel", viper.GetString("mqtt.topic"))
		if err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
		defer pub.Close()
		panelOpts = append(panelOpts, gpiopanel.WithNotifier(pub))
		publishAll(store, pub)
	}

	panel := gpiopanel.NewPanel(store, panelOpts...)
	server := gpiopanel.NewServer(panel,
		gpiopanel.WithServerLogger(logger),
		gpiopanel.WithMaxSessions(viper.GetInt("max_sessions")),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	addr := fmt.Sprintf("%s:%d", viper.GetString("bind"), viper.GetInt("port"))
	g.Go(func() error {
		return server.ListenAndServeContext(ctx, addr)
	})

	if !serveNoConsole {
		console := gpiopanel.NewConsole(os.Stdin, os.Stdout, panel,
			gpiopanel.WithConsoleLogger(logger),
			gpiopanel.WithPrompt(viper.GetString("prompt")),
			gpiopanel.WithInputTimeout(viper.GetDuration("input_timeout")),
		)
		g.Go(func() error {
			err := console.Run(ctx)
			switch {
			case err == nil:
				return errConsoleClosed
			case ctx.Err() != nil:
				return nil
			default:
				return err
			}
		})
	}

	err = g.Wait()
	logger.Info("panel stopped",
		slog.Any("panel", panel.Metrics().Collect()),
		slog.Any("server", server.Metrics().Collect()))

	if errors.Is(err, errConsoleClosed) {
		return nil
	}
	return err
}

// buildStore creates the bank store from the default level and the
// optional preset. A preset default overrides the flag.
func buildStore() (*gpiopanel.Store, error) {
	level, err := parseLevel(viper.GetString("default_level"))
	if err != nil {
		return nil, err
	}

	path := viper.GetString("preset")
	if path == "" {
		return gpiopanel.NewStore(level), nil
	}

	p, err := preset.Load(path)
	if err != nil {
		return nil, fmt.Errorf("preset %s: %w", path, err)
	}
	if l, ok, _ := p.Level(); ok {
		level = l
	}

	store := gpiopanel.NewStore(level)
	if err := p.Apply(store); err != nil {
		return nil, fmt.Errorf("preset %s: %w", path, err)
	}
	logger.Info("loaded preset", slog.String("path", path), slog.Int("banks", len(p.Banks)))
	return store, nil
}

func parseLevel(s string) (byte, error) {
	switch s {
	case "0", "":
		return gpiopanel.Low, nil
	case "1":
		return gpiopanel.High, nil
	default:
		return 0, fmt.Errorf("default level %q is not 0 or 1", s)
	}
}

// publishAll publishes the initial state of every bank.
func publishAll(store *gpiopanel.Store, pub notify.Publisher) {
	snapshot := store.Snapshot()
	for _, name := range store.Names() {
		if err := pub.PublishBank(name, snapshot[name].String()); err != nil {
			logger.Warn("bank publish failed",
				slog.String("bank", name),
				slog.String("error", err.Error()))
		}
	}
}
