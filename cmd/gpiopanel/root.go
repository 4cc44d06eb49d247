package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/edgeo-scada/gpiopanel"
)

var (
	cfgFile string

	// Global flags
	host      string
	port      int
	timeout   time.Duration
	logFormat string
	verbose   bool
	noColor   bool

	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "gpiopanel",
	Short: "A GPIO/PWM panel emulator",
	Long: `gpiopanel emulates the GPIO and PWM panel of a development board behind a
TCP line protocol. Socket clients and the local console drive the same six
16-pin banks (a..f).

Commands on the wire, terminated by CRLF:
  GPIO W <bank> 20 <value>   scatter the binary digits of value into bank
  GPIO S <bank> 16 <value>   replace bank with value
  GPIO R <bank> 16           reply GPIO R <bank><16 bits>
  PWM W Pan|Tilt <angle>     log a servo angle

Examples:
  # Run the panel on the default port with a console
  gpiopanel serve

  # Seed banks from a preset and publish changes to MQTT
  gpiopanel serve --preset panel.toml --mqtt-broker tcp://localhost:1883

  # Send one command to a running panel
  gpiopanel send "GPIO R a 16"

  # Watch bank a change
  gpiopanel watch a -i 500ms`,
	Version: version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if viper.GetBool("verbose") {
			level = slog.LevelDebug
		}
		opts := &slog.HandlerOptions{Level: level}

		var handler slog.Handler
		if viper.GetString("log_format") == "json" {
			handler = slog.NewJSONHandler(os.Stderr, opts)
		} else {
			handler = slog.NewTextHandler(os.Stderr, opts)
		}
		logger = slog.New(handler)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Configuration file
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.gpiopanel.yaml)")

	// Connection flags
	rootCmd.PersistentFlags().StringVarP(&host, "host", "H", "localhost", "Panel host for send and watch (serve listens on --bind)")
	rootCmd.PersistentFlags().IntVarP(&port, "port", "p", gpiopanel.DefaultPort, "Panel TCP port")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 5*time.Second, "Client operation timeout")

	// Output flags
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text, json")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable color output")

	// Bind to viper
	viper.BindPFlag("host", rootCmd.PersistentFlags().Lookup("host"))
	viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// Add commands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(watchCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".gpiopanel")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("GPIOPANEL")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

func getAddress() string {
	return fmt.Sprintf("%s:%d", viper.GetString("host"), viper.GetInt("port"))
}

func createClient() (*gpiopanel.Client, error) {
	return gpiopanel.NewClient(getAddress(),
		gpiopanel.WithTimeout(viper.GetDuration("timeout")),
		gpiopanel.WithClientLogger(logger),
	)
}
