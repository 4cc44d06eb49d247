// Copyright 2025 Edgeo SCADA
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/edgeo-scada/gpiopanel"
)

var (
	watchInterval  time.Duration
	watchCount     int
	watchChanges   bool
	watchJSON      bool
	watchTimestamp bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <bank>",
	Short: "Continuously monitor a bank",
	Long: `Poll one bank of a running panel with GPIO R and print its pins.

Features:
  - Changed pins shown in bold
  - Changes-only mode
  - JSON lines output`,
	Example: `  # Watch bank a every second
  gpiopanel watch a

  # Print only when bank c changes, as JSON
  gpiopanel watch c -i 200ms --changes --json`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVarP(&watchInterval, "interval", "i", 1*time.Second, "Poll interval")
	watchCmd.Flags().IntVarP(&watchCount, "iterations", "n", 0, "Number of iterations (0 = infinite)")
	watchCmd.Flags().BoolVar(&watchChanges, "changes", false, "Print only when the bank changes")
	watchCmd.Flags().BoolVar(&watchJSON, "json", false, "Print JSON lines")
	watchCmd.Flags().BoolVar(&watchTimestamp, "timestamp", true, "Show timestamps")
}

// WatchState tracks one watch run.
type WatchState struct {
	client       *gpiopanel.Client
	bank         string
	prev         string
	iteration    int
	startTime    time.Time
	errorCount   int
	changeCount  int
	successCount int
}

type watchSample struct {
	Time    string `json:"time"`
	Bank    string `json:"bank"`
	Bits    string `json:"bits"`
	Changed bool   `json:"changed"`
}

func runWatch(cmd *cobra.Command, args []string) error {
	bank := args[0]
	if !gpiopanel.IsBankName(bank) {
		return fmt.Errorf("unknown bank %q (want a..f)", bank)
	}

	client, err := createClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}

	state := &WatchState{
		client:    client,
		bank:      bank,
		startTime: time.Now(),
	}

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	if err := state.poll(ctx); err != nil {
		outputWarning("Initial read failed: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nStopping watch...")
			state.printSummary()
			return nil
		case <-ticker.C:
			if err := state.poll(ctx); err != nil {
				state.errorCount++
				if viper.GetBool("verbose") {
					outputWarning("Read failed: %v", err)
				}
			}
			if watchCount > 0 && state.iteration >= watchCount {
				state.printSummary()
				return nil
			}
		}
	}
}

func (s *WatchState) poll(ctx context.Context) error {
	readCtx, cancel := context.WithTimeout(ctx, viper.GetDuration("timeout"))
	defer cancel()

	bank, err := s.client.ReadBank(readCtx, s.bank)
	if err != nil {
		return err
	}
	s.iteration++
	s.successCount++

	bits := bank.String()
	changed := s.prev != "" && bits != s.prev
	if changed {
		s.changeCount++
	}
	defer func() { s.prev = bits }()

	if watchChanges && s.prev != "" && !changed {
		return nil
	}

	now := time.Now()
	if watchJSON {
		return json.NewEncoder(os.Stdout).Encode(watchSample{
			Time:    now.Format(time.RFC3339Nano),
			Bank:    s.bank,
			Bits:    bits,
			Changed: changed,
		})
	}

	if s.iteration == 1 {
		fmt.Printf("%s - Watching bank %s on %s every %s\n",
			color(colorBold, "GPIO WATCH"), s.bank, getAddress(), watchInterval)
		fmt.Printf("%s  %s\n", strings.Repeat(" ", 12), pinRuler(gpiopanel.PinCount))
	}

	stamp := strings.Repeat(" ", 12)
	if watchTimestamp {
		stamp = now.Format("15:04:05.000")
	}
	fmt.Printf("%s  %s\n", stamp, formatPins(bits, s.prev))
	return nil
}

func (s *WatchState) printSummary() {
	elapsed := time.Since(s.startTime)
	fmt.Println(strings.Repeat("-", 40))
	fmt.Printf("Duration: %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("Reads: %d ok, %d failed\n", s.successCount, s.errorCount)
	fmt.Printf("Changes: %d\n", s.changeCount)
	if s.errorCount > 0 && s.successCount == 0 {
		outputError("no successful reads from %s", getAddress())
	}
}
