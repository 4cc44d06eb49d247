package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/edgeo-scada/gpiopanel"
)

var sendCmd = &cobra.Command{
	Use:   "send [line...]",
	Short: "Send command lines to a running panel",
	Long: `Send command lines to a running panel and print the replies. Each argument
is one line; with no arguments, lines are read from stdin. Only reads produce a
reply.`,
	Example: `  # Write 3 into bank a, then read it back
  gpiopanel send "GPIO W a 20 3" "GPIO R a 16"

  # Replay a script
  gpiopanel send < script.txt`,
	RunE: runSend,
}

func runSend(cmd *cobra.Command, args []string) error {
	client, err := createClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}

	lines := args
	if len(lines) == 0 {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
	}

	failed := 0
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		reply, err := client.Exec(ctx, line)
		switch {
		case gpiopanel.IsMalformed(err):
			outputWarning("skipped %q: %v", line, err)
			failed++
		case err != nil:
			return err
		case reply != "":
			fmt.Println(reply)
		default:
			outputSuccess("%s", line)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d line(s) not sent", failed)
	}
	return nil
}
