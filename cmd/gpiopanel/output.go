package main

import (
	"fmt"
	"os"
	"strings"
)

// Color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func color(c, s string) string {
	if noColor {
		return s
	}
	return c + s + colorReset
}

func outputSuccess(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(color(colorGreen, "OK") + " " + msg)
}

func outputError(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, color(colorRed, "ERROR")+" "+msg)
}

func outputWarning(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, color(colorYellow, "WARN")+" "+msg)
}

// formatPins renders bits with high pins highlighted and the pins that
// differ from prev in bold. prev may be empty.
func formatPins(bits, prev string) string {
	var sb strings.Builder
	for i := 0; i < len(bits); i++ {
		s := string(bits[i])
		if bits[i] == '1' {
			s = color(colorGreen, s)
		}
		if len(prev) == len(bits) && prev[i] != bits[i] {
			s = color(colorBold, s)
		}
		sb.WriteString(s)
	}
	return sb.String()
}

// pinRuler labels pin positions 0..15 above a rendered bank.
func pinRuler(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteByte(byte('0' + i%10))
	}
	return color(colorCyan, sb.String())
}
