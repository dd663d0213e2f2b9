// Package logger provides the colored console output used for lifecycle
// events: startup banner, DB migrations, seeding, server address. Request
// handlers use the stdlib log package with a [TAG] prefix instead.
package logger

import (
	"fmt"
	"strings"
	"time"
)

const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
)

func stamp() string {
	return time.Now().Format("15:04:05")
}

func emit(color, mark, tag, msg string) {
	fmt.Printf("%s%s%s %s%s%s %s[%s]%s %s\n", dim, stamp(), reset, color, mark, reset, bold, tag, reset, msg)
}

// Info prints a neutral status line.
func Info(tag, msg string) { emit(cyan, "•", tag, msg) }

// Success prints a green confirmation line.
func Success(tag, msg string) { emit(green, "✓", tag, msg) }

// Warn prints a yellow warning line.
func Warn(tag, msg string) { emit(yellow, "!", tag, msg) }

// Error prints a red error line.
func Error(tag, msg string) { emit(red, "✗", tag, msg) }

// Banner prints the startup banner with the build version.
func Banner(version string) {
	if version == "" {
		version = "dev"
	}
	fmt.Println()
	fmt.Printf("%s%s  PMCELL · Separação de Pedidos%s\n", bold, cyan, reset)
	fmt.Printf("%s  %s%s\n", dim, version, reset)
	fmt.Printf("%s  %s%s\n", dim, strings.Repeat("─", 34), reset)
}

// Server prints the address the HTTP server is listening on.
func Server(addr string) {
	fmt.Printf("\n%s%s  ➜  http://%s%s\n\n", bold, green, addr, reset)
}

// Section prints a divider used to group related startup output.
func Section(name string) {
	fmt.Printf("\n%s── %s %s%s\n", bold, name, strings.Repeat("─", max(2, 30-len(name))), reset)
}

// Stats prints an aligned key/value line under a Section.
func Stats(key string, value interface{}) {
	fmt.Printf("   %s%-22s%s %v\n", dim, key, reset, value)
}
