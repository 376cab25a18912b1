// Package config provides configuration helpers for go-armctl commands.
package config

import "os"

// Default daemon configuration.
const (
	DefaultListenAddr = ":8080"
	DefaultBoardBaud  = 115200
	DefaultLoopHz     = 50
)

// ChainFile returns the chain descriptor path from the ARM_CHAIN env var.
// Falls back to the provided default if not set.
func ChainFile(defaultPath string) string {
	if path := os.Getenv("ARM_CHAIN"); path != "" {
		return path
	}
	return defaultPath
}

// BoardPort returns the actuator board serial port from ARM_BOARD_PORT.
// Empty means no board is attached (solver-only mode).
func BoardPort(defaultPort string) string {
	if port := os.Getenv("ARM_BOARD_PORT"); port != "" {
		return port
	}
	return defaultPort
}

// ListenAddr returns the web API listen address from ARM_LISTEN_ADDR or default.
func ListenAddr(defaultAddr string) string {
	if addr := os.Getenv("ARM_LISTEN_ADDR"); addr != "" {
		return addr
	}
	return defaultAddr
}

// LogLevel returns the log level from ARM_LOG_LEVEL or "info".
func LogLevel() string {
	if level := os.Getenv("ARM_LOG_LEVEL"); level != "" {
		return level
	}
	return "info"
}
