// Package config holds the flag-parsed settings for the two binaries,
// grounded on bken's server/main.go flag.String/flag.Duration block.
package config

import (
	"flag"
	"time"
)

// ServerConfig configures cmd/syncserver.
type ServerConfig struct {
	Addr        string
	DBPath      string
	IdleTimeout time.Duration
}

// ParseServerFlags parses os.Args-style flags for the server binary.
func ParseServerFlags(args []string) (ServerConfig, error) {
	fs := flag.NewFlagSet("syncserver", flag.ContinueOnError)
	addr := fs.String("addr", ":3000", "HTTP/WebSocket listen address")
	dbPath := fs.String("db", "syncradio.db", "SQLite database path for persisted settings")
	idleTimeout := fs.Duration("idle-timeout", 30*time.Second, "HTTP idle timeout")

	if err := fs.Parse(args); err != nil {
		return ServerConfig{}, err
	}
	return ServerConfig{Addr: *addr, DBPath: *dbPath, IdleTimeout: *idleTimeout}, nil
}

// ClientConfig configures cmd/syncclient.
type ClientConfig struct {
	ServerAddr string
	DeviceID   string
	Dashboard  bool
}

// ParseClientFlags parses os.Args-style flags for the client binary.
func ParseClientFlags(args []string) (ClientConfig, error) {
	fs := flag.NewFlagSet("syncclient", flag.ContinueOnError)
	serverAddr := fs.String("server", "localhost:3000", "sync server address (host:port)")
	deviceID := fs.String("device-id", "", "stable device identifier (generated if empty)")
	dashboard := fs.Bool("dashboard", false, "connect using the self-describing text codec, for browser-based observability UIs")

	if err := fs.Parse(args); err != nil {
		return ClientConfig{}, err
	}
	return ClientConfig{ServerAddr: *serverAddr, DeviceID: *deviceID, Dashboard: *dashboard}, nil
}
