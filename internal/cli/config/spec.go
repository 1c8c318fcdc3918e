package config

import "time"

// CLIConfig is the configuration for pairmesh-cli, stored in
// ~/.pairmesh/cli.yaml.
type CLIConfig struct {
	DefaultServer string `yaml:"default_server"`
	DefaultOutput string `yaml:"default_output"` // table, json, yaml

	// Session is the credential saved by "exchange --save". The admin key
	// is never written to disk.
	Session *SavedSession `yaml:"session,omitempty"`
}

// SavedSession is a session token obtained from a pairing exchange.
type SavedSession struct {
	Server    string    `yaml:"server"`
	Value     string    `yaml:"value"`
	PeerID    string    `yaml:"peer_id"`
	ExpiresAt time.Time `yaml:"expires_at"`
}

// Usable reports whether the saved session was issued by server and has
// not expired at now.
func (s *SavedSession) Usable(server string, now time.Time) bool {
	return s != nil && s.Value != "" && s.Server == server && now.Before(s.ExpiresAt)
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		DefaultServer: "http://localhost:5080",
		DefaultOutput: "table",
	}
}
