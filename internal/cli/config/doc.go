// Package config provides the pairmesh-cli configuration file.
//
//   - spec.go: CLIConfig struct (~/.pairmesh/cli.yaml)
//   - loader.go: loading, atomic saving and env/flag merging
//
// The file holds the default server, the preferred output format and the
// session saved by "pairmesh-cli exchange --save". Precedence is
// flags > PAIRMESH_* environment > file > defaults.
package config
