// Package command provides CLI command definitions for pairmesh-cli.
//
// This package defines all CLI commands using urfave/cli/v2:
//
//   - root.go: root command, global flags, config resolution
//   - pairing.go: pair, exchange and session
//   - listen.go: realtime hub client
//   - upload.go: artifact upload as a paired client
//   - admin.go: operator status, rate limit reset, token invalidation
//     and admin key hashing
//
// Commands parse flags, call the server through the connection package and
// print the data field of the response in the selected output format.
// Progress and notices go to stderr so stdout stays machine readable.
package command
