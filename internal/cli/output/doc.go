// Package output provides output formatting for pairmesh-cli.
//
//   - formatter.go: Formatter interface and factory
//   - table.go: table rendering, nested structs flatten to dotted keys
//   - json.go, yaml.go: machine-readable output for scripting
//   - spinner.go, progress.go: terminal feedback written to stderr
//
// Tables honour two struct tags besides json: table:"-" hides a field and
// table:"wide" shows it only with --wide.
package output
