// Package logger provides structured logging for PairMesh on top of
// log/slog.
//
// Every handler built by New masks PairMesh credentials (pmet_, pmst_ and
// pmak_ values) wherever they appear in a string attribute or error, and
// replaces values logged under secret-looking keys. The level is shared
// process-wide so SetLevel applies to loggers already handed out.
package logger
