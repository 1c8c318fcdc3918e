// Package shutdown runs named cleanup hooks when the process is asked to
// stop.
//
// Hooks run in reverse registration order under one shared timeout, so
// components registered first (stores, sweepers) are torn down after the
// ones that depend on them (HTTP server, realtime hub).
//
//	h := shutdown.NewHandler(15*time.Second, log)
//	h.OnShutdown("http", srv.Shutdown)
//	err := h.Wait()
package shutdown
