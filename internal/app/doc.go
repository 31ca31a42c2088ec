// Package app wires configuration, logging, telemetry, the market data provider,
// the analysis and health services, the websocket hub and the HTTP router into a
// single Application, and owns its lifecycle.
//
// # Routing
//
//	/ws                       websocket notifications (no timeout or response wrapping)
//	/api/health[/ready|/live|/stats]
//	/api/version
//	/api/analyses[...]        analysis API
//	/metrics                  Prometheus exposition
//
// Everything except /ws and /metrics runs behind tracing, access logging with panic
// recovery, security headers, CORS and the optional rate limiter. The /api subtree
// also gets the operation timeout.
//
// # Usage
//
//	a, err := app.NewApplication(nil)
//	if err != nil {
//	    return err
//	}
//	return a.Run()
//
// Run blocks until SIGINT or SIGTERM, then shuts the server down within the
// configured shutdown timeout, stops the hub and flushes telemetry.
package app
