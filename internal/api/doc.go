// Package api hosts the HTTP server, middleware, and REST handlers of the
// analyzer. Routes:
//   - GET /health for liveness checks.
//   - GET /metrics for Prometheus scraping.
//   - POST /analyze to analyze (or return the cached analysis of) a company URL.
//   - GET /profiles/{id} to read a stored analysis.
package api
