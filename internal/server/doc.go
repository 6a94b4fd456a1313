// Package server provides the HTTP surface of the conversational
// calendar service.
//
// ChatServer exposes POST /ai/message, the single conversational
// endpoint: the caller sends a natural-language message together with
// an optional timezone and conversation id, and receives the agent's
// reply. The Google access token travels in the X-Google-Access-Token
// header (or a bearer Authorization header); requests without a token
// are answered with a prompt to connect the account instead of
// reaching the agent.
//
// The package also carries the operational endpoints: Kubernetes
// health probes (/healthz, /readyz, /healthz/detailed) via
// HealthChecker, and a Prometheus /metrics listener on a dedicated
// port via MetricsServer so scrape traffic never competes with chat
// traffic.
package server
