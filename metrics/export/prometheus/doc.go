// Package prometheus renders the engine metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] accepts an [adfsmfa.Engine] and exposes an
// [net/http.Handler] that renders every counter and histogram. Counter
// names are prefixed adfsmfa_*_total; the single histogram is
// adfsmfa_advance_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry; callers mount the
//     Handler.
//   - Mutate engine state.
package prometheus
