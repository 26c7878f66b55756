// Package prometheus exposes pairAuth engine metrics through client_golang.
//
// [PrometheusExporter] is a prometheus.Collector. Register it with your own registry, or
// mount [PrometheusExporter.Handler], which uses a private one. Counter names are
// pairauth_*_total; the single histogram is pairauth_authenticate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry.
//   - Mutate engine state.
package prometheus
