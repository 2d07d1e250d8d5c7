// Package prometheus adapts engine metrics to the Prometheus client.
//
// [Collector] implements prometheus.Collector and reads a metrics snapshot on
// every scrape; it never registers itself globally. Counter names are
// folioauth_*_total and the only histogram is
// folioauth_authenticate_latency_seconds.
package prometheus
