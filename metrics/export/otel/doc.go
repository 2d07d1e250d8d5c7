// Package otel bridges folioAuth engine metrics into an OpenTelemetry meter.
//
// Counters become Int64ObservableCounter instruments. The authentication
// latency histogram is reported as cumulative bucket gauges carrying an "le"
// attribute, since the engine keeps fixed buckets rather than raw samples.
// The caller owns the MeterProvider.
package otel
