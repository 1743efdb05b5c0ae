// Package otel publishes authcore engine metrics as OpenTelemetry observable
// instruments.
//
// [NewExporter] creates one Int64ObservableCounter per engine counter. Each
// latency histogram becomes a <name>_bucket gauge carrying an le attribute
// per cumulative bucket, plus a <name>_count gauge. A single callback reads
// Engine.MetricsSnapshot on every collection.
//
// Callers own the MeterProvider and supply the Meter.
package otel
