// Package otel provides OpenTelemetry metric bindings for tokenward
// counters and histograms.
//
// [NewOTelExporter] registers an Int64ObservableCounter per engine counter
// and Int64ObservableGauges per histogram bucket. A single callback reads
// [tokenward.Engine.MetricsSnapshot] on each collection cycle; the meter
// provider and its lifecycle stay with the caller.
package otel
