// Package otel binds engine counters to OpenTelemetry observable
// instruments.
//
// [NewExporter] registers an Int64ObservableCounter per engine counter;
// a single callback reads [authgate.Engine.MetricsSnapshot] on each
// collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
