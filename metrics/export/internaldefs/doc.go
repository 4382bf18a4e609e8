// Package internaldefs exposes the stable metric name definitions
// shared by the exporter implementations.
//
// Counter definitions live here so the Prometheus and OTel exporters
// expose identical names. Changes here affect all exporters
// simultaneously.
//
// # What this package must NOT do
//
//   - Import any exporter package.
//   - Perform I/O.
package internaldefs
