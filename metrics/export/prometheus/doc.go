// Package prometheus renders engine metrics in Prometheus text
// exposition format.
//
// [NewExporter] accepts an [authgate.Engine] and exposes an
// [net/http.Handler] that renders every engine counter. Counter names
// are prefixed authgate_*_total.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount
//     the Handler.
//   - Mutate engine state.
package prometheus
