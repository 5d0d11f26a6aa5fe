// Package internaldefs exposes the stable metric name and bucket-boundary
// definitions shared by the exporter implementations.
//
// Counter and histogram definitions live here so that the Prometheus and
// OTel exporters publish identical metric names and bounds. Changing a
// definition here changes every exporter at once.
//
// # What this package must NOT do
//
//   - Import an exporter package.
//   - Perform I/O.
package internaldefs
