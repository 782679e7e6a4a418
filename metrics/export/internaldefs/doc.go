// Package internaldefs exposes the stable metric name and bucket
// definitions shared by exporter implementations.
//
// Counter and histogram definitions live here so the Prometheus and OTel
// exporters emit identical names and bucket boundaries. A change here
// changes every exporter at once.
package internaldefs
