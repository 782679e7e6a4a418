// Package prometheus renders tokenward metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] wraps a [tokenward.Engine] and exposes an
// [net/http.Handler] for scraping. Counter names are tokenward_*_total;
// the single histogram is tokenward_validate_latency_seconds. Nothing is
// registered in a global registry; callers mount the handler themselves.
package prometheus
