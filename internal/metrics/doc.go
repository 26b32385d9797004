// Package metrics records pipeline counters and writes them in the
// Prometheus text format for the node-exporter textfile collector.
package metrics
