// Package internaldefs holds the counter names and latency bucket bounds shared by the
// Prometheus and OTel exporters.
package internaldefs
