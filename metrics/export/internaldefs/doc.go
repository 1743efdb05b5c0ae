// Package internaldefs holds the metric names, help strings and histogram
// bucket helpers shared by the Prometheus and OpenTelemetry exporters.
package internaldefs
