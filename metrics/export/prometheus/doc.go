// Package prometheus exports authcore engine metrics through a
// client_golang Collector. Values are read from Engine.MetricsSnapshot at
// scrape time; nothing is cached between scrapes.
package prometheus
