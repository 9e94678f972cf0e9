/*
Package metrics provides Prometheus metrics collection and exposition
for an open s4 database.

Metrics are registered at package init and updated two ways: request
metrics (query latency, rows fetched) are observed inline by callers as
each operation completes, while gauges that describe the database's
current size (fact count, key count, transaction counters) are
refreshed periodically by a Collector polling an *s4.DB. Metrics are
exposed over HTTP via Handler for scraping by a Prometheus server.
*/
package metrics
