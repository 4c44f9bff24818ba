// Package infra contains technical adapters: the InfluxDB store, the MQTT
// subscriber and the Prometheus exporter. These packages should depend only
// on the interfaces defined in the core packages.
package infra
