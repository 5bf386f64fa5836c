// Package infra contains the adapters behind the core interfaces: store
// backends, metrics sinks, the MQTT publisher, logging and error monitoring.
package infra
