// Package infra contains technical adapters: persistence, the HTTP travel
// provider, the MQTT schedule notifier and metrics exporters. These packages
// depend only on the interfaces defined in the core packages.
package infra
