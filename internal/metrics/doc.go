// Package metrics exposes submission activity as Prometheus collectors.
//
// Metrics implements submit.Observer; register it with
// Controller.Observe and serve the registry with promhttp.
package metrics
