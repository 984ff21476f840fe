// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// Services depend on domain, the port interfaces, logger and metrics.
// They never import an adapter.
package services
