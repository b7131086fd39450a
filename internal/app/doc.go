// Package app composes the marketplace services into one application:
// clients, stores, services, the shared router and its middleware chain,
// and the maintenance scheduler.
//
// Business rules live in services/*/api and internal/domain. This package
// only wires them together and manages their lifecycle.
package app
