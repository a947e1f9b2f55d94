// Package service implements the inbound API surface of the breaker:
// read endpoints for circuit health and the admin force-reset operation.
package service

import "github.com/google/wire"

// ProviderSet is service providers.
var ProviderSet = wire.NewSet(NewCircuitService)
