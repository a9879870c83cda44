// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// Services depend on ports only. Pipelines, stores and providers are
// built by the entry point and injected.
package services

import "github.com/custodia-labs/mnemo/internal/logger"

var log = logger.Named("services")
