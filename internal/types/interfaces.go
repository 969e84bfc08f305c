// internal/types/interfaces.go
package types

import (
	"context"
)

// GenerationClient is the external music-generation collaborator. Generate
// maps ordinary service failures (non-2xx, reported failure, HTTP timeouts)
// into a result with Success=false and Error set; a Go error means the call
// never reached the service in a retryable way (bad request construction,
// cancelled context) or an unexpected transport fault.
type GenerationClient interface {
	Health(ctx context.Context) error
	Generate(ctx context.Context, params *GenerationParams) (*GenerationResult, error)
}
