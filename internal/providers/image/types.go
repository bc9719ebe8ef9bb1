package image

import (
	"context"

	"server/internal/domain"
)

// GenerateRequest describes a normalized request passed to the generation
// provider.
type GenerateRequest struct {
	JobID          string
	InputURL       string
	Mode           domain.JobMode
	PromptOverride string
	Params         []byte // opaque sub-option payload, forwarded as-is
}

// GenerateResult is the normalized provider response.
type GenerateResult struct {
	ProviderJobID string
	Images        [][]byte
}

// Generator is the contract implemented by generation providers. The call is
// slow (seconds to minutes) and unreliable; any error is treated by the
// worker as an explicit job failure.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
}
