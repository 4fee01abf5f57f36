package vp

import (
	"context"

	"github.com/pilacorp/go-credential-trust/credential/common/model"
	"github.com/pilacorp/go-credential-trust/internal/batch"
)

// Item is one presentation of a batch with the expectations it is
// validated against.
type Item struct {
	Presentation *model.VerifiablePresentation
	Options      ValidateOptions
}

// BatchValidationResult aggregates a batch validation. Total equals
// Valid+Invalid and Results are in input order.
type BatchValidationResult struct {
	Total   int
	Valid   int
	Invalid int
	Results []ValidationResult
}

// ValidatePresentations validates items concurrently. Items not started
// because ctx ended are invalid and carry the context error.
func (s *Service) ValidatePresentations(ctx context.Context, items []Item) BatchValidationResult {
	results := batch.Run(ctx, s.opts.batchConcurrency, len(items),
		func(ctx context.Context, i int) ValidationResult {
			return s.ValidatePresentation(ctx, items[i].Presentation, items[i].Options)
		},
		func(_ int, err error) ValidationResult {
			return ValidationResult{Errors: []error{err}}
		},
	)

	summary := BatchValidationResult{Total: len(items), Results: results}
	for i := range results {
		if results[i].IsValid {
			summary.Valid++
		} else {
			summary.Invalid++
		}
	}
	return summary
}
