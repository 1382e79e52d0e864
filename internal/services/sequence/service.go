// Package sequence mints human-readable daily references of the form
// <PREFIX>-<YYYYMMDD>-<NNNN>. Invoices and payouts draw from independent
// per-day counters.
package sequence

import (
	"context"
	"fmt"
	"time"

	"payrail/internal/repositories"
)

// Reference prefixes
const (
	PrefixInvoice = "INV"
	PrefixPayout  = "PAY"
)

type Service interface {
	// Next allocates the next reference for the prefix on the given
	// day. Allocation is atomic at the database, never read-then-write.
	Next(ctx context.Context, prefix string, day time.Time) (string, error)
}

type service struct {
	repo repositories.SequenceRepository
}

func NewService(repo repositories.SequenceRepository) Service {
	if repo == nil {
		panic("sequence repository is required")
	}
	return &service{repo: repo}
}

func (s *service) Next(ctx context.Context, prefix string, day time.Time) (string, error) {
	dayKey := day.UTC().Format("20060102")
	n, err := s.repo.Increment(ctx, prefix, dayKey)
	if err != nil {
		return "", fmt.Errorf("failed to allocate %s sequence: %w", prefix, err)
	}
	return fmt.Sprintf("%s-%s-%04d", prefix, dayKey, n), nil
}
