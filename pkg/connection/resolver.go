package connection

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// ErrNotFound is returned when neither a program-scoped nor a business-wide
// active connection exists.
var ErrNotFound = errors.New("no active calendar connection found")

// Resolver picks the single applicable connection for a booking request.
// A program's dedicated calendar always wins over the business-wide one.
type Resolver struct {
	repo Repository
}

func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

func (r *Resolver) Resolve(ctx context.Context, businessId, programId string) (*Connection, error) {
	if programId != "" {
		conn, err := r.repo.GetActiveByProgram(ctx, businessId, programId)
		if err != nil {
			return nil, fmt.Errorf("failed to look up program connection: %w", err)
		}
		if conn != nil {
			return conn, nil
		}
		log.Debugf("no dedicated calendar for program %s, falling back to business %s", programId, businessId)
	}

	conn, err := r.repo.GetActiveDefault(ctx, businessId)
	if err != nil {
		return nil, fmt.Errorf("failed to look up business connection: %w", err)
	}
	if conn == nil {
		return nil, ErrNotFound
	}
	return conn, nil
}
