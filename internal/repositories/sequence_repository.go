package repositories

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"example.com/backstage/invoicing/internal/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SequenceRepository is the durable counter store behind document numbers.
// Every reservation runs in its own transaction and holds a row lock on the
// (document type, year) row for the read-increment-write.
type SequenceRepository struct {
	db          *gorm.DB
	lockTimeout time.Duration
	maxRetries  uint64
	newBackOff  func() backoff.BackOff
}

// SequenceOption tweaks a SequenceRepository
type SequenceOption func(*SequenceRepository)

// WithLockTimeout bounds the wait for the sequence row lock (postgres only)
func WithLockTimeout(d time.Duration) SequenceOption {
	return func(r *SequenceRepository) { r.lockTimeout = d }
}

// WithMaxRetries sets how many times a conflicting reservation is retried
func WithMaxRetries(n uint64) SequenceOption {
	return func(r *SequenceRepository) { r.maxRetries = n }
}

// WithBackOff replaces the retry backoff policy
func WithBackOff(f func() backoff.BackOff) SequenceOption {
	return func(r *SequenceRepository) { r.newBackOff = f }
}

// NewSequenceRepository creates a new sequence repository
func NewSequenceRepository(db *gorm.DB, opts ...SequenceOption) *SequenceRepository {
	r := &SequenceRepository{
		db:          db,
		lockTimeout: 5 * time.Second,
		maxRetries:  5,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 20 * time.Millisecond
			b.MaxInterval = time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reserve hands out the next value for (docType, year), starting at 1 for a
// fresh pair. The increment is committed before Reserve returns.
func (r *SequenceRepository) Reserve(ctx context.Context, docType models.DocumentType, year int) (int64, error) {
	var value int64
	attempt := 0

	operation := func() error {
		attempt++
		v, err := r.reserveOnce(ctx, docType, year)
		if err == nil {
			value = v
			return nil
		}
		if stderrors.Is(err, ErrDuplicateKey) || stderrors.Is(err, ErrConflict) {
			log.Debug().
				Err(err).
				Str("document_type", string(docType)).
				Int("year", year).
				Int("attempt", attempt).
				Msg("Sequence reservation conflicted, retrying")
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(r.newBackOff(), r.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return 0, errors.Wrapf(err, "failed to reserve %s number for %d", docType, year)
	}

	return value, nil
}

func (r *SequenceRepository) reserveOnce(ctx context.Context, docType models.DocumentType, year int) (int64, error) {
	var reserved int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.applyLockTimeout(tx); err != nil {
			return err
		}

		var seq models.NumberSequence
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("document_type = ? AND fiscal_year = ?", docType, year).
			Take(&seq).Error

		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			// First reservation for this key. A concurrent creator makes this
			// insert fail on the unique index and the caller retries.
			seq = models.NumberSequence{DocumentType: docType, Year: year, NextValue: 2}
			if err := tx.Create(&seq).Error; err != nil {
				return err
			}
			reserved = 1
			return nil
		}
		if err != nil {
			return err
		}

		reserved = seq.NextValue
		return tx.Model(&models.NumberSequence{}).
			Where("id = ?", seq.ID).
			Updates(map[string]interface{}{
				"next_value": seq.NextValue + 1,
				"updated_at": time.Now().UTC(),
			}).Error
	})

	return reserved, translate(err)
}

func (r *SequenceRepository) applyLockTimeout(tx *gorm.DB) error {
	if r.lockTimeout <= 0 || tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())).Error
}

// Peek returns the value the next reservation would get, without reserving it
func (r *SequenceRepository) Peek(ctx context.Context, docType models.DocumentType, year int) (int64, error) {
	var seq models.NumberSequence
	err := r.db.WithContext(ctx).
		Where("document_type = ? AND fiscal_year = ?", docType, year).
		Take(&seq).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "failed to read number sequence")
	}
	return seq.NextValue, nil
}
