package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/veil-sh/veil/internal/domain"
	"github.com/veil-sh/veil/internal/metrics"
	"github.com/veil-sh/veil/internal/passphrase"
	"github.com/veil-sh/veil/internal/policy"
	"github.com/veil-sh/veil/internal/store"
)

// casAttempts bounds the re-evaluate loop when a concurrent retrieval wins
// the counter compare-and-swap. Contention on a single secret is rare and
// short-lived, so a couple of retries is plenty.
const casAttempts = 3

// ErrBusy indicates a retrieval lost the counter race repeatedly and the
// caller should retry the request.
var ErrBusy = errors.New("secret busy, retry")

// Service orchestrates secret creation, retrieval, and extension using the
// injected store, clock, and policy engine.
type Service struct {
	Repo    store.Repository
	Clock   Clock
	Policy  *policy.Engine
	Metrics *metrics.Registry

	BaseURL            string
	MaxSecretDays      int
	MaxSecretViews     int
	DefaultExpiryHours int

	// generate and hash are swappable for deterministic tests.
	generate func() (string, error)
	hash     func(string) (string, error)
}

// New assembles a Service with production passphrase generation and hashing.
func New(repo store.Repository, clock Clock, engine *policy.Engine, m *metrics.Registry, baseURL string, limits policy.Limits, defaultExpiryHours int) *Service {
	return &Service{
		Repo:               repo,
		Clock:              clock,
		Policy:             engine,
		Metrics:            m,
		BaseURL:            baseURL,
		MaxSecretDays:      limits.MaxSecretDays,
		MaxSecretViews:     limits.MaxSecretViews,
		DefaultExpiryHours: defaultExpiryHours,
		generate:           passphrase.Generate,
		hash:               passphrase.Hash,
	}
}

// CreateInput carries the caller-resolved creation parameters. Zero MaxViews
// means unlimited; zero ExpiresInHours selects the configured default.
type CreateInput struct {
	Ciphertext     string
	MaxViews       int
	ExpiresInHours int
	Extendable     bool
}

// CreateOutput is returned to the creator. Passphrase is the only time the
// plaintext credential is ever visible; it is not recoverable afterwards.
type CreateOutput struct {
	ID         uuid.UUID
	Passphrase string
	ExpiresAt  time.Time
	ShareURL   string
}

// Create validates inputs, mints a passphrase, clamps the requested limits
// to the configured ceilings, and persists the record.
func (s *Service) Create(ctx context.Context, in CreateInput) (CreateOutput, error) {
	if in.Ciphertext == "" {
		return CreateOutput{}, domain.ErrInvalidRequest
	}
	pass, err := s.generate()
	if err != nil {
		return CreateOutput{}, fmt.Errorf("generate passphrase: %w", err)
	}
	hash, err := s.hash(pass)
	if err != nil {
		return CreateOutput{}, fmt.Errorf("hash passphrase: %w", err)
	}
	expiresIn := domain.ClampExpiry(in.ExpiresInHours, s.MaxSecretDays, s.DefaultExpiryHours)
	maxViews := domain.ClampMaxViews(in.MaxViews, s.MaxSecretViews)
	sec := domain.NewSecret(in.Ciphertext, hash, maxViews, expiresIn, in.Extendable, s.Clock.Now())
	if err := s.Repo.Create(ctx, sec); err != nil {
		return CreateOutput{}, fmt.Errorf("persist secret: %w", err)
	}
	s.Metrics.Add(metrics.CounterSecretsCreated, 1)
	return CreateOutput{
		ID:         sec.ID,
		Passphrase: pass,
		ExpiresAt:  sec.ExpiresAt,
		ShareURL:   s.BaseURL + "/secret/" + sec.ID.String(),
	}, nil
}

// RetrieveOutput is returned on a granted view. Limited is false for
// unlimited-view records, in which case ViewsRemaining is meaningless.
type RetrieveOutput struct {
	Ciphertext     string
	ViewsRemaining int
	Limited        bool
	Extendable     bool
	ExpiresAt      time.Time
}

// Retrieve evaluates a view-with-passphrase request. A malformed id is
// reported as not found so probing callers cannot distinguish bad ids from
// absent records. Counter effects race with concurrent retrievals of the
// same record; a lost compare-and-swap re-fetches and re-evaluates so the
// view cap is never overshot.
func (s *Service) Retrieve(ctx context.Context, idStr, presented string) (RetrieveOutput, error) {
	id, err := domain.ParseID(idStr)
	if err != nil {
		return RetrieveOutput{}, domain.ErrNotFound
	}
	for attempt := 0; attempt < casAttempts; attempt++ {
		sec, err := s.Repo.Get(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return RetrieveOutput{}, domain.ErrNotFound
			}
			return RetrieveOutput{}, fmt.Errorf("fetch secret: %w", err)
		}
		dec := s.Policy.Retrieve(sec, presented, s.Clock.Now())
		if dec.Persist {
			err := s.Repo.UpdateCounters(ctx, id, sec.CurrentCounters(), dec.Counters)
			if errors.Is(err, store.ErrConflict) {
				continue
			}
			if errors.Is(err, domain.ErrNotFound) {
				return RetrieveOutput{}, domain.ErrNotFound
			}
			if err != nil {
				return RetrieveOutput{}, fmt.Errorf("update counters: %w", err)
			}
		}
		if dec.Delete {
			// The counters were claimed above, so the grant (or depletion)
			// already won any race; deletion is idempotent cleanup.
			if err := s.Repo.Delete(ctx, id); err != nil {
				return RetrieveOutput{}, fmt.Errorf("delete depleted secret: %w", err)
			}
			s.Metrics.Add(metrics.CounterSecretsDeleted, 1)
		}
		switch dec.Outcome {
		case policy.OutcomeSuccess:
			s.Metrics.Add(metrics.CounterSecretsRetrieved, 1)
			return RetrieveOutput{
				Ciphertext:     sec.Ciphertext,
				ViewsRemaining: dec.ViewsRemaining,
				Limited:        dec.Limited,
				Extendable:     sec.Extendable,
				ExpiresAt:      sec.ExpiresAt,
			}, nil
		case policy.OutcomeUnauthorized:
			s.Metrics.Add(metrics.CounterFailedAttempts, 1)
			return RetrieveOutput{}, domain.ErrUnauthorized
		default:
			return RetrieveOutput{}, domain.ErrNotFound
		}
	}
	return RetrieveOutput{}, ErrBusy
}

// ExtendOutput reports the record state after a granted extension. Limited
// mirrors whether the record still has a view cap.
type ExtendOutput struct {
	ExpiresAt time.Time
	MaxViews  int
	Limited   bool
	Views     int
}

// Extend evaluates an extension request and persists the new deadline and
// view cap on success. Authentication failures here never touch the
// retrieval counters.
func (s *Service) Extend(ctx context.Context, idStr, presented string, req policy.ExtendRequest) (ExtendOutput, error) {
	id, err := domain.ParseID(idStr)
	if err != nil {
		return ExtendOutput{}, domain.ErrNotFound
	}
	sec, err := s.Repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ExtendOutput{}, domain.ErrNotFound
		}
		return ExtendOutput{}, fmt.Errorf("fetch secret: %w", err)
	}
	dec := s.Policy.Extend(sec, presented, req, s.Clock.Now())
	if dec.Delete {
		if derr := s.Repo.Delete(ctx, id); derr != nil {
			return ExtendOutput{}, fmt.Errorf("delete depleted secret: %w", derr)
		}
		s.Metrics.Add(metrics.CounterSecretsDeleted, 1)
	}
	switch dec.Outcome {
	case policy.OutcomeSuccess:
	case policy.OutcomeUnauthorized:
		return ExtendOutput{}, domain.ErrUnauthorized
	case policy.OutcomeForbidden:
		return ExtendOutput{}, domain.ErrNotExtendable
	case policy.OutcomeLimitExceeded:
		return ExtendOutput{}, domain.ErrLimitExceeded
	case policy.OutcomeInvalidRequest:
		return ExtendOutput{}, domain.ErrInvalidRequest
	default:
		return ExtendOutput{}, domain.ErrNotFound
	}
	if err := s.Repo.Extend(ctx, id, dec.NewExpiresAt, dec.NewMaxViews); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ExtendOutput{}, domain.ErrNotFound
		}
		return ExtendOutput{}, fmt.Errorf("extend secret: %w", err)
	}
	s.Metrics.Add(metrics.CounterSecretsExtended, 1)
	return ExtendOutput{
		ExpiresAt: dec.NewExpiresAt,
		MaxViews:  dec.NewMaxViews,
		Limited:   dec.NewMaxViews > 0,
		Views:     sec.Views,
	}, nil
}
