// Package policy implements the access-control state machine for stored
// secrets. The engine is pure: it inspects a fetched record plus an explicit
// "now" and returns a decision describing the outcome and the storage effect
// (counter mutation and/or deletion). It never performs I/O itself; the
// application layer applies decisions to the repository. All tunables are
// fixed at construction so the engine stays independently testable.
package policy

import (
	"time"

	"github.com/veil-sh/veil/internal/domain"
)

// FreeFailedAttempts is the number of cumulative wrong-passphrase attempts
// that do not consume a view. It absorbs fat-finger typos by the legitimate
// recipient; every failure past it charges a view, bounding total online
// guesses to max_views + FreeFailedAttempts.
const FreeFailedAttempts = 2

// Limits carries the globally configured ceilings the engine enforces.
type Limits struct {
	MaxSecretDays     int // extension expiry ceiling, measured from now
	MaxSecretViews    int // extension view-cap ceiling
	MaxFailedAttempts int // deletion threshold for unlimited-view records
}

// Verifier checks a presented passphrase against a stored credential hash.
type Verifier func(presented, credentialHash string) bool

// Engine evaluates retrieval and extension requests. It holds no mutable
// state; all record state lives in the store.
type Engine struct {
	verify Verifier
	limits Limits
}

// New returns an Engine using the given verifier and limits.
func New(verify Verifier, limits Limits) *Engine {
	return &Engine{verify: verify, limits: limits}
}

// Outcome is the caller-visible result class of an evaluated request.
type Outcome int

const (
	OutcomeNotFound Outcome = iota // absent, expired, or depleted-by-policy
	OutcomeSuccess
	OutcomeUnauthorized
	OutcomeForbidden      // extension of a non-extendable record
	OutcomeLimitExceeded  // extension past configured ceilings
	OutcomeInvalidRequest // malformed extension request
)

// RetrievalDecision describes the outcome of a retrieval attempt and the
// counter state to persist. When Persist is set the application layer must
// write Counters with a compare-and-swap against the record's prior values;
// when Delete is set the record must be removed afterwards.
type RetrievalDecision struct {
	Outcome  Outcome
	Persist  bool
	Delete   bool
	Counters domain.Counters

	// ViewsRemaining is meaningful only for OutcomeSuccess. Limited is false
	// for unlimited-view records, in which case ViewsRemaining is undefined.
	ViewsRemaining int
	Limited        bool
}

// Retrieve evaluates a retrieval-with-passphrase request against a fetched
// record. A nil record means the store had no row for the id.
//
// Expired records are reported as not found without any storage effect; the
// cleanup sweep owns their physical deletion. Depleted records are reported
// as not found with a delete effect, before any verification: a record whose
// views reached its cap must never yield another grant, even when its
// deletion has not landed yet.
func (e *Engine) Retrieve(sec *domain.Secret, presented string, now time.Time) RetrievalDecision {
	if sec == nil || sec.Expired(now) {
		return RetrievalDecision{Outcome: OutcomeNotFound}
	}
	if depleted(sec) {
		return RetrievalDecision{Outcome: OutcomeNotFound, Delete: true}
	}
	if e.verify(presented, sec.CredentialHash) {
		return e.grantView(sec)
	}
	return e.chargeFailure(sec)
}

// depleted reports whether the record has already consumed its view cap.
// Such a record is logically gone; only its physical delete may be pending.
func depleted(sec *domain.Secret) bool {
	return sec.HasViewLimit() && sec.Views >= sec.MaxViews
}

// grantView consumes one view and resets the failed-attempt counter. The
// view that depletes the cap is itself granted: the caller still receives
// the payload from this call, and the record is deleted afterwards.
func (e *Engine) grantView(sec *domain.Secret) RetrievalDecision {
	d := RetrievalDecision{
		Outcome: OutcomeSuccess,
		Persist: true,
		Counters: domain.Counters{
			Views:          sec.Views + 1,
			FailedAttempts: 0,
		},
	}
	if sec.HasViewLimit() {
		d.Limited = true
		d.ViewsRemaining = sec.MaxViews - d.Counters.Views
		if d.ViewsRemaining <= 0 {
			d.ViewsRemaining = 0
			d.Delete = true
		}
	}
	return d
}

// chargeFailure records a wrong-passphrase attempt. The first
// FreeFailedAttempts cumulative failures only bump the failure counter;
// later ones also consume a view. Depletion, whether by view cap or by the
// failed-attempt cap on unlimited records, deletes the record and reports
// NotFound rather than Unauthorized, so a caller who ran out of guesses sees
// the same signal as one probing an id that never existed.
func (e *Engine) chargeFailure(sec *domain.Secret) RetrievalDecision {
	d := RetrievalDecision{
		Outcome: OutcomeUnauthorized,
		Persist: true,
		Counters: domain.Counters{
			Views:          sec.Views,
			FailedAttempts: sec.FailedAttempts + 1,
		},
	}
	if sec.FailedAttempts < FreeFailedAttempts {
		return d
	}
	d.Counters.Views = sec.Views + 1
	switch {
	case sec.HasViewLimit() && d.Counters.Views >= sec.MaxViews:
		d.Outcome = OutcomeNotFound
		d.Delete = true
	case !sec.HasViewLimit() && d.Counters.FailedAttempts >= e.limits.MaxFailedAttempts:
		d.Outcome = OutcomeNotFound
		d.Delete = true
	}
	return d
}

// ExtendRequest carries the caller-supplied extension deltas. Zero means the
// axis was not supplied.
type ExtendRequest struct {
	AddDays  int
	AddViews int
}

// ExtensionDecision describes the outcome of an extension request. On
// OutcomeSuccess the application layer persists NewExpiresAt / NewMaxViews
// via the store's extend operation. When Delete is set the record turned out
// to be depleted and must be removed; no other outcome mutates anything.
type ExtensionDecision struct {
	Outcome      Outcome
	Delete       bool
	NewExpiresAt time.Time
	NewMaxViews  int // 0 = unlimited
}

// Extend evaluates an extension request. A wrong passphrase here is a plain
// auth failure: it does not touch the retrieval-path counters, keeping the
// extension surface independent of the brute-force budget.
func (e *Engine) Extend(sec *domain.Secret, presented string, req ExtendRequest, now time.Time) ExtensionDecision {
	if sec == nil || sec.Expired(now) {
		return ExtensionDecision{Outcome: OutcomeNotFound}
	}
	if depleted(sec) {
		return ExtensionDecision{Outcome: OutcomeNotFound, Delete: true}
	}
	if !e.verify(presented, sec.CredentialHash) {
		return ExtensionDecision{Outcome: OutcomeUnauthorized}
	}
	if !sec.Extendable {
		return ExtensionDecision{Outcome: OutcomeForbidden}
	}
	if req.AddDays < 0 || req.AddViews < 0 {
		return ExtensionDecision{Outcome: OutcomeInvalidRequest}
	}
	// The view axis only exists for limited records; a request that would
	// change nothing is malformed.
	addViews := req.AddViews
	if !sec.HasViewLimit() {
		addViews = 0
	}
	if req.AddDays == 0 && addViews == 0 {
		return ExtensionDecision{Outcome: OutcomeInvalidRequest}
	}

	d := ExtensionDecision{
		Outcome:      OutcomeSuccess,
		NewExpiresAt: sec.ExpiresAt,
		NewMaxViews:  sec.MaxViews,
	}
	if req.AddDays > 0 {
		proposed := sec.ExpiresAt.AddDate(0, 0, req.AddDays)
		ceiling := now.AddDate(0, 0, e.limits.MaxSecretDays)
		if proposed.After(ceiling) {
			return ExtensionDecision{Outcome: OutcomeLimitExceeded}
		}
		d.NewExpiresAt = proposed
	}
	if addViews > 0 {
		proposed := sec.MaxViews + addViews
		if proposed > e.limits.MaxSecretViews {
			return ExtensionDecision{Outcome: OutcomeLimitExceeded}
		}
		d.NewMaxViews = proposed
	}
	return d
}
