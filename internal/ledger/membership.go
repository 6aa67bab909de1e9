package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/forecastdao/tiergate/internal/pkg/apperrors"
	"github.com/forecastdao/tiergate/internal/pkg/clock"
	"github.com/forecastdao/tiergate/internal/pkg/logger"
	"github.com/forecastdao/tiergate/internal/pkg/metrics"
	"github.com/forecastdao/tiergate/internal/tier"
	"github.com/shopspring/decimal"
)

const secondsPerDay = 86400

// Key identifies a ledger entry.
type Key struct {
	Account string
	Role    string
}

// Membership is the current tier and expiry for an (account, role) pair.
// ExpiresAt == 0 denotes a non-expiring grant. The tier value is retained
// after expiry for history; only IsActive flips.
type Membership struct {
	Tier      tier.Tier `json:"tier"`
	ExpiresAt int64     `json:"expires_at"`
}

// MembershipStore persists ledger entries after they commit. Persistence
// failures are logged and never roll back the in-memory ledger.
type MembershipStore interface {
	SaveMembership(ctx context.Context, key Key, m Membership) error
}

// MembershipLedger tracks tier membership per (account, role). Entries are
// created lazily on first purchase or grant and never hard-deleted.
type MembershipLedger struct {
	mu      sync.RWMutex
	entries map[Key]Membership
	catalog *tier.Catalog
	clk     clock.Clock
	store   MembershipStore
}

func NewMembershipLedger(catalog *tier.Catalog, clk clock.Clock, store MembershipStore) *MembershipLedger {
	return &MembershipLedger{
		entries: make(map[Key]Membership),
		catalog: catalog,
		clk:     clk,
		store:   store,
	}
}

// Restore loads a previously persisted entry into the ledger. Used at
// startup only; it bypasses payment checks.
func (l *MembershipLedger) Restore(key Key, m Membership) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[key] = m
}

// Purchase sets the membership for (account, role) unconditionally,
// overwriting any prior entry. Payment must cover the catalog price; the
// funds transfer itself happens upstream, this ledger only verifies the
// amount supplied.
func (l *MembershipLedger) Purchase(ctx context.Context, account, role string, t tier.Tier, durationDays int64, payment decimal.Decimal) (Membership, error) {
	if t == tier.None {
		return Membership{}, apperrors.NewInvalidRequest("cannot purchase the NONE tier")
	}
	if durationDays <= 0 {
		return Membership{}, apperrors.NewInvalidRequest("duration must be at least one day")
	}

	def := l.catalog.GetTier(role, t)
	if !def.IsActive {
		return Membership{}, apperrors.Newf(apperrors.ErrNotFound, "tier %s is not offered for role %s", t, role)
	}
	if payment.LessThan(def.Price) {
		metrics.LimitRejects.WithLabelValues("insufficient_payment").Inc()
		return Membership{}, apperrors.Newf(apperrors.ErrInsufficientPayment,
			"payment %s below tier price %s", payment, def.Price)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	m := Membership{
		Tier:      t,
		ExpiresAt: l.clk.Now().Unix() + durationDays*secondsPerDay,
	}
	l.entries[Key{Account: account, Role: role}] = m
	l.persist(ctx, Key{Account: account, Role: role}, m)

	metrics.MembershipOps.WithLabelValues("purchase", t.String()).Inc()
	return m, nil
}

// Upgrade raises the tier in place. Expiry is unchanged: an upgrade buys a
// higher tier for the remainder of the current term, at full price (no
// proration).
func (l *MembershipLedger) Upgrade(ctx context.Context, account, role string, newTier tier.Tier, payment decimal.Decimal) (Membership, error) {
	def := l.catalog.GetTier(role, newTier)
	if !def.IsActive {
		return Membership{}, apperrors.Newf(apperrors.ErrNotFound, "tier %s is not offered for role %s", newTier, role)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := Key{Account: account, Role: role}
	current := l.entries[key]
	if newTier <= current.Tier {
		return Membership{}, apperrors.Newf(apperrors.ErrInvalidTierTransition,
			"upgrade target %s is not above current tier %s", newTier, current.Tier)
	}
	if payment.LessThan(def.Price) {
		metrics.LimitRejects.WithLabelValues("insufficient_payment").Inc()
		return Membership{}, apperrors.Newf(apperrors.ErrInsufficientPayment,
			"payment %s below tier price %s", payment, def.Price)
	}

	current.Tier = newTier
	l.entries[key] = current
	l.persist(ctx, key, current)

	metrics.MembershipOps.WithLabelValues("upgrade", newTier.String()).Inc()
	return current, nil
}

// Grant is the administrative path: it sets a membership without payment.
// expiresAt == 0 creates a perpetual grant.
func (l *MembershipLedger) Grant(ctx context.Context, account, role string, t tier.Tier, expiresAt int64) (Membership, error) {
	if t == tier.None {
		return Membership{}, apperrors.NewInvalidRequest("cannot grant the NONE tier")
	}
	if expiresAt != 0 && expiresAt <= l.clk.Now().Unix() {
		return Membership{}, apperrors.NewInvalidRequest("grant expiry is in the past")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := Key{Account: account, Role: role}
	m := Membership{Tier: t, ExpiresAt: expiresAt}
	l.entries[key] = m
	l.persist(ctx, key, m)

	metrics.MembershipOps.WithLabelValues("grant", t.String()).Inc()
	return m, nil
}

// IsActive reports whether the (account, role) membership is currently in
// force. Expired entries keep their tier value but read as inactive.
func (l *MembershipLedger) IsActive(account, role string) bool {
	m, ok := l.get(account, role)
	if !ok || m.Tier == tier.None {
		return false
	}
	return m.ExpiresAt == 0 || m.ExpiresAt > l.clk.Now().Unix()
}

// GetTier returns the stored tier, including for lapsed memberships.
func (l *MembershipLedger) GetTier(account, role string) tier.Tier {
	m, _ := l.get(account, role)
	return m.Tier
}

// EffectiveTier resolves the tier that governs quota checks: the stored
// tier while the membership is active, NONE once it lapses.
func (l *MembershipLedger) EffectiveTier(account, role string) tier.Tier {
	if !l.IsActive(account, role) {
		return tier.None
	}
	return l.GetTier(account, role)
}

func (l *MembershipLedger) GetExpiration(account, role string) int64 {
	m, _ := l.get(account, role)
	return m.ExpiresAt
}

// DaysRemaining is ceil((expiresAt-now)/86400) clamped at zero. Perpetual
// grants report the Unlimited sentinel.
func (l *MembershipLedger) DaysRemaining(account, role string) int64 {
	m, ok := l.get(account, role)
	if !ok {
		return 0
	}
	if m.ExpiresAt == 0 {
		if m.Tier == tier.None {
			return 0
		}
		return tier.Unlimited
	}
	remaining := m.ExpiresAt - l.clk.Now().Unix()
	if remaining <= 0 {
		return 0
	}
	return (remaining + secondsPerDay - 1) / secondsPerDay
}

func (l *MembershipLedger) Get(account, role string) (Membership, bool) {
	return l.get(account, role)
}

func (l *MembershipLedger) get(account, role string) (Membership, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.entries[Key{Account: account, Role: role}]
	return m, ok
}

func (l *MembershipLedger) persist(ctx context.Context, key Key, m Membership) {
	if l.store == nil {
		return
	}
	if err := l.store.SaveMembership(ctx, key, m); err != nil {
		logger.LogError(ctx, err, "failed to persist membership",
			"account", key.Account, "role", key.Role)
	}
}

// Now exposes the ledger clock, mostly for handlers composing responses.
func (l *MembershipLedger) Now() time.Time {
	return l.clk.Now()
}
