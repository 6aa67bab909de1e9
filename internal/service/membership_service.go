package service

import (
	"context"

	"github.com/forecastdao/tiergate/internal/ledger"
	"github.com/forecastdao/tiergate/internal/model"
	"github.com/forecastdao/tiergate/internal/pkg/apperrors"
	"github.com/forecastdao/tiergate/internal/stream"
	"github.com/forecastdao/tiergate/internal/tier"
	"github.com/shopspring/decimal"
)

// MembershipService is the application-facing wrapper around the tier
// catalog, membership ledger and usage tracker.
type MembershipService struct {
	catalog *tier.Catalog
	members *ledger.MembershipLedger
	usage   *ledger.UsageTracker
	events  *stream.Hub
}

func NewMembershipService(catalog *tier.Catalog, members *ledger.MembershipLedger, usage *ledger.UsageTracker, events *stream.Hub) *MembershipService {
	return &MembershipService{
		catalog: catalog,
		members: members,
		usage:   usage,
		events:  events,
	}
}

func (s *MembershipService) Purchase(ctx context.Context, account string, req model.PurchaseRequest) (model.MembershipResponse, error) {
	t, ok := tier.Parse(req.Tier)
	if !ok {
		return model.MembershipResponse{}, apperrors.Newf(apperrors.ErrInvalidRequest, "unknown tier %q", req.Tier)
	}
	payment, err := decimal.NewFromString(req.Payment)
	if err != nil {
		return model.MembershipResponse{}, apperrors.NewInvalidRequest("payment must be a decimal string")
	}

	m, err := s.members.Purchase(ctx, account, req.Role, t, req.DurationDays, payment)
	if err != nil {
		return model.MembershipResponse{}, err
	}

	s.publish("membership.purchased", stream.Event{
		Account: account,
		Role:    req.Role,
		Amount:  payment.String(),
	})
	return s.statusResponse(account, req.Role, m), nil
}

func (s *MembershipService) Upgrade(ctx context.Context, account string, req model.UpgradeRequest) (model.MembershipResponse, error) {
	t, ok := tier.Parse(req.Tier)
	if !ok {
		return model.MembershipResponse{}, apperrors.Newf(apperrors.ErrInvalidRequest, "unknown tier %q", req.Tier)
	}
	payment, err := decimal.NewFromString(req.Payment)
	if err != nil {
		return model.MembershipResponse{}, apperrors.NewInvalidRequest("payment must be a decimal string")
	}

	m, err := s.members.Upgrade(ctx, account, req.Role, t, payment)
	if err != nil {
		return model.MembershipResponse{}, err
	}

	s.publish("membership.upgraded", stream.Event{
		Account: account,
		Role:    req.Role,
		Amount:  payment.String(),
	})
	return s.statusResponse(account, req.Role, m), nil
}

func (s *MembershipService) Grant(ctx context.Context, req model.GrantRequest) (model.MembershipResponse, error) {
	t, ok := tier.Parse(req.Tier)
	if !ok {
		return model.MembershipResponse{}, apperrors.Newf(apperrors.ErrInvalidRequest, "unknown tier %q", req.Tier)
	}

	m, err := s.members.Grant(ctx, req.Account, req.Role, t, req.ExpiresAt)
	if err != nil {
		return model.MembershipResponse{}, err
	}

	s.publish("membership.granted", stream.Event{
		Account: req.Account,
		Role:    req.Role,
	})
	return s.statusResponse(req.Account, req.Role, m), nil
}

func (s *MembershipService) Status(account, role string) model.MembershipResponse {
	m, _ := s.members.Get(account, role)
	return s.statusResponse(account, role, m)
}

// PlaceBet debits one bet from the daily and weekly quotas.
func (s *MembershipService) PlaceBet(ctx context.Context, account, role string) error {
	return s.usage.CheckAndRecordBet(ctx, account, role)
}

// BetAllowance is the non-mutating pre-validation query.
func (s *MembershipService) BetAllowance(account, role string) error {
	return s.usage.CanPlaceBet(account, role)
}

func (s *MembershipService) CreateMarket(ctx context.Context, account, role string) error {
	return s.usage.CheckAndRecordMarketCreation(ctx, account, role)
}

func (s *MembershipService) CloseMarket(ctx context.Context, account, role string) {
	s.usage.RecordMarketClosure(ctx, account, role)
}

func (s *MembershipService) UsageStats(account, role string) ledger.UsageStats {
	return s.usage.Stats(account, role)
}

func (s *MembershipService) TierDefinition(role string, t tier.Tier) tier.Definition {
	return s.catalog.GetTier(role, t)
}

func (s *MembershipService) SetTierDefinition(role string, t tier.Tier, def tier.Definition) {
	s.catalog.SetTier(role, t, def)
}

func (s *MembershipService) statusResponse(account, role string, m ledger.Membership) model.MembershipResponse {
	return model.MembershipResponse{
		Account:       account,
		Role:          role,
		Tier:          m.Tier.String(),
		Active:        s.members.IsActive(account, role),
		ExpiresAt:     m.ExpiresAt,
		DaysRemaining: s.members.DaysRemaining(account, role),
	}
}

func (s *MembershipService) publish(eventType string, event stream.Event) {
	if s.events == nil {
		return
	}
	event.At = s.members.Now().Unix()
	s.events.Publish(eventType, event)
}
