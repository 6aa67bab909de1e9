package service

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/forecastdao/tiergate/internal/ledger"
	"github.com/forecastdao/tiergate/internal/model"
	"github.com/forecastdao/tiergate/internal/pkg/apperrors"
	"github.com/forecastdao/tiergate/internal/pkg/clock"
	"github.com/forecastdao/tiergate/internal/stream"
	"github.com/forecastdao/tiergate/internal/vault"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TreasuryService fronts the vault: request parsing, recipient address
// validation, receipts and event publication.
type TreasuryService struct {
	vault  *vault.Vault
	usage  *ledger.UsageTracker
	events *stream.Hub
	clk    clock.Clock
}

func NewTreasuryService(v *vault.Vault, usage *ledger.UsageTracker, events *stream.Hub, clk clock.Clock) *TreasuryService {
	return &TreasuryService{
		vault:  v,
		usage:  usage,
		events: events,
		clk:    clk,
	}
}

func (s *TreasuryService) Deposit(ctx context.Context, req model.DepositRequest) (model.AssetStatusResponse, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return model.AssetStatusResponse{}, apperrors.NewInvalidRequest("amount must be a decimal string")
	}

	if _, err := s.vault.Deposit(ctx, req.Asset, amount); err != nil {
		return model.AssetStatusResponse{}, err
	}

	s.publish("treasury.deposit", stream.Event{Asset: req.Asset, Amount: amount.String()})
	return s.AssetStatus(req.Asset), nil
}

func (s *TreasuryService) Withdraw(ctx context.Context, caller string, req model.WithdrawRequest) (model.WithdrawalReceipt, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return model.WithdrawalReceipt{}, apperrors.NewInvalidRequest("amount must be a decimal string")
	}
	if !common.IsHexAddress(req.Recipient) {
		return model.WithdrawalReceipt{}, apperrors.NewInvalidRequest("recipient is not a valid address")
	}
	recipient := common.HexToAddress(req.Recipient).Hex()

	// Tier withdrawal quota: pre-validate before touching the vault so a
	// quota rejection debits nothing, and debit only after the vault
	// committed (the vault rejection path must not consume quota).
	if req.Role != "" {
		if err := s.usage.CanWithdraw(caller, req.Role); err != nil {
			return model.WithdrawalReceipt{}, err
		}
	}

	if err := s.vault.Withdraw(ctx, caller, req.Asset, recipient, amount); err != nil {
		return model.WithdrawalReceipt{}, err
	}

	if req.Role != "" {
		_ = s.usage.CheckAndRecordWithdrawal(ctx, caller, req.Role)
	}

	receipt := model.WithdrawalReceipt{
		ID:        uuid.New().String(),
		Asset:     req.Asset,
		Recipient: recipient,
		Amount:    amount.String(),
		Balance:   s.vault.Balance(req.Asset).String(),
		CreatedAt: s.clk.Now().Unix(),
	}

	s.publish("treasury.withdrawal", stream.Event{
		Account: caller,
		Asset:   req.Asset,
		Amount:  amount.String(),
	})
	return receipt, nil
}

// SetLimits applies both caps for an asset as the vault owner.
func (s *TreasuryService) SetLimits(ctx context.Context, caller, asset string, req model.VaultLimitsRequest) (model.AssetStatusResponse, error) {
	txLimit := decimal.Zero
	if req.TransactionLimit != "" {
		parsed, err := decimal.NewFromString(req.TransactionLimit)
		if err != nil {
			return model.AssetStatusResponse{}, apperrors.NewInvalidRequest("transaction_limit must be a decimal string")
		}
		txLimit = parsed
	}
	periodLimit := decimal.Zero
	if req.PeriodLimit != "" {
		parsed, err := decimal.NewFromString(req.PeriodLimit)
		if err != nil {
			return model.AssetStatusResponse{}, apperrors.NewInvalidRequest("period_limit must be a decimal string")
		}
		periodLimit = parsed
	}

	if err := s.vault.SetTransactionLimit(ctx, caller, asset, txLimit); err != nil {
		return model.AssetStatusResponse{}, err
	}
	if err := s.vault.SetRateLimit(ctx, caller, asset, req.RateLimitPeriod, periodLimit); err != nil {
		return model.AssetStatusResponse{}, err
	}
	return s.AssetStatus(asset), nil
}

func (s *TreasuryService) Pause(ctx context.Context, caller string) error {
	if err := s.vault.Pause(ctx, caller); err != nil {
		return err
	}
	s.publish("treasury.paused", stream.Event{Account: caller})
	return nil
}

func (s *TreasuryService) Unpause(ctx context.Context, caller string) error {
	if err := s.vault.Unpause(ctx, caller); err != nil {
		return err
	}
	s.publish("treasury.unpaused", stream.Event{Account: caller})
	return nil
}

func (s *TreasuryService) AuthorizeSpender(caller, spender string) error {
	return s.vault.AuthorizeSpender(caller, spender)
}

func (s *TreasuryService) RevokeSpender(caller, spender string) error {
	return s.vault.RevokeSpender(caller, spender)
}

func (s *TreasuryService) AssetStatus(asset string) model.AssetStatusResponse {
	limit := s.vault.GetLimit(asset)
	resp := model.AssetStatusResponse{
		Asset:            asset,
		Balance:          s.vault.Balance(asset).String(),
		TransactionLimit: limit.TransactionLimit.String(),
		RateLimitPeriod:  limit.RateLimitPeriod,
		PeriodLimit:      limit.PeriodLimit.String(),
		Paused:           s.vault.Paused(),
	}
	if allowance, limited := s.vault.GetRemainingPeriodAllowance(asset); limited {
		resp.RemainingAllowance = allowance.String()
	} else {
		resp.RemainingAllowance = "unlimited"
	}
	return resp
}

func (s *TreasuryService) publish(eventType string, event stream.Event) {
	if s.events == nil {
		return
	}
	event.At = s.clk.Now().Unix()
	s.events.Publish(eventType, event)
}
