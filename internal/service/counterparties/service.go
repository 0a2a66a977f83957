// Package counterparties manages farmers and members, the two kinds of
// counterparty whose running balances the settlement engine carries forward.
package counterparties

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/dairy/internal/domain/models"
	"github.com/mamadbah2/dairy/internal/repository"
)

// Input describes a new farmer or member. OpeningBalance seeds the running
// balance using the sign convention of the counterparty's flow.
type Input struct {
	Code           string
	Name           string
	Mobile         string
	RatePerLiter   decimal.Decimal
	OpeningBalance decimal.Decimal
}

func (in Input) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name is required", models.ErrInvalidRequest)
	}
	if in.RatePerLiter.IsNegative() {
		return fmt.Errorf("%w: rate per liter cannot be negative", models.ErrInvalidAmount)
	}
	return nil
}

// Service creates and loads counterparties.
type Service struct {
	store  repository.Store
	logger *zap.Logger
}

// NewService wires a counterparty service.
func NewService(store repository.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// CreateFarmer registers a farmer under the owner.
func (s *Service) CreateFarmer(ctx context.Context, ownerID string, in Input) (*models.Farmer, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	farmer := &models.Farmer{
		OwnerID:        ownerID,
		Code:           strings.TrimSpace(in.Code),
		Name:           strings.TrimSpace(in.Name),
		Mobile:         strings.TrimSpace(in.Mobile),
		RatePerLiter:   in.RatePerLiter,
		Active:         true,
		CurrentBalance: models.NewFarmerLedgerBalance(in.OpeningBalance),
		PendingAmount:  decimal.Zero,
		TotalQuantity:  decimal.Zero,
		TotalAmount:    decimal.Zero,
	}
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Writer) error {
		return tx.InsertFarmer(ctx, farmer)
	})
	if err != nil {
		return nil, fmt.Errorf("create farmer: %w", err)
	}
	s.logger.Info("farmer created", zap.String("owner", ownerID), zap.String("farmer", farmer.ID))
	return farmer, nil
}

// CreateMember registers a member under the owner.
func (s *Service) CreateMember(ctx context.Context, ownerID string, in Input) (*models.Member, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	member := &models.Member{
		OwnerID:               ownerID,
		Code:                  strings.TrimSpace(in.Code),
		Name:                  strings.TrimSpace(in.Name),
		Mobile:                strings.TrimSpace(in.Mobile),
		RatePerLiter:          in.RatePerLiter,
		Active:                true,
		SellingPaymentBalance: models.NewMemberLedgerBalance(in.OpeningBalance),
		TotalQuantity:         decimal.Zero,
		TotalAmount:           decimal.Zero,
	}
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Writer) error {
		return tx.InsertMember(ctx, member)
	})
	if err != nil {
		return nil, fmt.Errorf("create member: %w", err)
	}
	s.logger.Info("member created", zap.String("owner", ownerID), zap.String("member", member.ID))
	return member, nil
}

// GetFarmer loads a farmer of the owner.
func (s *Service) GetFarmer(ctx context.Context, ownerID, farmerID string) (*models.Farmer, error) {
	return s.store.GetFarmer(ctx, ownerID, farmerID)
}

// GetMember loads a member of the owner.
func (s *Service) GetMember(ctx context.Context, ownerID, memberID string) (*models.Member, error) {
	return s.store.GetMember(ctx, ownerID, memberID)
}

// SetActive activates or deactivates a counterparty. Inactive counterparties
// cannot be settled.
func (s *Service) SetActive(ctx context.Context, flow models.Flow, ownerID, counterpartyID string, active bool) error {
	if !flow.Valid() {
		return fmt.Errorf("%w: unknown flow %q", models.ErrInvalidRequest, flow)
	}
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Writer) error {
		return tx.SetActive(ctx, flow, ownerID, counterpartyID, active)
	})
	if err != nil {
		return err
	}
	s.logger.Info("counterparty status changed",
		zap.String("flow", flow.String()),
		zap.String("counterparty", counterpartyID),
		zap.Bool("active", active))
	return nil
}
