package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"propshare-backend/internal/application/journal"
	"propshare-backend/internal/application/ledger"
	"propshare-backend/internal/application/limits"
	"propshare-backend/internal/application/notifications"
	"propshare-backend/internal/application/ownership"
	"propshare-backend/internal/constants"
	"propshare-backend/internal/domain"
	"propshare-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DecisionApprove = "APPROVE"
	DecisionReject  = "REJECT"
)

// ExitRequestInput asks to sell units back to the platform.
type ExitRequestInput struct {
	UserID      uuid.UUID
	OwnershipID uuid.UUID
	Units       int64
	BankDetails domain.BankDetails
}

// ExitReceipt is returned once an exit request is pending review.
type ExitReceipt struct {
	ExitRequestID   uuid.UUID       `json:"exit_request_id"`
	EstimatedPayout decimal.Decimal `json:"estimated_payout"`
}

// DecideExitInput is an admin decision on a pending exit request.
type DecideExitInput struct {
	AdminID       uuid.UUID
	ExitRequestID uuid.UUID
	Decision      string
	Reason        string
}

func validateExit(in ExitRequestInput) error {
	switch {
	case in.UserID == uuid.Nil:
		return domain.InvalidInput("user_id is required")
	case in.OwnershipID == uuid.Nil:
		return domain.InvalidInput("ownership_id is required")
	case in.Units <= 0:
		return domain.InvalidInput("units must be positive")
	case !validation.IsValidAccountNumber(in.BankDetails.AccountNumber):
		return domain.InvalidInput("bank_details.account_number must be a 10-digit account number")
	case !validation.IsValidBankCode(in.BankDetails.BankCode):
		return domain.InvalidInput("bank_details.bank_code is invalid")
	case in.BankDetails.AccountName != "" && !validation.IsValidAccountName(in.BankDetails.AccountName):
		return domain.InvalidInput("bank_details.account_name may only contain letters, spaces, hyphens and apostrophes")
	}
	return nil
}

func lockUser(tx *gorm.DB, userID uuid.UUID) (*domain.User, error) {
	var u domain.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
		}
		return nil, err
	}
	return &u, nil
}

func lockExitRequest(tx *gorm.DB, id uuid.UUID) (*domain.ExitRequest, error) {
	var er domain.ExitRequest
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("exit_request_id = ?", id).First(&er).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("exit request %s: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	return &er, nil
}

// RequestExit takes units out of the user's position, returns them to the
// property's supply and opens a PENDING exit request. The user row is locked
// first so two requests from one user cannot both pass the daily limit.
// Lock order is user, property, ownership.
func (e *Engine) RequestExit(ctx context.Context, in ExitRequestInput) (*ExitReceipt, error) {
	if err := validateExit(in); err != nil {
		e.rejected(err)
		return nil, err
	}
	if err := e.Gate.Require(ctx, in.UserID, constants.WithdrawFunds); err != nil {
		e.rejected(err)
		return nil, err
	}
	bank, err := json.Marshal(in.BankDetails)
	if err != nil {
		return nil, err
	}

	var er domain.ExitRequest
	err = e.inTx(ctx, "request_exit", func(tx *gorm.DB) error {
		u, err := lockUser(tx, in.UserID)
		if err != nil {
			return err
		}

		var current domain.Ownership
		if err := tx.Where("ownership_id = ?", in.OwnershipID).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("ownership %s: %w", in.OwnershipID, domain.ErrNotFound)
			}
			return err
		}
		if current.UserID != in.UserID {
			return fmt.Errorf("ownership %s: %w", in.OwnershipID, domain.ErrNotFound)
		}

		p, err := ledger.LockProperty(tx, current.PropertyID)
		if err != nil {
			return err
		}
		o, err := ownership.Lock(tx, in.OwnershipID)
		if err != nil {
			return err
		}
		if o.Units < in.Units {
			return fmt.Errorf("%w: holding %d, requested %d", domain.ErrInsufficientUnits, o.Units, in.Units)
		}

		payout := p.CostOf(in.Units)
		decision, err := e.Limits.CheckExitAllowed(tx, in.UserID, u.Tier, payout)
		if err != nil {
			return err
		}
		if decision.Reason == limits.ReasonUnknownTier {
			return &domain.UnauthorizedError{Capability: constants.WithdrawFunds, Reason: limits.ReasonUnknownTier}
		}
		if !decision.Allowed {
			return &domain.LimitExceededError{Reason: decision.Reason, Remaining: decision.Remaining}
		}

		costBasis := o.CostOf(in.Units)
		if _, err := ownership.Decrement(tx, o.OwnershipID, in.Units); err != nil {
			return err
		}
		if _, err := ledger.Release(tx, p.PropertyID, in.Units); err != nil {
			return err
		}

		er = domain.ExitRequest{
			UserID:          in.UserID,
			OwnershipID:     o.OwnershipID,
			PropertyID:      p.PropertyID,
			Units:           in.Units,
			RequestedAmount: payout,
			CostBasis:       costBasis,
			Status:          domain.ExitStatusPending,
			BankDetails:     datatypes.JSON(bank),
			RequestedAt:     e.now(),
		}
		return tx.Create(&er).Error
	})
	if err != nil {
		e.rejected(err)
		return nil, err
	}

	if e.Metrics != nil {
		e.Metrics.ExitRequests.Inc()
	}
	log.Info().
		Str("exit_request_id", er.ExitRequestID.String()).
		Str("user_id", in.UserID.String()).
		Int64("units", in.Units).
		Str("amount", er.RequestedAmount.StringFixed(2)).
		Msg("exit requested")
	e.notify(ctx, notifications.Event{
		Kind:   notifications.KindExitRequested,
		UserID: in.UserID,
		Fields: map[string]string{
			"units":  strconv.FormatInt(in.Units, 10),
			"amount": er.RequestedAmount.StringFixed(2),
		},
	})
	return &ExitReceipt{ExitRequestID: er.ExitRequestID, EstimatedPayout: er.RequestedAmount}, nil
}

// DecideExit approves or rejects a pending exit request. Approval journals the
// payout as a PENDING EXIT entry; rejection puts the units back in the user's
// position. Deciding a request that is no longer PENDING is ErrInvalidState.
func (e *Engine) DecideExit(ctx context.Context, in DecideExitInput) error {
	in.Decision = strings.ToUpper(strings.TrimSpace(in.Decision))
	if in.Decision != DecisionApprove && in.Decision != DecisionReject {
		err := domain.InvalidInput("decision must be APPROVE or REJECT")
		e.rejected(err)
		return err
	}
	if err := e.Gate.Require(ctx, in.AdminID, constants.ReviewExits); err != nil {
		e.rejected(err)
		return err
	}

	var er *domain.ExitRequest
	err := e.inTx(ctx, "decide_exit", func(tx *gorm.DB) error {
		var err error
		if er, err = lockExitRequest(tx, in.ExitRequestID); err != nil {
			return err
		}
		if er.IsTerminal() {
			return fmt.Errorf("exit request %s is %s: %w", er.ExitRequestID, er.Status, domain.ErrInvalidState)
		}
		if in.Decision == DecisionApprove {
			return e.approve(tx, er, in.AdminID)
		}
		return e.restore(tx, er, domain.ExitStatusRejected, &in.AdminID, strings.TrimSpace(in.Reason))
	})
	if err != nil {
		e.rejected(err)
		return err
	}

	kind := notifications.KindExitApproved
	if er.Status == domain.ExitStatusRejected {
		kind = notifications.KindExitRejected
	}
	e.decided(ctx, er, kind)
	return nil
}

// CancelExit withdraws the owner's own pending request.
func (e *Engine) CancelExit(ctx context.Context, userID, exitRequestID uuid.UUID) error {
	var er *domain.ExitRequest
	err := e.inTx(ctx, "cancel_exit", func(tx *gorm.DB) error {
		var err error
		if er, err = lockExitRequest(tx, exitRequestID); err != nil {
			return err
		}
		if er.UserID != userID {
			return fmt.Errorf("exit request %s: %w", exitRequestID, domain.ErrNotFound)
		}
		if er.IsTerminal() {
			return fmt.Errorf("exit request %s is %s: %w", er.ExitRequestID, er.Status, domain.ErrInvalidState)
		}
		return e.restore(tx, er, domain.ExitStatusCancelled, nil, "")
	})
	if err != nil {
		e.rejected(err)
		return err
	}
	e.decided(ctx, er, notifications.KindExitCancelled)
	return nil
}

func (e *Engine) transition(tx *gorm.DB, er *domain.ExitRequest, status string, reviewer *uuid.UUID, reason string) error {
	now := e.now()
	updates := map[string]interface{}{"status": status}
	if reviewer != nil {
		updates["reviewed_by"] = *reviewer
		updates["reviewed_at"] = now
		er.ReviewedBy = reviewer
		er.ReviewedAt = &now
	}
	if reason != "" {
		updates["rejection_reason"] = reason
		er.RejectionReason = &reason
	}
	res := tx.Model(&domain.ExitRequest{}).
		Where("exit_request_id = ? AND status = ?", er.ExitRequestID, domain.ExitStatusPending).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("exit request %s is no longer pending: %w", er.ExitRequestID, domain.ErrInvalidState)
	}
	er.Status = status
	return nil
}

func (e *Engine) approve(tx *gorm.DB, er *domain.ExitRequest, adminID uuid.UUID) error {
	if err := e.transition(tx, er, domain.ExitStatusApproved, &adminID, ""); err != nil {
		return err
	}
	pid := er.PropertyID
	if _, _, err := journal.Record(tx, journal.Entry{
		UserID:            er.UserID,
		PropertyID:        &pid,
		Type:              domain.TxTypeExit,
		Units:             er.Units,
		Amount:            er.RequestedAmount,
		Status:            domain.TxStatusPending,
		ExternalReference: "exit:" + er.ExitRequestID.String(),
		Metadata: map[string]interface{}{
			"exit_request_id": er.ExitRequestID.String(),
			"ownership_id":    er.OwnershipID.String(),
			"approved_by":     adminID.String(),
		},
	}); err != nil {
		return err
	}

	var pending int64
	if err := tx.Model(&domain.ExitRequest{}).
		Where("ownership_id = ? AND status = ? AND exit_request_id <> ?",
			er.OwnershipID, domain.ExitStatusPending, er.ExitRequestID).
		Count(&pending).Error; err != nil {
		return err
	}
	if pending == 0 {
		return ownership.DeleteIfEmpty(tx, er.OwnershipID)
	}
	return nil
}

// restore undoes a pending exit: the units are reserved again and credited back
// with the cost basis they left with. Fails with ErrInsufficientUnits if the
// released units were bought by someone else in the meantime.
func (e *Engine) restore(tx *gorm.DB, er *domain.ExitRequest, status string, reviewer *uuid.UUID, reason string) error {
	if _, err := ledger.Reserve(tx, er.PropertyID, er.Units); err != nil {
		return err
	}
	if _, err := ownership.Upsert(tx, er.UserID, er.PropertyID, er.Units, er.CostBasis); err != nil {
		return err
	}
	return e.transition(tx, er, status, reviewer, reason)
}

func (e *Engine) decided(ctx context.Context, er *domain.ExitRequest, kind string) {
	if e.Metrics != nil {
		e.Metrics.ExitDecisions.WithLabelValues(er.Status).Inc()
	}
	log.Info().
		Str("exit_request_id", er.ExitRequestID.String()).
		Str("status", er.Status).
		Msg("exit request decided")
	fields := map[string]string{
		"units":  strconv.FormatInt(er.Units, 10),
		"amount": er.RequestedAmount.StringFixed(2),
	}
	if er.RejectionReason != nil {
		fields["reason"] = *er.RejectionReason
	}
	e.notify(ctx, notifications.Event{Kind: kind, UserID: er.UserID, Fields: fields})
}
