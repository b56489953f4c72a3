package capabilities

import (
	"context"
	"errors"
	"fmt"

	"propshare-backend/internal/constants"
	"propshare-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Actor is the admin changing someone's grants.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

// ValidateGrantChange checks that actor may grant or revoke capability for
// target. Rules:
//   - only admins and superadmins manage grants
//   - only superadmins manage capabilities that are not on by default
//   - nobody but a superadmin changes their own grants
//   - the last holder of review_exits keeps it unless a superadmin exists
func (s *Service) ValidateGrantChange(ctx context.Context, actor Actor, target uuid.UUID, capability string, revoking bool) error {
	isSuper := actor.Role == s.overrideRole()
	if actor.Role != constants.Admin && !isSuper {
		return fmt.Errorf("role %q cannot manage capabilities: %w", actor.Role, domain.ErrUnauthorized)
	}

	db := s.DB.WithContext(ctx)
	var c domain.Capability
	if err := db.Where("name = ?", capability).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("capability %q: %w", capability, domain.ErrNotFound)
		}
		return err
	}
	if !c.DefaultOnSignup && !isSuper {
		return fmt.Errorf("only superadmins can manage %s: %w", capability, domain.ErrUnauthorized)
	}

	var u domain.User
	if err := db.Where("user_id = ?", target).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("user %s: %w", target, domain.ErrNotFound)
		}
		return err
	}
	if actor.UserID == target && !isSuper {
		return fmt.Errorf("users cannot change their own capabilities: %w", domain.ErrUnauthorized)
	}

	if revoking && capability == constants.ReviewExits {
		var supers int64
		if err := db.Model(&domain.User{}).Where("role = ?", s.overrideRole()).Count(&supers).Error; err != nil {
			return err
		}
		var holders int64
		if err := db.Model(&domain.UserCapability{}).Where("capability_id = ?", c.CapabilityID).Count(&holders).Error; err != nil {
			return err
		}
		if supers == 0 && holders <= 1 {
			return fmt.Errorf("at least one user must be able to review exits: %w", domain.ErrInvalidState)
		}
	}
	return nil
}

// GrantAs validates and applies a grant made by actor.
func (s *Service) GrantAs(ctx context.Context, actor Actor, target uuid.UUID, capability string) error {
	if err := s.ValidateGrantChange(ctx, actor, target, capability, false); err != nil {
		return err
	}
	return s.Grant(ctx, target, capability, &actor.UserID)
}

// RevokeAs validates and applies a revocation made by actor.
func (s *Service) RevokeAs(ctx context.Context, actor Actor, target uuid.UUID, capability string) error {
	if err := s.ValidateGrantChange(ctx, actor, target, capability, true); err != nil {
		return err
	}
	return s.Revoke(ctx, target, capability)
}
