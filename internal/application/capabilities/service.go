package capabilities

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"propshare-backend/internal/constants"
	"propshare-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Reasons reported by Authorize.
const (
	ReasonOverride          = "override"
	ReasonGranted           = "granted"
	ReasonUserNotFound      = "user_not_found"
	ReasonUnknownCapability = "unknown_capability"
	ReasonKYCNotVerified    = "kyc_not_verified"
	ReasonNotGranted        = "not_granted"
)

const cacheKeyPrefix = "capabilities:user:"

// Decision is the gate outcome. Allowed is false unless a rule explicitly allows.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

// Service is the capability gate. Rdb is optional; grant sets are cached there.
type Service struct {
	DB           *gorm.DB
	Rdb          *redis.Client
	CacheTTL     time.Duration
	OverrideRole string
}

func (s *Service) overrideRole() string {
	if s.OverrideRole != "" {
		return s.OverrideRole
	}
	return constants.Superadmin
}

// Authorize resolves whether userID may use capability. Lookup failures deny
// and return the error.
func (s *Service) Authorize(ctx context.Context, userID uuid.UUID, capability string) (Decision, error) {
	var user domain.User
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Decision{Reason: ReasonUserNotFound}, nil
		}
		return Decision{Reason: "lookup_failed"}, err
	}
	if user.Role == s.overrideRole() {
		return Decision{Allowed: true, Reason: ReasonOverride}, nil
	}

	var c domain.Capability
	if err := s.DB.WithContext(ctx).Where("name = ?", capability).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Decision{Reason: ReasonUnknownCapability}, nil
		}
		return Decision{Reason: "lookup_failed"}, err
	}
	if c.RequiresKYC && !user.KYCVerified() {
		return Decision{Reason: ReasonKYCNotVerified}, nil
	}

	granted, err := s.Granted(ctx, userID)
	if err != nil {
		return Decision{Reason: "lookup_failed"}, err
	}
	for _, name := range granted {
		if name == capability {
			return Decision{Allowed: true, Reason: ReasonGranted}, nil
		}
	}
	return Decision{Reason: ReasonNotGranted}, nil
}

// Require is Authorize returning a *domain.UnauthorizedError on denial.
func (s *Service) Require(ctx context.Context, userID uuid.UUID, capability string) error {
	d, err := s.Authorize(ctx, userID, capability)
	if err != nil {
		return fmt.Errorf("authorize %s: %w", capability, err)
	}
	if !d.Allowed {
		return &domain.UnauthorizedError{Capability: capability, Reason: d.Reason}
	}
	return nil
}

// Granted returns the names of capabilities granted directly to userID.
func (s *Service) Granted(ctx context.Context, userID uuid.UUID) ([]string, error) {
	key := cacheKeyPrefix + userID.String()
	if s.Rdb != nil {
		b, err := s.Rdb.Get(ctx, key).Bytes()
		if err == nil {
			var names []string
			if jsonErr := json.Unmarshal(b, &names); jsonErr == nil {
				return names, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("user_id", userID.String()).Msg("capability cache read failed")
		}
	}

	var names []string
	grants := s.DB.WithContext(ctx).Model(&domain.UserCapability{}).Select("capability_id").Where("user_id = ?", userID)
	err := s.DB.WithContext(ctx).
		Model(&domain.Capability{}).
		Where("capability_id IN (?)", grants).
		Order("name").
		Pluck("name", &names).Error
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}

	if s.Rdb != nil {
		b, _ := json.Marshal(names)
		if err := s.Rdb.Set(ctx, key, b, s.ttl()).Err(); err != nil {
			log.Warn().Err(err).Str("user_id", userID.String()).Msg("capability cache write failed")
		}
	}
	return names, nil
}

func (s *Service) ttl() time.Duration {
	if s.CacheTTL > 0 {
		return s.CacheTTL
	}
	return 5 * time.Minute
}

// Grant gives capability to userID. Granting twice is a no-op.
func (s *Service) Grant(ctx context.Context, userID uuid.UUID, capability string, grantedBy *uuid.UUID) error {
	var c domain.Capability
	if err := s.DB.WithContext(ctx).Where("name = ?", capability).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("capability %q: %w", capability, domain.ErrNotFound)
		}
		return err
	}
	uc := domain.UserCapability{UserID: userID, CapabilityID: c.CapabilityID, GrantedBy: grantedBy}
	if err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&uc).Error; err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// Revoke removes a direct grant.
func (s *Service) Revoke(ctx context.Context, userID uuid.UUID, capability string) error {
	var c domain.Capability
	if err := s.DB.WithContext(ctx).Where("name = ?", capability).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("capability %q: %w", capability, domain.ErrNotFound)
		}
		return err
	}
	if err := s.DB.WithContext(ctx).
		Where("user_id = ? AND capability_id = ?", userID, c.CapabilityID).
		Delete(&domain.UserCapability{}).Error; err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// GrantDefaults grants every default-on-signup capability to a new user.
func (s *Service) GrantDefaults(ctx context.Context, userID uuid.UUID) error {
	var defaults []domain.Capability
	if err := s.DB.WithContext(ctx).Where("default_on_signup = ?", true).Find(&defaults).Error; err != nil {
		return err
	}
	for _, c := range defaults {
		uc := domain.UserCapability{UserID: userID, CapabilityID: c.CapabilityID}
		if err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&uc).Error; err != nil {
			return err
		}
	}
	s.invalidate(ctx, userID)
	return nil
}

// EnsureRegistry inserts any missing capability definitions; existing rows are left alone.
func (s *Service) EnsureRegistry(ctx context.Context, defs []constants.CapabilityDef) error {
	for _, d := range defs {
		c := domain.Capability{
			Name:            d.Name,
			Description:     d.Description,
			DefaultOnSignup: d.DefaultOnSignup,
			RequiresKYC:     d.RequiresKYC,
		}
		if err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).Create(&c).Error; err != nil {
			return fmt.Errorf("seed capability %s: %w", d.Name, err)
		}
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, userID uuid.UUID) {
	if s.Rdb == nil {
		return
	}
	if err := s.Rdb.Del(ctx, cacheKeyPrefix+userID.String()).Err(); err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("capability cache invalidate failed")
	}
}
