package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"propshare-backend/internal/application/engine"
	"propshare-backend/internal/domain"
	"propshare-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	SignatureHeader     = "X-Payment-Signature"
	EventPaymentSucceed = "payment.succeeded"
	signatureTolerance  = 5 * time.Minute
)

// Acquirer applies a verified payment to the ledger.
type Acquirer interface {
	Acquire(ctx context.Context, req engine.AcquireRequest) (*engine.OwnershipSnapshot, error)
}

type WebhookHandler struct {
	Engine        Acquirer
	WebhookSecret string
	Now           func() time.Time
}

type paymentEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Reference string            `json:"reference"`
		Amount    decimal.Decimal   `json:"amount"`
		Currency  string            `json:"currency"`
		Metadata  map[string]string `json:"metadata"`
	} `json:"data"`
}

// HandleWebhook POST /api/v1/payments/webhook. The raw body is verified before
// anything is parsed. Domain rejections are acknowledged with 200 so the
// provider stops retrying; Conflict and internal errors return 503 so it retries.
func (wh *WebhookHandler) HandleWebhook(c *fiber.Ctx) error {
	l := middleware.Logger(c)
	rawBody := c.BodyRaw()
	sig := c.Get(SignatureHeader)

	if len(rawBody) == 0 {
		l.Warn().Msg("payment webhook received empty body")
		return c.Status(fiber.StatusBadRequest).SendString("Webhook Error: empty body")
	}

	if err := verifySignature(rawBody, sig, wh.WebhookSecret, wh.now()); err != nil {
		l.Warn().Err(err).Bool("has_sig", sig != "").Bool("has_secret", wh.WebhookSecret != "").Msg("payment webhook signature verification failed")
		return c.Status(fiber.StatusBadRequest).SendString(fmt.Sprintf("Webhook Error: %s", err.Error()))
	}

	var event paymentEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		l.Warn().Err(err).Msg("payment webhook JSON parse failed")
		return c.Status(fiber.StatusBadRequest).SendString(fmt.Sprintf("Webhook Error: %s", err.Error()))
	}

	if event.Type != EventPaymentSucceed {
		return c.Status(fiber.StatusOK).SendString("ok")
	}

	req, err := acquireRequest(event)
	if err != nil {
		l.Warn().Err(err).Str("event_id", event.ID).Msg("payment webhook missing purchase metadata")
		return c.Status(fiber.StatusOK).SendString("ok")
	}

	snap, err := wh.Engine.Acquire(c.UserContext(), req)
	switch {
	case err == nil:
		l.Info().
			Str("event_id", event.ID).
			Str("reference", req.PaymentReference).
			Bool("duplicate", snap.Duplicate).
			Msg("payment applied")
		return c.Status(fiber.StatusOK).SendString("ok")
	case errors.Is(err, domain.ErrConflict):
		l.Warn().Err(err).Str("reference", req.PaymentReference).Msg("payment webhook conflict, asking provider to retry")
		c.Set(fiber.HeaderRetryAfter, "1")
		return c.Status(fiber.StatusServiceUnavailable).SendString("retry")
	case isDomainRejection(err):
		l.Error().Err(err).Str("reference", req.PaymentReference).Msg("payment rejected by ledger, needs refund")
		return c.Status(fiber.StatusOK).SendString("ok")
	default:
		l.Error().Err(err).Str("reference", req.PaymentReference).Msg("payment webhook failed")
		return c.Status(fiber.StatusServiceUnavailable).SendString("retry")
	}
}

func (wh *WebhookHandler) now() time.Time {
	if wh.Now != nil {
		return wh.Now()
	}
	return time.Now()
}

func acquireRequest(event paymentEvent) (engine.AcquireRequest, error) {
	md := event.Data.Metadata
	userID, err := uuid.Parse(md["user_id"])
	if err != nil {
		return engine.AcquireRequest{}, errors.New("metadata.user_id is not a uuid")
	}
	propertyID, err := uuid.Parse(md["property_id"])
	if err != nil {
		return engine.AcquireRequest{}, errors.New("metadata.property_id is not a uuid")
	}
	units, err := strconv.ParseInt(md["units"], 10, 64)
	if err != nil || units <= 0 {
		return engine.AcquireRequest{}, errors.New("metadata.units must be a positive integer")
	}
	if event.Data.Reference == "" {
		return engine.AcquireRequest{}, errors.New("data.reference is required")
	}
	return engine.AcquireRequest{
		UserID:           userID,
		PropertyID:       propertyID,
		Units:            units,
		PaymentReference: event.Data.Reference,
		VerifiedAmount:   event.Data.Amount,
	}, nil
}

func isDomainRejection(err error) bool {
	for _, target := range []error{
		domain.ErrInsufficientUnits,
		domain.ErrInvalidState,
		domain.ErrInvalidInput,
		domain.ErrPaymentMismatch,
		domain.ErrUnauthorized,
		domain.ErrNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// verifySignature checks a "t=<unix>,v1=<hex hmac-sha256(t.body)>" header.
func verifySignature(payload []byte, sigHeader, secret string, now time.Time) error {
	if sigHeader == "" || secret == "" {
		return errors.New("missing signature or secret")
	}

	var timestamp string
	var signatures []string

	for _, part := range strings.Split(sigHeader, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}

	if timestamp == "" || len(signatures) == 0 {
		return errors.New("invalid signature format")
	}

	expectedSig := Sign(payload, timestamp, secret)
	for _, sig := range signatures {
		if !hmac.Equal([]byte(sig), []byte(expectedSig)) {
			continue
		}
		ts, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			return errors.New("invalid timestamp")
		}
		diff := now.Sub(time.Unix(ts, 0))
		if diff < 0 {
			diff = -diff
		}
		if diff > signatureTolerance {
			return errors.New("timestamp too old")
		}
		return nil
	}

	return errors.New("signature mismatch")
}

// Sign returns the hex v1 signature for payload at timestamp.
func Sign(payload []byte, timestamp, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
