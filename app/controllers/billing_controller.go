package controllers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/facturly/facturly/internal/pkg/billing"
	"github.com/facturly/facturly/internal/pkg/entitlements"
)

const billingRequestTimeout = 15 * time.Second

// BillingService is the slice of the billing service the HTTP layer needs.
type BillingService interface {
	CreateCheckout(ctx context.Context, accountID string, plan entitlements.Plan, interval billing.Interval) (string, error)
	CreatePortal(ctx context.Context, accountID string) (string, error)
}

// WebhookProcessor applies one raw Stripe webhook delivery.
type WebhookProcessor interface {
	Process(ctx context.Context, rawBody []byte, signatureHeader string) (billing.Result, error)
}

// BillingController handles checkout, portal, and webhook HTTP requests.
type BillingController struct {
	svc       BillingService
	processor WebhookProcessor
	validate  *validator.Validate
}

func NewBillingController(svc BillingService, processor WebhookProcessor) *BillingController {
	return &BillingController{
		svc:       svc,
		processor: processor,
		validate:  validator.New(),
	}
}

type checkoutRequest struct {
	AccountID string `json:"account_id" validate:"required,uuid4"`
	Plan      string `json:"plan" validate:"required"`
	Interval  string `json:"interval"`
}

type portalRequest struct {
	AccountID string `json:"account_id" validate:"required,uuid4"`
}

// HandleCreateCheckout issues a hosted checkout session URL.
// Request: JSON { "account_id": uuid, "plan": "premium"|"pro", "interval": "month"|"year" }
// Response: { "url": string }
func (bc *BillingController) HandleCreateCheckout(c *fiber.Ctx) error {
	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Malformed JSON body"})
	}
	if err := bc.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": err.Error()})
	}

	interval, err := billing.ParseInterval(req.Interval)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown_plan", "message": fmt.Sprintf("Unknown billing interval %q", req.Interval)})
	}

	ctx, cancel := context.WithTimeout(context.Background(), billingRequestTimeout)
	defer cancel()

	url, err := bc.svc.CreateCheckout(ctx, req.AccountID, entitlements.Normalize(req.Plan), interval)
	if err != nil {
		return bc.billingError(c, err, "checkout")
	}
	return c.JSON(fiber.Map{"url": url})
}

// HandleCreatePortal issues a hosted self-service portal session URL.
// Request: JSON { "account_id": uuid }
// Response: { "url": string }
func (bc *BillingController) HandleCreatePortal(c *fiber.Ctx) error {
	var req portalRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Malformed JSON body"})
	}
	if err := bc.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": err.Error()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), billingRequestTimeout)
	defer cancel()

	url, err := bc.svc.CreatePortal(ctx, req.AccountID)
	if err != nil {
		return bc.billingError(c, err, "portal")
	}
	return c.JSON(fiber.Map{"url": url})
}

// HandleStripeWebhook receives Stripe event deliveries. The exact raw body
// bytes are passed through; the signature covers them.
func (bc *BillingController) HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get("Stripe-Signature")

	ctx, cancel := context.WithTimeout(context.Background(), billingRequestTimeout)
	defer cancel()

	result, err := bc.processor.Process(ctx, rawBody, signature)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrBadSignature):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
		case errors.Is(err, billing.ErrMalformedEvent):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
		default:
			// Transient; Stripe redelivers on non-2xx.
			fiberlog.Error(fmt.Sprintf("stripe webhook processing failed: %v", err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_processing_failed"})
		}
	}

	switch result {
	case billing.ResultDuplicate:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	case billing.ResultIgnored:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	case billing.ResultUnresolvable:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "unresolvable": true})
	default:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	}
}

func (bc *BillingController) billingError(c *fiber.Ctx, err error, op string) error {
	switch {
	case errors.Is(err, billing.ErrUnknownPlan):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown_plan", "message": "Requested plan is not purchasable"})
	case errors.Is(err, billing.ErrAccountNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Account not found"})
	case errors.Is(err, billing.ErrNoBillingIdentity):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no_billing_identity", "message": "Account has no payment profile yet"})
	case errors.Is(err, billing.ErrGatewayUnavailable):
		fiberlog.Error(fmt.Sprintf("billing %s: gateway unavailable: %v", op, err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "gateway_unavailable", "message": "Payment provider is unreachable"})
	default:
		fiberlog.Error(fmt.Sprintf("billing %s failed: %v", op, err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
}
