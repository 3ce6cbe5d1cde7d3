package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/facturly/facturly/app/controllers"
)

type ApiRouter struct {
	billing *controllers.BillingController
}

func NewApiRouter(billing *controllers.BillingController) *ApiRouter {
	return &ApiRouter{billing: billing}
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")
	v1.Post("/billing/checkout", h.billing.HandleCreateCheckout)
	v1.Post("/billing/portal", h.billing.HandleCreatePortal)

	// The webhook endpoint is registered outside the limiter group. Stripe
	// retries in bursts and a 429 would just delay convergence.
	app.Post("/api/v1/billing/webhook/stripe", h.billing.HandleStripeWebhook)
}
