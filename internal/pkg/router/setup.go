package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/facturly/facturly/app/controllers"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

func InstallRouter(app *fiber.App, billingController *controllers.BillingController) {
	setup(app, NewHttpRouter(), NewApiRouter(billingController))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
