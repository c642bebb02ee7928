package app

import (
	"github.com/osvaldoandrade/leaderboards/internal/authz"
	"github.com/osvaldoandrade/leaderboards/internal/controllers"
	"github.com/osvaldoandrade/leaderboards/internal/middleware"
	"github.com/osvaldoandrade/leaderboards/pkg/domain"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupMappings(app *Application) {
	app.Engine.GET("/healthz", controllers.NewHealthController(app.Store).Handle)
	app.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := app.Engine.Group("/api")

	// Requirements are built once here and shared by every request on the group.
	asUser := middleware.RequireRole(app.Authorizer, authz.NewRequirement(domain.RoleUser))
	asMod := middleware.RequireRole(app.Authorizer, authz.NewRequirement(domain.RoleMod))
	asAdmin := middleware.RequireRole(app.Authorizer, authz.NewRequirement(domain.RoleAdmin))
	{
		api.POST("/login", middleware.RateLimitLogin(app.RateLimiter, app.Config), controllers.NewLoginController(app.Accounts).Handle)
		api.POST("/users/register", middleware.RateLimitRegister(app.RateLimiter, app.Config), controllers.NewRegisterController(app.Accounts).Handle)

		api.GET("/users/me", asUser, controllers.NewMeController(app.Accounts).Handle)
		api.GET("/users/:id", controllers.NewGetUserController(app.Accounts).Handle)

		api.GET("/modships/me", asMod, controllers.NewMyModshipsController(app.Modships).Handle)
		api.POST("/modships", asAdmin, controllers.NewGrantModshipController(app.Modships).Handle)
	}
}
