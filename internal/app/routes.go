package app

import (
	"github.com/gin-gonic/gin"

	"github.com/sbw-site/geotrack/internal/middleware"
	"github.com/sbw-site/geotrack/internal/modules/auth"
	"github.com/sbw-site/geotrack/internal/modules/gateway"
	"github.com/sbw-site/geotrack/internal/modules/health"
	"github.com/sbw-site/geotrack/internal/modules/location"
	"github.com/sbw-site/geotrack/internal/modules/movement"
	"github.com/sbw-site/geotrack/internal/modules/periphery"
	"github.com/sbw-site/geotrack/internal/pkg/response"
)

const apiPrefix = "/api"

var appInfo = gin.H{
	"name":    "geotrack",
	"version": "1.0.0",
}

func (a *App) registerRoutes() {
	r := a.router
	authMW := middleware.Auth(a.signer)

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	r.GET("/", func(c *gin.Context) { response.OK(c, appInfo) })

	api := r.Group(apiPrefix)
	api.Use(middleware.RateLimit(a.rc.Raw(), httpRateLimit))

	gateway.RegisterRoutes(r, api, a.hub)
	health.RegisterRoutes(api, health.Deps{
		DB:     a.db,
		Redis:  a.rc,
		Sched:  a.sched,
		LogDir: a.cfg.LogDir(),
	}, authMW)

	auth.NewHandler(auth.NewService(a.cfg.Admin, a.signer)).RegisterRoutes(api, authMW)
	movement.NewHandler(a.movement, a.loc, a.logger.Named("movement")).RegisterRoutes(api)
	location.NewHandler(a.store).RegisterRoutes(api, authMW)
	periphery.NewHandler(a.db).RegisterRoutes(api, authMW)
}
