// Package api assembles the gin HTTP server that fronts the game: REST
// endpoints for auth and stats plus the websocket upgrade for play.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mgelsinger/maze-wars/api/i"
)

// Router owns the HTTP server and fans registration out to the controllers.
// The websocket endpoint registers as a public route; the session it
// upgrades into carries no HTTP middleware past the handshake.
type Router struct {
	addr                    string
	baseURL                 string
	controllers             []i.Controller
	authorizationMiddleware gin.HandlerFunc
}

// Config holds configuration settings for creating a new Router instance.
type Config struct {
	Addr                    string // Address to listen on
	BaseURL                 string // Base URL for API routes
	Controllers             []i.Controller
	AuthorizationMiddleware gin.HandlerFunc
}

// NewRouter creates a new Router instance with the given configuration.
func NewRouter(config Config) *Router {
	return &Router{
		addr:                    config.Addr,
		baseURL:                 config.BaseURL,
		controllers:             config.Controllers,
		authorizationMiddleware: config.AuthorizationMiddleware,
	}
}

// Run registers every controller's routes and starts the HTTP server.
// Public routes need no authentication; protected routes sit behind the
// authorization middleware.
func (r *Router) Run() error {
	router := gin.Default()

	api := router.Group(r.baseURL)
	{
		publicRoutes := api.Group("/v1")
		{
			for _, c := range r.controllers {
				c.RegisterPublic(publicRoutes)
			}
		}

		protectedRoutes := api.Group("/v1")
		protectedRoutes.Use(r.authorizationMiddleware)
		{
			for _, c := range r.controllers {
				c.RegisterProtected(protectedRoutes)
			}
		}
	}

	return router.Run(r.addr)
}
