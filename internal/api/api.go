// Package api exposes the JSON/HTTP surface consumed by the web
// client. Handlers translate requests into service calls and service
// errors into HTTP status codes.
package api

import (
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/FaresAhmed23/tournament/internal/auth"
	"github.com/FaresAhmed23/tournament/internal/domain"
	"github.com/FaresAhmed23/tournament/internal/errors"
	"github.com/FaresAhmed23/tournament/internal/event"
	"github.com/FaresAhmed23/tournament/internal/identity"
	"github.com/FaresAhmed23/tournament/internal/registration"
	"github.com/FaresAhmed23/tournament/internal/scoring"
	"github.com/FaresAhmed23/tournament/internal/standings"
)

type Config struct {
	Engine       *gin.Engine
	Auth         *auth.Service
	Identity     *identity.Service
	Event        *event.Service
	Registration *registration.Service
	Scoring      *scoring.Service
	Standings    *standings.Service
}

type API struct {
	auth         *auth.Service
	identity     *identity.Service
	event        *event.Service
	registration *registration.Service
	scoring      *scoring.Service
	standings    *standings.Service
}

func New(c Config) *API {
	a := &API{
		auth:         c.Auth,
		identity:     c.Identity,
		event:        c.Event,
		registration: c.Registration,
		scoring:      c.Scoring,
		standings:    c.Standings,
	}

	a.register(c.Engine)

	return a
}

func (a *API) register(e *gin.Engine) {
	users := e.Group("/api/users")
	users.POST("/register", a.Register)
	users.POST("/login", a.Login)
	users.GET("/profile", a.authenticate, a.GetProfile)
	users.GET("/history", a.authenticate, a.GetUserHistory)
	users.GET("/leaderboard", a.authenticate, a.GetUserLeaderboard)

	teams := e.Group("/api/teams")
	teams.GET("/leaderboard", a.GetTeamLeaderboard)
	teams.POST("", a.authenticate, a.CreateTeam)
	teams.GET("/:teamId", a.authenticate, a.GetTeam)
	teams.PUT("/:teamId", a.authenticate, a.AddMember)
	teams.GET("/:teamId/stats", a.authenticate, a.GetTeamStats)

	events := e.Group("/api/events", a.authenticate)
	events.POST("", a.requireAdmin, a.CreateEvent)
	events.PUT("/:eventId", a.requireAdmin, a.UpdateEvent)
	events.DELETE("/:eventId", a.requireAdmin, a.DeleteEvent)
	events.GET("", a.ListEvents)
	events.GET("/:eventId", a.GetEvent)
	events.POST("/:eventId/participate", a.Participate)
	events.POST("/:eventId/submit", a.Submit)
	events.POST("/:eventId/subscribe", a.Subscribe)
	events.GET("/:eventId/leaderboard", a.GetEventLeaderboard)
	events.GET("/:eventId/team-standings", a.GetTeamStandings)

	e.GET("/api/leaderboard", a.authenticate, a.GetGlobalLeaderboard)
}

const ctxUserKey = "api.user"

// authenticate resolves the bearer token to a user and stores it on
// the request context. The core trusts this identity unconditionally.
func (a *API) authenticate(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if token == "" {
		abortWithError(c, errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("please authenticate")))
		return
	}

	userID, err := a.auth.ResolveToken(c.Request.Context(), token)
	if err != nil {
		abortWithError(c, err)
		return
	}

	u, err := a.identity.GetUser(c.Request.Context(), userID)
	if err != nil {
		abortWithError(c, errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("please authenticate"), errors.WithCause(err)))
		return
	}

	c.Set(ctxUserKey, u)
	c.Next()
}

func (a *API) requireAdmin(c *gin.Context) {
	if currentUser(c).Role != domain.RoleAdmin {
		abortWithError(c, errors.New(errors.CodePermissionDenied,
			errors.WithMessagef("admin role required")))
		return
	}

	c.Next()
}

func currentUser(c *gin.Context) *domain.User {
	return c.MustGet(ctxUserKey).(*domain.User)
}

func respondError(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal {
		slog.ErrorContext(c.Request.Context(), "api: internal error", "error", err)
	}

	c.JSON(e.HTTPStatusCode(), gin.H{"error": e.Message})
}

func abortWithError(c *gin.Context, err error) {
	respondError(c, err)
	c.Abort()
}

func invalidBody(err error) error {
	return errors.New(errors.CodeInvalidArgument,
		errors.WithMessagef("invalid request body"), errors.WithCause(err))
}
