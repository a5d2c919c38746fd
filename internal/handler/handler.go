package handler

import (
	"errors"
	"net/http"
	"strconv"

	"fitmatch/backend/internal/apperrors"
	"fitmatch/backend/internal/enrollment"
	"fitmatch/backend/internal/hub"
	"fitmatch/backend/internal/logger"
	"fitmatch/backend/internal/query"

	"github.com/gin-gonic/gin"
)

// Handler serves the HTTP API on top of the enrollment manager and the
// read-side query service.
type Handler struct {
	matches *enrollment.Manager
	queries *query.Service
	hub     *hub.Hub
	log     *logger.Logger
}

func New(matches *enrollment.Manager, queries *query.Service, h *hub.Hub, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{matches: matches, queries: queries, hub: h, log: log}
}

// RegisterRoutes mounts the API under rg. identity resolves the caller for
// every match route.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, identity gin.HandlerFunc) {
	rg.GET("/health", Health)

	sports := rg.Group("/sports")
	{
		sports.GET("", GetSports)
		sports.GET("/:code", GetSportByCode)
	}

	matches := rg.Group("/matches")
	matches.Use(identity)
	{
		matches.POST("", h.CreateMatch)
		matches.GET("", h.ListMatches)
		// Must be before /:id
		matches.GET("/month/:year/:month", h.ListMatchesByMonth)
		matches.GET("/my/created", h.ListMyCreatedMatches)
		matches.GET("/my/joined", h.ListMyJoinedMatches)

		matches.GET("/:id", h.GetMatchByID)
		matches.PUT("/:id", h.UpdateMatch)
		matches.PATCH("/:id", h.UpdateMatch)
		matches.DELETE("/:id", h.DeleteMatch)
		matches.POST("/:id/cancel", h.CancelMatch)
		matches.POST("/:id/join", h.JoinMatch)
		matches.POST("/:id/leave", h.LeaveMatch)
		matches.GET("/:id/enrollments", h.GetMatchEnrollments)
		matches.GET("/:id/events", h.StreamMatchEvents)
	}
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Health godoc
// @Summary      Liveness probe
// @Tags         health
// @Produce      json
// @Success      200 {object} map[string]string "{"status": "ok"}"
// @Router       /health [get]
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) respondError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.Internal(err, "internal server error")
	}

	status := apperrors.HTTPStatus(appErr.Code)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: appErr.Message, Code: string(appErr.Code)})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: message, Code: string(apperrors.CodeValidation)})
}

func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}
