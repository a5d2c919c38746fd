package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"fitmatch/backend/internal/auth"
	"fitmatch/backend/internal/enrollment"
	"fitmatch/backend/internal/models"
	"fitmatch/backend/internal/query"

	"github.com/gin-gonic/gin"
)

// region --- DTOs ---

type MatchInput struct {
	Title       string        `json:"title" binding:"required,max=255"`
	Description *string       `json:"description"`
	Sport       *string       `json:"sport" binding:"omitempty,max=100"`
	Location    string        `json:"location" binding:"required,max=255"`
	Date        *models.Date  `json:"date" binding:"required"`
	StartTime   *models.Clock `json:"start_time" binding:"required"`
	EndTime     *models.Clock `json:"end_time"`
	MaxPeople   int           `json:"max_people" binding:"required"`
}

// MatchPatchInput is a partial update; omitted fields are left unchanged.
type MatchPatchInput struct {
	Title       *string       `json:"title" binding:"omitempty,max=255"`
	Description *string       `json:"description"`
	Sport       *string       `json:"sport" binding:"omitempty,max=100"`
	Location    *string       `json:"location" binding:"omitempty,max=255"`
	Date        *models.Date  `json:"date"`
	StartTime   *models.Clock `json:"start_time"`
	EndTime     *models.Clock `json:"end_time"`
	MaxPeople   *int          `json:"max_people"`
	Status      *string       `json:"status"`
}

type MatchResponse struct {
	ID            uint               `json:"id"`
	Title         string             `json:"title"`
	Description   *string            `json:"description"`
	Sport         *string            `json:"sport"`
	Location      string             `json:"location"`
	Date          models.Date        `json:"date" swaggertype:"string" example:"2025-12-01"`
	StartTime     models.Clock       `json:"start_time" swaggertype:"string" example:"19:00:00"`
	EndTime       *models.Clock      `json:"end_time" swaggertype:"string" example:"21:00:00"`
	MaxPeople     int                `json:"max_people"`
	CurrentPeople int                `json:"current_people"`
	OwnerID       *uint              `json:"owner_id"`
	Status        models.MatchStatus `json:"status"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

type EnrollmentResponse struct {
	ID        uint                    `json:"id"`
	MatchID   uint                    `json:"match_id"`
	UserID    uint                    `json:"user_id"`
	Status    models.EnrollmentStatus `json:"status"`
	CreatedAt time.Time               `json:"created_at"`
}

type PaginatedMatchResponse struct {
	Data []MatchResponse      `json:"data"`
	Meta query.PaginationMeta `json:"meta"`
}

func newMatchResponse(m models.Match) MatchResponse {
	return MatchResponse{
		ID:            m.ID,
		Title:         m.Title,
		Description:   m.Description,
		Sport:         m.Sport,
		Location:      m.Location,
		Date:          m.Date,
		StartTime:     m.StartTime,
		EndTime:       m.EndTime,
		MaxPeople:     m.MaxPeople,
		CurrentPeople: m.CurrentPeople,
		OwnerID:       m.OwnerID,
		Status:        m.Status,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func newMatchResponses(matches []models.Match) []MatchResponse {
	response := make([]MatchResponse, 0, len(matches))
	for _, m := range matches {
		response = append(response, newMatchResponse(m))
	}
	return response
}

func newEnrollmentResponse(e models.Enrollment) EnrollmentResponse {
	return EnrollmentResponse{
		ID:        e.ID,
		MatchID:   e.MatchID,
		UserID:    e.UserID,
		Status:    e.Status,
		CreatedAt: e.CreatedAt,
	}
}

func (in MatchInput) toCreateInput() enrollment.CreateInput {
	return enrollment.CreateInput{
		Title:       in.Title,
		Description: in.Description,
		Sport:       in.Sport,
		Location:    in.Location,
		Date:        in.Date,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		MaxPeople:   in.MaxPeople,
	}
}

func (in MatchPatchInput) toPatch() enrollment.Patch {
	p := enrollment.Patch{
		Title:       in.Title,
		Description: in.Description,
		Sport:       in.Sport,
		Location:    in.Location,
		Date:        in.Date,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		MaxPeople:   in.MaxPeople,
	}
	if in.Status != nil {
		status := models.MatchStatus(*in.Status)
		p.Status = &status
	}
	return p
}

// endregion

// region --- query parsing ---

func parseBoolQuery(c *gin.Context, key string, def bool) (bool, bool) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return def, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		badRequest(c, key+" must be a boolean")
		return false, false
	}
	return v, true
}

func parseDateQuery(c *gin.Context, key string) (*models.Date, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		badRequest(c, key+" must be a date in YYYY-MM-DD format")
		return nil, false
	}
	return &d, true
}

func parseIntQuery(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(c, key+" must be an integer")
		return 0, false
	}
	return v, true
}

func parseFilters(c *gin.Context) (query.Filters, bool) {
	var f query.Filters
	var ok bool

	if f.OnlyOpen, ok = parseBoolQuery(c, "only_open", true); !ok {
		return f, false
	}
	if f.Date, ok = parseDateQuery(c, "date"); !ok {
		return f, false
	}
	if f.FromDate, ok = parseDateQuery(c, "from_date"); !ok {
		return f, false
	}
	if f.ToDate, ok = parseDateQuery(c, "to_date"); !ok {
		return f, false
	}
	f.Sport = c.Query("sport")
	f.Regions = []string{c.Query("sido"), c.Query("gungu"), c.Query("dong")}
	return f, true
}

func (h *Handler) callerID(c *gin.Context) (uint, bool) {
	userID, ok := auth.CurrentUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "User not authenticated", Code: "UNAUTHORIZED"})
		return 0, false
	}
	return userID, true
}

// endregion

// CreateMatch godoc
// @Summary      Create a new match
// @Description  Creates an OPEN match owned by the caller with no participants.
// @Tags         matches
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body MatchInput true "Match Info"
// @Success      201  {object}  MatchResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /matches [post]
func (h *Handler) CreateMatch(c *gin.Context) {
	userID, ok := h.callerID(c)
	if !ok {
		return
	}

	var input MatchInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}

	match, err := h.matches.Create(c.Request.Context(), userID, input.toCreateInput())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newMatchResponse(*match))
}

// ListMatches godoc
// @Summary      List matches
// @Description  Lists matches ordered by date, start time and id. Supplying page switches the body to PaginatedMatchResponse.
// @Tags         matches
// @Produce      json
// @Security     BearerAuth
// @Param        date      query string false "Exact date (YYYY-MM-DD); overrides from_date/to_date"
// @Param        from_date query string false "Inclusive lower bound (YYYY-MM-DD)"
// @Param        to_date   query string false "Inclusive upper bound (YYYY-MM-DD)"
// @Param        sport     query string false "Sport"
// @Param        only_open query bool   false "Only OPEN matches" default(true)
// @Param        sido      query string false "Region level 1"
// @Param        gungu     query string false "Region level 2"
// @Param        dong      query string false "Region level 3"
// @Param        page      query int    false "Page number"
// @Param        limit     query int    false "Items per page" default(10)
// @Success      200 {array}  MatchResponse
// @Failure      400 {object} ErrorResponse
// @Router       /matches [get]
func (h *Handler) ListMatches(c *gin.Context) {
	filters, ok := parseFilters(c)
	if !ok {
		return
	}

	if _, paged := c.GetQuery("page"); paged {
		page, ok := parseIntQuery(c, "page")
		if !ok {
			return
		}
		limit, ok := parseIntQuery(c, "limit")
		if !ok {
			return
		}
		result, err := h.queries.ListPage(c.Request.Context(), filters, page, limit)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, PaginatedMatchResponse{Data: newMatchResponses(result.Data), Meta: result.Meta})
		return
	}

	matches, err := h.queries.List(c.Request.Context(), filters)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newMatchResponses(matches))
}

// ListMatchesByMonth godoc
// @Summary      List matches of a calendar month
// @Tags         matches
// @Produce      json
// @Security     BearerAuth
// @Param        year      path  int  true  "Year"
// @Param        month     path  int  true  "Month (1-12)"
// @Param        only_open query bool false "Only OPEN matches" default(true)
// @Success      200 {array}  MatchResponse
// @Failure      400 {object} ErrorResponse
// @Router       /matches/month/{year}/{month} [get]
func (h *Handler) ListMatchesByMonth(c *gin.Context) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		badRequest(c, "invalid year")
		return
	}
	month, err := strconv.Atoi(c.Param("month"))
	if err != nil {
		badRequest(c, "invalid month")
		return
	}
	onlyOpen, ok := parseBoolQuery(c, "only_open", true)
	if !ok {
		return
	}

	matches, err := h.queries.ListByMonth(c.Request.Context(), year, time.Month(month), onlyOpen)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newMatchResponses(matches))
}

// ListMyCreatedMatches godoc
// @Summary      List matches created by the caller
// @Tags         matches
// @Produce      json
// @Security     BearerAuth
// @Param        only_open query bool false "Only OPEN matches" default(true)
// @Success      200 {array}  MatchResponse
// @Failure      401 {object} ErrorResponse
// @Router       /matches/my/created [get]
func (h *Handler) ListMyCreatedMatches(c *gin.Context) {
	userID, ok := h.callerID(c)
	if !ok {
		return
	}
	onlyOpen, ok := parseBoolQuery(c, "only_open", true)
	if !ok {
		return
	}

	matches, err := h.queries.ListCreatedBy(c.Request.Context(), userID, onlyOpen)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newMatchResponses(matches))
}

// ListMyJoinedMatches godoc
// @Summary      List matches the caller has joined
// @Tags         matches
// @Produce      json
// @Security     BearerAuth
// @Param        only_open query bool false "Only OPEN matches" default(true)
// @Success      200 {array}  MatchResponse
// @Failure      401 {object} ErrorResponse
// @Router       /matches/my/joined [get]
func (h *Handler) ListMyJoinedMatches(c *gin.Context) {
	userID, ok := h.callerID(c)
	if !ok {
		return
	}
	onlyOpen, ok := parseBoolQuery(c, "only_open", true)
	if !ok {
		return
	}

	matches, err := h.queries.ListJoinedBy(c.Request.Context(), userID, onlyOpen)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newMatchResponses(matches))
}

// GetMatchByID godoc
// @Summary      Get a match by ID
// @Tags         matches
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Match ID"
// @Success      200 {object} MatchResponse
// @Failure      404 {object} ErrorResponse "Match not found"
// @Router       /matches/{id} [get]
func (h *Handler) GetMatchByID(c *gin.Context) {
	matchID, ok := parseID(c, "id")
	if !ok {
		return
	}

	match, err := h.queries.GetByID(c.Request.Context(), matchID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newMatchResponse(*match))
}

// UpdateMatch godoc
// @Summary      Update a match
// @Description  Applies the supplied fields. Only the owner may update. Setting status does not touch the roster.
// @Tags         matches
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path int             true "Match ID"
// @Param        input body MatchPatchInput true "Fields to change"
// @Success      200 {object} MatchResponse
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse "Not the owner"
// @Failure      404 {object} ErrorResponse "Match not found"
// @Router       /matches/{id} [put]
// @Router       /matches/{id} [patch]
func (h *Handler) UpdateMatch(c *gin.Context) {
	userID, ok := h.callerID(c)
	if !ok {
		return
	}
	matchID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var input MatchPatchInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}

	match, err := h.matches.Update(c.Request.Context(), matchID, userID, input.toPatch())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newMatchResponse(*match))
}

// DeleteMatch godoc
// @Summary      Delete a match
// @Description  Removes the match and its whole enrollment history. Only the owner may delete.
// @Tags         matches
// @Security     BearerAuth
// @Param        id path int true "Match ID"
// @Success      204
// @Failure      403 {object} ErrorResponse "Not the owner"
// @Failure      404 {object} ErrorResponse "Match not found"
// @Router       /matches/{id} [delete]
func (h *Handler) DeleteMatch(c *gin.Context) {
	userID, ok := h.callerID(c)
	if !ok {
		return
	}
	matchID, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.matches.Delete(c.Request.Context(), matchID, userID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CancelMatch godoc
// @Summary      Cancel a match
// @Description  Marks the match CANCELLED. Cancelling twice is a no-op.
// @Tags         matches
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Match ID"
// @Success      200 {object} MatchResponse
// @Failure      403 {object} ErrorResponse "Not the owner"
// @Failure      404 {object} ErrorResponse "Match not found"
// @Router       /matches/{id}/cancel [post]
func (h *Handler) CancelMatch(c *gin.Context) {
	userID, ok := h.callerID(c)
	if !ok {
		return
	}
	matchID, ok := parseID(c, "id")
	if !ok {
		return
	}

	match, err := h.matches.Cancel(c.Request.Context(), matchID, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newMatchResponse(*match))
}

// JoinMatch godoc
// @Summary      Join a match
// @Description  Joins an OPEN match that still has room.
// @Tags         matches
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Match ID"
// @Success      200 {object} MatchResponse
// @Failure      400 {object} ErrorResponse "Not open, full, or already joined"
// @Failure      404 {object} ErrorResponse "Match not found"
// @Router       /matches/{id}/join [post]
func (h *Handler) JoinMatch(c *gin.Context) {
	userID, ok := h.callerID(c)
	if !ok {
		return
	}
	matchID, ok := parseID(c, "id")
	if !ok {
		return
	}

	match, err := h.matches.Join(c.Request.Context(), matchID, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newMatchResponse(*match))
}

// LeaveMatch godoc
// @Summary      Leave a match
// @Tags         matches
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Match ID"
// @Success      200 {object} MatchResponse
// @Failure      400 {object} ErrorResponse "Not enrolled"
// @Failure      404 {object} ErrorResponse "Match not found"
// @Router       /matches/{id}/leave [post]
func (h *Handler) LeaveMatch(c *gin.Context) {
	userID, ok := h.callerID(c)
	if !ok {
		return
	}
	matchID, ok := parseID(c, "id")
	if !ok {
		return
	}

	match, err := h.matches.Leave(c.Request.Context(), matchID, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newMatchResponse(*match))
}

// GetMatchEnrollments godoc
// @Summary      List the roster history of a match
// @Description  Returns every enrollment of the match, active and cancelled, in id order.
// @Tags         matches
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Match ID"
// @Success      200 {array}  EnrollmentResponse
// @Failure      404 {object} ErrorResponse "Match not found"
// @Router       /matches/{id}/enrollments [get]
func (h *Handler) GetMatchEnrollments(c *gin.Context) {
	matchID, ok := parseID(c, "id")
	if !ok {
		return
	}

	rows, err := h.queries.Enrollments(c.Request.Context(), matchID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	response := make([]EnrollmentResponse, 0, len(rows))
	for _, e := range rows {
		response = append(response, newEnrollmentResponse(e))
	}
	c.JSON(http.StatusOK, response)
}

// StreamMatchEvents godoc
// @Summary      Watch a match
// @Description  Server-sent events for every committed change of the match. The stream ends after match.deleted.
// @Tags         matches
// @Produce      text/event-stream
// @Security     BearerAuth
// @Param        id path int true "Match ID"
// @Success      200 {string} string "event stream"
// @Failure      404 {object} ErrorResponse "Match not found"
// @Router       /matches/{id}/events [get]
func (h *Handler) StreamMatchEvents(c *gin.Context) {
	matchID, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := h.queries.GetByID(c.Request.Context(), matchID); err != nil {
		h.respondError(c, err)
		return
	}

	client := h.hub.Subscribe(matchID, 16)
	defer h.hub.Unsubscribe(matchID, client)

	log := h.log.With("match_id", matchID)
	log.Debug("match watcher connected")
	c.Stream(func(w io.Writer) bool {
		select {
		case message, ok := <-client:
			if !ok {
				return false
			}
			c.SSEvent(eventName(message), string(message))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
	log.Debug("match watcher disconnected")
}

func eventName(message []byte) string {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message, &head); err != nil || head.Type == "" {
		return "message"
	}
	return head.Type
}
