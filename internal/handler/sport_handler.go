package handler

import (
	"net/http"

	"fitmatch/backend/internal/apperrors"
	"fitmatch/backend/internal/models"

	"github.com/gin-gonic/gin"
)

// GetSports godoc
// @Summary      List sports
// @Description  Returns the sports catalog, including sports that are not live yet.
// @Tags         sports
// @Produce      json
// @Success      200 {array} models.Sport
// @Router       /sports [get]
func GetSports(c *gin.Context) {
	c.JSON(http.StatusOK, models.Sports)
}

// GetSportByCode godoc
// @Summary      Get a sport by code
// @Tags         sports
// @Produce      json
// @Param        code path string true "Sport code" example(basketball)
// @Success      200 {object} models.Sport
// @Failure      404 {object} ErrorResponse "Sport not found"
// @Router       /sports/{code} [get]
func GetSportByCode(c *gin.Context) {
	sport, ok := models.FindSport(c.Param("code"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Sport not found", Code: string(apperrors.CodeNotFound)})
		return
	}
	c.JSON(http.StatusOK, sport)
}
