package controllers

import (
	"errors"
	"net/http"

	"github.com/osvaldoandrade/leaderboards/internal/services"
	"github.com/osvaldoandrade/leaderboards/pkg/persistence"

	"github.com/gin-gonic/gin"
)

type getUserController struct{ svc services.AccountService }

func NewGetUserController(svc services.AccountService) *getUserController {
	return &getUserController{svc}
}

// Handle serves the public profile; email and admin flag stay private.
func (h *getUserController) Handle(c *gin.Context) {
	user, err := h.svc.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, user.Public())
}
