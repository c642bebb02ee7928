package controllers

import (
	"errors"
	"net/http"

	"github.com/osvaldoandrade/leaderboards/internal/middleware"
	"github.com/osvaldoandrade/leaderboards/internal/services"
	"github.com/osvaldoandrade/leaderboards/pkg/persistence"

	"github.com/gin-gonic/gin"
)

type meController struct{ svc services.AccountService }

func NewMeController(svc services.AccountService) *meController {
	return &meController{svc}
}

func (h *meController) Handle(c *gin.Context) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	user, err := h.svc.GetUser(c.Request.Context(), p.UserID)
	if errors.Is(err, persistence.ErrNotFound) {
		// deleted after the token was checked
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":        user.ID,
		"username":  user.Username,
		"email":     user.Email,
		"createdAt": user.CreatedAt,
		"roles":     p.Roles.Roles(),
	})
}
