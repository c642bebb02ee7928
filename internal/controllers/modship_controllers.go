package controllers

import (
	"errors"
	"net/http"

	"github.com/osvaldoandrade/leaderboards/internal/middleware"
	"github.com/osvaldoandrade/leaderboards/internal/services"

	"github.com/gin-gonic/gin"
)

type myModshipsController struct{ svc services.ModshipService }

func NewMyModshipsController(svc services.ModshipService) *myModshipsController {
	return &myModshipsController{svc}
}

func (h *myModshipsController) Handle(c *gin.Context) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	list, err := h.svc.ListForUser(c.Request.Context(), p.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"modships": list})
}

type grantModshipController struct{ svc services.ModshipService }

func NewGrantModshipController(svc services.ModshipService) *grantModshipController {
	return &grantModshipController{svc}
}

type grantReq struct {
	UserID        string `json:"userId" binding:"required"`
	LeaderboardID string `json:"leaderboardId" binding:"required"`
}

func (h *grantModshipController) Handle(c *gin.Context) {
	var req grantReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	m, err := h.svc.Grant(c.Request.Context(), req.UserID, req.LeaderboardID)
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, services.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "grant failed"})
		return
	}
	c.JSON(http.StatusCreated, m)
}
