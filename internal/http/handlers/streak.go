package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/progression-backend/internal/http/response"
	"github.com/yungbote/progression-backend/internal/services"
)

type StreakHandler struct {
	streaks services.StreakService
}

func NewStreakHandler(streaks services.StreakService) *StreakHandler {
	return &StreakHandler{streaks: streaks}
}

func (h *StreakHandler) Get(c *gin.Context) {
	rd, ok := actorFrom(c)
	if !ok {
		return
	}
	v, err := h.streaks.Get(c.Request.Context(), rd.ActorID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"streak": v})
}

func (h *StreakHandler) Claim(c *gin.Context) {
	rd, ok := actorFrom(c)
	if !ok {
		return
	}
	res, err := h.streaks.ClaimDailyReward(c.Request.Context(), rd.ActorID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, res)
}
