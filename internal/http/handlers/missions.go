package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/progression-backend/internal/domain"
	"github.com/yungbote/progression-backend/internal/http/response"
	"github.com/yungbote/progression-backend/internal/services"
)

type MissionHandler struct {
	missions services.MissionService
}

func NewMissionHandler(missions services.MissionService) *MissionHandler {
	return &MissionHandler{missions: missions}
}

// List defaults to the daily period.
func (h *MissionHandler) List(c *gin.Context) {
	rd, ok := actorFrom(c)
	if !ok {
		return
	}
	period := strings.TrimSpace(c.Query("period"))
	if period == "" {
		period = types.PeriodDaily
	}
	ms, err := h.missions.List(c.Request.Context(), rd.ActorID, period)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"period": period, "missions": ms})
}

func (h *MissionHandler) GenerateDaily(c *gin.Context) {
	rd, ok := actorFrom(c)
	if !ok {
		return
	}
	ms, err := h.missions.GenerateDaily(c.Request.Context(), rd.ActorID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"period": types.PeriodDaily, "missions": ms})
}

func (h *MissionHandler) GenerateMonthly(c *gin.Context) {
	rd, ok := actorFrom(c)
	if !ok {
		return
	}
	ms, err := h.missions.GenerateMonthly(c.Request.Context(), rd.ActorID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"period": types.PeriodMonthly, "missions": ms})
}
