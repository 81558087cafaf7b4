package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/progression-backend/internal/http/response"
	"github.com/yungbote/progression-backend/internal/services"
	"github.com/yungbote/progression-backend/internal/session"
)

type ProgressionHandler struct {
	progression services.ProgressionService
	gameplay    services.GameplayService
	rewards     services.RewardService
	sessions    *session.Manager
}

func NewProgressionHandler(
	progression services.ProgressionService,
	gameplay services.GameplayService,
	rewards services.RewardService,
	sessions *session.Manager,
) *ProgressionHandler {
	return &ProgressionHandler{progression: progression, gameplay: gameplay, rewards: rewards, sessions: sessions}
}

// GetMine serves the session's cached view when the caller has a live
// realtime session and loads it fresh otherwise.
func (h *ProgressionHandler) GetMine(c *gin.Context) {
	rd, ok := actorFrom(c)
	if !ok {
		return
	}
	if h.sessions != nil {
		if s, open := h.sessions.Get(rd.SessionID); open && s.ActorID == rd.ActorID {
			if v, err := s.View(c.Request.Context()); err == nil {
				response.RespondOK(c, gin.H{"progression": v})
				return
			}
		}
	}
	v, err := h.progression.View(c.Request.Context(), rd.ActorID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"progression": v})
}

func (h *ProgressionHandler) CompleteGame(c *gin.Context) {
	rd, ok := actorFrom(c)
	if !ok {
		return
	}
	var in services.GameplayInput
	if !bindJSON(c, &in, false) {
		return
	}
	res, err := h.gameplay.Complete(c.Request.Context(), rd.ActorID, in)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, res)
}

func (h *ProgressionHandler) LogActivity(c *gin.Context) {
	rd, ok := actorFrom(c)
	if !ok {
		return
	}
	var in services.EventInput
	if !bindJSON(c, &in, false) {
		return
	}
	res, err := h.gameplay.LogActivity(c.Request.Context(), rd.ActorID, in)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, res)
}

func (h *ProgressionHandler) PreviewReward(c *gin.Context) {
	rd, ok := actorFrom(c)
	if !ok {
		return
	}
	var req services.RewardRequest
	if !bindJSON(c, &req, false) {
		return
	}
	preview, err := h.rewards.Compute(c.Request.Context(), rd.ActorID, req)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, preview)
}
