package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/progression-backend/internal/http/response"
	"github.com/yungbote/progression-backend/internal/realtime"
	"github.com/yungbote/progression-backend/internal/services"
)

type SkillHandler struct {
	unlocks    services.UnlockService
	ledger     services.LedgerService
	dispatcher services.UnlockDispatcher
	notifier   services.Notifier
}

func NewSkillHandler(
	unlocks services.UnlockService,
	ledger services.LedgerService,
	dispatcher services.UnlockDispatcher,
	notifier services.Notifier,
) *SkillHandler {
	return &SkillHandler{unlocks: unlocks, ledger: ledger, dispatcher: dispatcher, notifier: notifier}
}

func (h *SkillHandler) List(c *gin.Context) {
	rd, ok := actorFrom(c)
	if !ok {
		return
	}
	views, err := h.unlocks.Skills(c.Request.Context(), rd.ActorID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"skills": views})
}

type addSkillXPRequest struct {
	XP         int64  `json:"xp"`
	SourceType string `json:"source_type"`
	SourceID   string `json:"source_id"`
}

// AddXP grants skill xp and re-evaluates unlocks, since skill levels gate
// both badges and child skills.
func (h *SkillHandler) AddXP(c *gin.Context) {
	rd, ok := actorFrom(c)
	if !ok {
		return
	}
	var req addSkillXPRequest
	if !bindJSON(c, &req, false) {
		return
	}
	ctx := c.Request.Context()
	skillID := strings.TrimSpace(c.Param("id"))
	res, err := h.ledger.AddSkillXP(ctx, rd.ActorID, skillID, req.XP, req.SourceType, req.SourceID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	out := gin.H{"skill": res}
	if !res.Duplicate {
		h.notifier.Publish(ctx, rd.ActorID, realtime.EventProgressionUpdated, gin.H{"skills": []*services.SkillXPResult{res}})
		if h.dispatcher != nil {
			if set, err := h.dispatcher.Dispatch(ctx, rd.ActorID); err == nil && set != nil {
				out["unlocked"] = set
			}
		}
	}
	response.RespondOK(c, out)
}

func (h *SkillHandler) Unlock(c *gin.Context) {
	rd, ok := actorFrom(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	v, err := h.unlocks.UnlockSkill(ctx, rd.ActorID, strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	h.notifier.Publish(ctx, rd.ActorID, realtime.EventSkillUnlocked, gin.H{"skill_id": v.SkillID})
	response.RespondOK(c, gin.H{"skill": v})
}
