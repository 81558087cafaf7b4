package handlers

import (
	"github.com/gin-gonic/gin"

	types "github.com/yungbote/progression-backend/internal/domain"
	"github.com/yungbote/progression-backend/internal/http/response"
	"github.com/yungbote/progression-backend/internal/platform/apierr"
	"github.com/yungbote/progression-backend/internal/services"
)

type BadgeHandler struct {
	unlocks  services.UnlockService
	notifier services.Notifier
}

func NewBadgeHandler(unlocks services.UnlockService, notifier services.Notifier) *BadgeHandler {
	return &BadgeHandler{unlocks: unlocks, notifier: notifier}
}

func (h *BadgeHandler) Progress(c *gin.Context) {
	rd, ok := actorFrom(c)
	if !ok {
		return
	}
	list, err := h.unlocks.Progress(c.Request.Context(), rd.ActorID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"badges": list})
}

type evaluateRequest struct {
	Kinds []types.BadgeKind `json:"kinds"`
}

// Evaluate runs the evaluator synchronously regardless of the configured
// dispatch mode; the caller wants the result.
func (h *BadgeHandler) Evaluate(c *gin.Context) {
	rd, ok := actorFrom(c)
	if !ok {
		return
	}
	var req evaluateRequest
	if !bindJSON(c, &req, true) {
		return
	}
	for _, k := range req.Kinds {
		if !k.Valid() {
			response.RespondErr(c, apierr.Validation("badges.evaluate", "unknown kind "+string(k)))
			return
		}
	}
	ctx := c.Request.Context()
	set, err := h.unlocks.Evaluate(ctx, rd.ActorID, req.Kinds...)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	if !set.Empty() {
		h.notifier.BadgesUnlocked(ctx, rd.ActorID, set)
		h.notifier.MissionsCompleted(ctx, rd.ActorID, set.Missions)
	}
	response.RespondOK(c, set)
}

func (h *BadgeHandler) CheckInsignias(c *gin.Context) {
	rd, ok := actorFrom(c)
	if !ok {
		return
	}
	res, err := h.unlocks.CheckInsignias(c.Request.Context(), rd.ActorID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, res)
}

func (h *BadgeHandler) ListMine(c *gin.Context) {
	rd, ok := actorFrom(c)
	if !ok {
		return
	}
	held, err := h.unlocks.Badges(c.Request.Context(), rd.ActorID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"badges": held})
}

func (h *BadgeHandler) Titles(c *gin.Context) {
	rd, ok := actorFrom(c)
	if !ok {
		return
	}
	titles, err := h.unlocks.Titles(c.Request.Context(), rd.ActorID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"titles": titles})
}
