package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/progression-backend/internal/http/response"
	"github.com/yungbote/progression-backend/internal/services"
)

type AdminHandler struct {
	admin services.AdminService
}

func NewAdminHandler(admin services.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

func (h *AdminHandler) Pending(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	items, err := h.admin.PendingRequests(c.Request.Context(), limit)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"requests": items})
}

func (h *AdminHandler) Approve(c *gin.Context) {
	rd, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	item, err := h.admin.ApproveRequest(c.Request.Context(), rd.ActorID, id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"item": item})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *AdminHandler) Reject(c *gin.Context) {
	rd, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req rejectRequest
	if !bindJSON(c, &req, true) {
		return
	}
	item, err := h.admin.RejectRequest(c.Request.Context(), rd.ActorID, id, req.Reason)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"item": item})
}

// Adjust falls back to the X-Request-Id header for the idempotency key.
func (h *AdminHandler) Adjust(c *gin.Context) {
	rd, ok := actorFrom(c)
	if !ok {
		return
	}
	target, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var in services.AdjustInput
	if !bindJSON(c, &in, false) {
		return
	}
	if in.RequestID == "" {
		in.RequestID = c.GetHeader("X-Request-Id")
	}
	res, err := h.admin.Adjust(c.Request.Context(), rd.ActorID, target, in)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, res)
}

type reloadCatalogRequest struct {
	File string `json:"file"`
}

func (h *AdminHandler) ReloadCatalog(c *gin.Context) {
	rd, ok := actorFrom(c)
	if !ok {
		return
	}
	var req reloadCatalogRequest
	if !bindJSON(c, &req, true) {
		return
	}
	if err := h.admin.ReloadCatalog(c.Request.Context(), rd.ActorID, req.File); err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"reloaded": true})
}
