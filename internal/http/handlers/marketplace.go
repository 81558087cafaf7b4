package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/progression-backend/internal/http/response"
	"github.com/yungbote/progression-backend/internal/services"
)

type MarketplaceHandler struct {
	market services.MarketplaceService
}

func NewMarketplaceHandler(market services.MarketplaceService) *MarketplaceHandler {
	return &MarketplaceHandler{market: market}
}

func (h *MarketplaceHandler) ListItems(c *gin.Context) {
	items, err := h.market.List(c.Request.Context(), strings.TrimSpace(c.Query("q")), strings.TrimSpace(c.Query("category")))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"items": items})
}

func (h *MarketplaceHandler) Purchase(c *gin.Context) {
	rd, ok := actorFrom(c)
	if !ok {
		return
	}
	res, err := h.market.Purchase(c.Request.Context(), rd.ActorID, strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, res)
}

func (h *MarketplaceHandler) Inventory(c *gin.Context) {
	rd, ok := actorFrom(c)
	if !ok {
		return
	}
	inv, err := h.market.Inventory(c.Request.Context(), rd.ActorID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"inventory": inv})
}

func (h *MarketplaceHandler) Activate(c *gin.Context) {
	rd, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	res, err := h.market.ActivateBoost(c.Request.Context(), rd.ActorID, id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, res)
}

func (h *MarketplaceHandler) Equip(c *gin.Context) {
	rd, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	item, err := h.market.Equip(c.Request.Context(), rd.ActorID, id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"item": item})
}
