package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/progression-backend/internal/http/response"
	"github.com/yungbote/progression-backend/internal/platform/apierr"
	"github.com/yungbote/progression-backend/internal/platform/ctxutil"
)

const maxBodyBytes = 1 << 20

// actorFrom returns the authenticated actor, writing a 401 when there is
// none.
func actorFrom(c *gin.Context) (*ctxutil.RequestData, bool) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.ActorID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("not authenticated"))
		return nil, false
	}
	return rd, true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil || id == uuid.Nil {
		response.RespondErr(c, apierr.Validation("http."+name, "invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON decodes a bounded body into dst. An empty body leaves dst as is
// when optional is set.
func bindJSON(c *gin.Context, dst any, optional bool) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	if optional && c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		response.RespondErr(c, apierr.Validation("http.bind", err.Error()))
		return false
	}
	return true
}
