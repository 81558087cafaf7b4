package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/progression-backend/internal/platform/apierr"
)

func TestRespondErrMapsKinds(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err    error
		status int
		code   string
	}{
		{apierr.Validation("op", "bad score"), http.StatusBadRequest, apierr.CodeInvalidArgument},
		{apierr.NotFound(apierr.CodeItemNotFound, "op", "no item"), http.StatusNotFound, apierr.CodeItemNotFound},
		{apierr.Conflict(apierr.CodeInsufficientCoins, "op", "broke"), http.StatusConflict, apierr.CodeInsufficientCoins},
		{apierr.New(apierr.KindTransient, apierr.CodeRetryable, "op", "locked"), http.StatusServiceUnavailable, apierr.CodeRetryable},
		{errors.New("pq: connection reset"), http.StatusInternalServerError, apierr.CodeInternal},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		RespondErr(c, tc.err)

		if rec.Code != tc.status {
			t.Fatalf("%v: status got=%d want=%d", tc.err, rec.Code, tc.status)
		}
		var env ErrorEnvelope
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if env.Error.Code != tc.code || env.Error.Message != apierr.Message(tc.code) {
			t.Fatalf("%v: envelope %+v", tc.err, env)
		}
	}
}
