package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/progression-backend/internal/certificates"
	"github.com/yungbote/progression-backend/internal/data/repos"
	"github.com/yungbote/progression-backend/internal/data/repos/testutil"
	httpH "github.com/yungbote/progression-backend/internal/http/handlers"
	httpMW "github.com/yungbote/progression-backend/internal/http/middleware"
	"github.com/yungbote/progression-backend/internal/http/response"
	"github.com/yungbote/progression-backend/internal/realtime"
	"github.com/yungbote/progression-backend/internal/services"
	"github.com/yungbote/progression-backend/internal/session"
)

type testAPI struct {
	engine *gin.Engine
	auth   services.AuthService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	log := testutil.Logger(t)
	gdb := testutil.DB(t)
	reg := testutil.SeedCatalog(t, ctx, gdb)
	rs := repos.NewSet(gdb, log)
	hub := realtime.NewHub(log)
	clock, err := services.NewClock("UTC")
	if err != nil {
		t.Fatalf("NewClock: %v", err)
	}

	renderer, err := certificates.NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	store, err := certificates.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	notifier := services.NewNotifier(log, hub, nil)
	ledger := services.NewLedgerService(gdb, log, rs.Profiles, rs.Ledger, rs.SkillProgress, rs.Streaks, reg)
	missions := services.NewMissionService(gdb, log, rs.Missions, rs.Events, ledger, reg, clock, 10)
	events := services.NewEventService(gdb, log, rs.Events, missions)
	streaks := services.NewStreakService(gdb, log, rs.Streaks, ledger, events, reg, clock, notifier)
	rewards := services.NewRewardService(reg, streaks)
	unlocks := services.NewUnlockService(gdb, log, rs, ledger, events, reg, clock, certificates.NewIssuer(log, renderer, store))
	dispatcher := services.NewInlineUnlockDispatcher(log, unlocks, notifier)
	gameplay := services.NewGameplayService(gdb, log, ledger, events, streaks, missions, rs.Inventory, reg, dispatcher, notifier, clock)
	market := services.NewMarketplaceService(gdb, log, rs.Inventory, rs.Catalog, ledger, events, reg, clock, notifier)
	admin := services.NewAdminService(gdb, log, rs.Inventory, rs.Catalog, ledger, events, reg, notifier, services.CatalogFiles{})
	progression := services.NewProgressionService(log, ledger, streaks, unlocks, reg)
	auth := services.NewAuthService(log, "router-test", time.Hour)

	sessions, err := session.NewManager(log, hub, progression, 16)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(sessions.Shutdown)

	engine := NewRouter(RouterConfig{
		Log:                log,
		AuthMiddleware:     httpMW.NewAuthMiddleware(log, auth),
		ProgressionHandler: httpH.NewProgressionHandler(progression, gameplay, rewards, sessions),
		StreakHandler:      httpH.NewStreakHandler(streaks),
		SkillHandler:       httpH.NewSkillHandler(unlocks, ledger, dispatcher, notifier),
		BadgeHandler:       httpH.NewBadgeHandler(unlocks, notifier),
		MissionHandler:     httpH.NewMissionHandler(missions),
		MarketplaceHandler: httpH.NewMarketplaceHandler(market),
		RealtimeHandler:    httpH.NewRealtimeHandler(log, sessions, nil),
		AdminHandler:       httpH.NewAdminHandler(admin),
		HealthHandler:      httpH.NewHealthHandler(gdb),
	})
	return &testAPI{engine: engine, auth: auth}
}

func (a *testAPI) token(t *testing.T, actor uuid.UUID, role string) string {
	t.Helper()
	tok, err := a.auth.MintToken(actor, role, 0)
	if err != nil {
		t.Fatalf("MintToken: %v", err)
	}
	return tok
}

func (a *testAPI) do(t *testing.T, method, path, tok string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	a.engine.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealthAndAuth(t *testing.T) {
	api := newTestAPI(t)

	if rec := api.do(t, nethttp.MethodGet, "/healthcheck", "", nil); rec.Code != nethttp.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthcheck: %d %q", rec.Code, rec.Body.String())
	}
	if rec := api.do(t, nethttp.MethodGet, "/api/streak", "", nil); rec.Code != nethttp.StatusUnauthorized {
		t.Fatalf("unauthenticated: %d", rec.Code)
	}
	if rec := api.do(t, nethttp.MethodGet, "/api/streak", "forged", nil); rec.Code != nethttp.StatusUnauthorized {
		t.Fatalf("bad token: %d", rec.Code)
	}
}

func TestCompleteGameAndReadProgression(t *testing.T) {
	api := newTestAPI(t)
	tok := api.token(t, uuid.New(), "")

	rec := api.do(t, nethttp.MethodPost, "/api/games/complete", tok, map[string]any{
		"client_event_id": "run-1",
		"game_type":       "snake",
		"score":           100,
	})
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("complete: %d %s", rec.Code, rec.Body.String())
	}
	var res struct {
		Reward struct {
			XP    int64 `json:"xp"`
			Coins int64 `json:"coins"`
		} `json:"reward"`
		Duplicate bool `json:"duplicate"`
	}
	decode(t, rec, &res)
	if res.Reward.XP != 110 || res.Reward.Coins != 7 || res.Duplicate {
		t.Fatalf("complete result: %+v", res)
	}

	rec = api.do(t, nethttp.MethodPost, "/api/games/complete", tok, map[string]any{
		"client_event_id": "run-1",
		"game_type":       "snake",
		"score":           100,
	})
	decode(t, rec, &res)
	if rec.Code != nethttp.StatusOK || !res.Duplicate {
		t.Fatalf("replay: %d %+v", rec.Code, res)
	}

	rec = api.do(t, nethttp.MethodGet, "/api/me/progression", tok, nil)
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("progression: %d %s", rec.Code, rec.Body.String())
	}
	var view struct {
		Progression services.ProgressionView `json:"progression"`
	}
	decode(t, rec, &view)
	p := view.Progression
	if p.XP != 145 || p.Coins != 27 || p.Level != 2 || p.GamesPlayed != 1 || p.Streak == nil || p.Streak.CurrentStreak != 1 {
		t.Fatalf("progression view: %+v", p)
	}
}

func TestErrorEnvelope(t *testing.T) {
	api := newTestAPI(t)
	tok := api.token(t, uuid.New(), "")

	cases := []struct {
		method, path string
		body         any
		status       int
		code         string
	}{
		{nethttp.MethodPost, "/api/marketplace/items/unicorn/purchase", nil, nethttp.StatusNotFound, "item_not_found"},
		{nethttp.MethodPost, "/api/games/complete", map[string]any{"client_event_id": "x", "game_type": "snake", "score": -1}, nethttp.StatusBadRequest, "invalid_argument"},
		{nethttp.MethodPost, "/api/inventory/not-a-uuid/equip", nil, nethttp.StatusBadRequest, "invalid_argument"},
		{nethttp.MethodGet, "/api/missions?period=weekly", nil, nethttp.StatusBadRequest, "invalid_argument"},
		{nethttp.MethodPost, "/api/skills/negotiation/unlock", nil, nethttp.StatusConflict, "prerequisite_not_met"},
		{nethttp.MethodPost, "/api/admin/catalog/reload", nil, nethttp.StatusForbidden, "forbidden"},
	}
	for _, tc := range cases {
		rec := api.do(t, tc.method, tc.path, tok, tc.body)
		if rec.Code != tc.status {
			t.Fatalf("%s %s: status got=%d want=%d body=%s", tc.method, tc.path, rec.Code, tc.status, rec.Body.String())
		}
		var env response.ErrorEnvelope
		decode(t, rec, &env)
		if env.Error.Code != tc.code || env.Error.Message == "" {
			t.Fatalf("%s %s: envelope %+v", tc.method, tc.path, env)
		}
	}
}

func TestStreakClaimTwice(t *testing.T) {
	api := newTestAPI(t)
	tok := api.token(t, uuid.New(), "")

	if rec := api.do(t, nethttp.MethodPost, "/api/streak/claim", tok, nil); rec.Code != nethttp.StatusOK {
		t.Fatalf("first claim: %d %s", rec.Code, rec.Body.String())
	}
	rec := api.do(t, nethttp.MethodPost, "/api/streak/claim", tok, nil)
	var env response.ErrorEnvelope
	decode(t, rec, &env)
	if rec.Code != nethttp.StatusConflict || env.Error.Code != "already_claimed" {
		t.Fatalf("second claim: %d %+v", rec.Code, env)
	}
}

func TestAdminAdjust(t *testing.T) {
	api := newTestAPI(t)
	target := uuid.New()
	player := api.token(t, target, "")
	admin := api.token(t, uuid.New(), services.RoleAdmin)

	// creates the target's profile
	if rec := api.do(t, nethttp.MethodGet, "/api/me/progression", player, nil); rec.Code != nethttp.StatusOK {
		t.Fatalf("progression: %d", rec.Code)
	}
	body := map[string]any{"xp": 300, "coins": 40, "reason": "hackathon winner", "request_id": "adj-1"}
	rec := api.do(t, nethttp.MethodPost, "/api/admin/actors/"+target.String()+"/adjust", admin, body)
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("adjust: %d %s", rec.Code, rec.Body.String())
	}
	var res struct {
		NewXP    int64 `json:"new_xp"`
		NewCoins int64 `json:"new_coins"`
		NewLevel int   `json:"new_level"`
	}
	decode(t, rec, &res)
	if res.NewXP != 300 || res.NewCoins != 40 || res.NewLevel != 3 {
		t.Fatalf("adjust result: %+v", res)
	}
}

func TestSSEStreamReceivesProgression(t *testing.T) {
	api := newTestAPI(t)
	srv := httptest.NewServer(api.engine)
	defer srv.Close()
	tok := api.token(t, uuid.New(), "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, srv.URL+"/api/realtime/stream?token="+tok, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	stream, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer stream.Body.Close()
	if stream.StatusCode != nethttp.StatusOK || !strings.HasPrefix(stream.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("stream: %d %q", stream.StatusCode, stream.Header.Get("Content-Type"))
	}

	body, _ := json.Marshal(map[string]any{"client_event_id": "sse-1", "game_type": "snake", "score": 100})
	post, _ := nethttp.NewRequest(nethttp.MethodPost, srv.URL+"/api/games/complete", bytes.NewReader(body))
	post.Header.Set("Authorization", "Bearer "+tok)
	post.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(post)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("complete status: %d", resp.StatusCode)
	}

	found := make(chan bool, 1)
	go func() {
		sc := bufio.NewScanner(stream.Body)
		for sc.Scan() {
			if sc.Text() == "event: "+string(realtime.EventProgressionUpdated) {
				found <- true
				return
			}
		}
		found <- false
	}()
	select {
	case ok := <-found:
		if !ok {
			t.Fatalf("stream ended without a progression event")
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for progression event")
	}
}
