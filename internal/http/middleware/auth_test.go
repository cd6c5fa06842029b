package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/bloomquiz-backend/internal/domain"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/ctxutil"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/logger"
	"github.com/yungbote/bloomquiz-backend/internal/services"
)

type tokenAuth struct {
	services.AuthService
	users map[string]*types.User
}

func (a tokenAuth) CurrentUser(ctx context.Context, token string) (*types.User, error) {
	switch token {
	case "expired":
		return nil, services.ErrExpiredToken
	case "orphan":
		return nil, services.ErrUserNotFound
	}
	if u, ok := a.users[token]; ok {
		return u, nil
	}
	return nil, services.ErrInvalidToken
}

func (a tokenAuth) AccessTTL() time.Duration { return time.Minute }

func authRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/who", mw, func(c *gin.Context) {
		if uid := ctxutil.UserIDFrom(c.Request.Context()); uid != nil {
			c.String(http.StatusOK, "user")
			return
		}
		c.String(http.StatusOK, "anonymous")
	})
	return r
}

func call(r http.Handler, target, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddleware(t *testing.T) {
	am := NewAuthMiddleware(logger.NewNop(), tokenAuth{users: map[string]*types.User{
		"good": {ID: 3, Email: "ada@example.com"},
	}})
	required := authRouter(am.RequireAuth())
	optional := authRouter(am.OptionalAuth())

	cases := []struct {
		name   string
		r      http.Handler
		target string
		bearer string
		status int
		body   string
	}{
		{"required ok", required, "/who", "good", http.StatusOK, "user"},
		{"required missing", required, "/who", "", http.StatusUnauthorized, ""},
		{"required expired", required, "/who", "expired", http.StatusUnauthorized, ""},
		{"required orphan", required, "/who", "orphan", http.StatusNotFound, ""},
		{"query token", required, "/who?token=good", "", http.StatusOK, "user"},
		{"optional anonymous", optional, "/who", "", http.StatusOK, "anonymous"},
		{"optional user", optional, "/who", "good", http.StatusOK, "user"},
		{"optional bad token", optional, "/who", "forged", http.StatusUnauthorized, ""},
	}
	for _, tc := range cases {
		rec := call(tc.r, tc.target, tc.bearer)
		if rec.Code != tc.status {
			t.Fatalf("%s: status=%d body=%s", tc.name, rec.Code, rec.Body.String())
		}
		if tc.body != "" && rec.Body.String() != tc.body {
			t.Fatalf("%s: body=%q", tc.name, rec.Body.String())
		}
	}
}

func TestAttachTraceContextEchoesIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachTraceContext())
	var seen *ctxutil.TraceData
	r.GET("/x", func(c *gin.Context) {
		seen = ctxutil.GetTraceData(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", "req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if seen == nil || seen.RequestID != "req-1" || seen.TraceID == "" {
		t.Fatalf("trace data=%+v", seen)
	}
	if rec.Header().Get("X-Request-Id") != "req-1" || rec.Header().Get("X-Trace-Id") != seen.TraceID {
		t.Fatalf("headers=%v", rec.Header())
	}
}
