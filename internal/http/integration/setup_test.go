package integration_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/geocoder89/expensehub/internal/auth"
	"github.com/geocoder89/expensehub/internal/config"
	apphttp "github.com/geocoder89/expensehub/internal/http"
	"github.com/geocoder89/expensehub/internal/repo/memory"
	"github.com/geocoder89/expensehub/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/steinfletcher/apitest"
	jsonpath "github.com/steinfletcher/apitest-jsonpath"
)

func testConfig() config.Config {
	return config.Config{
		Env:                "test",
		ServiceName:        "expensehub-test",
		StoreDriver:        config.StoreDriverMemory,
		JWTSecret:          "test-secret-key",
		CORSAllowedOrigins: []string{"http://localhost:5173"},
		MaxBodyBytes:       1 << 20,
		AuthRateLimit:      100,
		AuthRateWindow:     time.Minute,
	}
}

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()

	users := memory.NewUsersRepo()

	return apphttp.NewRouter(apphttp.Deps{
		Config:   cfg,
		Log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Users:    users,
		Expenses: memory.NewExpensesRepo(users),
		Hasher:   security.NewHasher(),
		Tokens:   auth.NewManager(cfg.JWTSecret),
	})
}

// helpers

func signup(t *testing.T, r http.Handler, username, password string) {
	t.Helper()

	apitest.New().
		Handler(r).
		Post("/signup").
		JSON(map[string]string{"username": username, "password": password}).
		Expect(t).
		Status(http.StatusCreated).
		Assert(jsonpath.Present("$.message")).
		End()
}

type session struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

func login(t *testing.T, r http.Handler, username, password string) session {
	t.Helper()

	res := apitest.New().
		Handler(r).
		Post("/login").
		JSON(map[string]string{"username": username, "password": password}).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Present("$.token")).
		Assert(jsonpath.Present("$.userId")).
		End()

	var s session
	decodeBody(t, res.Response, &s)
	return s
}

func decodeBody(t *testing.T, res *http.Response, out any) {
	t.Helper()

	b, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		t.Fatalf("failed to decode body %s: %v", b, err)
	}
}

func bearer(s session) string {
	return "Bearer " + s.Token
}
