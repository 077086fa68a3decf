package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/voiceassist/internal/catalog"
	catalogdomain "github.com/smallbiznis/voiceassist/internal/catalog/domain"
	"github.com/smallbiznis/voiceassist/internal/clock"
	"github.com/smallbiznis/voiceassist/internal/commerce"
	"github.com/smallbiznis/voiceassist/internal/config"
	"github.com/smallbiznis/voiceassist/internal/identity"
	"github.com/smallbiznis/voiceassist/internal/migration"
	"github.com/smallbiznis/voiceassist/internal/observability"
	"github.com/smallbiznis/voiceassist/internal/ratelimit"
	"github.com/smallbiznis/voiceassist/internal/server"
	"github.com/smallbiznis/voiceassist/internal/usage"
	"github.com/smallbiznis/voiceassist/internal/widget"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const sessionLimit = 3

type testEnv struct {
	app     *fx.App
	server  *server.Server
	db      *gorm.DB
	baseURL string
	httpSrv *httptest.Server
	engine  *fakeEngine
	workDir string
}

var env *testEnv

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)

	var err error
	env, err = startEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to start test environment:", err)
		os.Exit(1)
	}

	code := m.Run()
	env.shutdown()
	os.Exit(code)
}

func TestE2E_HealthCheck(t *testing.T) {
	resp, err := http.Get(env.baseURL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestE2E_ConversationHitsSessionLimit(t *testing.T) {
	resetDatabase(t, env.db)

	resp, body := doJSON(t, http.MethodPost, "/api/elevenlabs/usage/session-start", map[string]any{"session_id": "conv-e2e"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	start := decode(t, body)
	assert.Equal(t, true, start["created"])
	mustParseID(t, start["record_id"].(string))

	for i := 2; i <= sessionLimit; i++ {
		resp, body = doJSON(t, http.MethodPost, "/api/elevenlabs/usage/record-message", map[string]any{"session_id": "conv-e2e"}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		assert.EqualValues(t, i, decode(t, body)["message_count"])
	}

	resp, body = doJSON(t, http.MethodPost, "/api/elevenlabs/usage/record-message", map[string]any{"session_id": "conv-e2e"}, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	denied := decode(t, body)
	assert.Equal(t, "session_limit_exceeded", denied["reason"])

	assert.EqualValues(t, 1, countRows(t, env.db, "usage_records", "session_id = ?", "conv-e2e"))

	resp, body = doJSON(t, http.MethodPost, "/api/elevenlabs/usage/session-end", map[string]any{"conversation_id": "conv-e2e"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.EqualValues(t, 0, countRows(t, env.db, "usage_records", "session_id = ? AND is_active = ?", "conv-e2e", true))
}

func TestE2E_AuthenticatedAndAnonymousAreSeparate(t *testing.T) {
	resetDatabase(t, env.db)

	user := map[string]string{"X-Authenticated-User": "42"}
	resp, _ := doJSON(t, http.MethodPost, "/api/elevenlabs/usage/session-start", map[string]any{"session_id": "shared"}, user)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doJSON(t, http.MethodPost, "/api/elevenlabs/usage/session-start", map[string]any{"session_id": "shared"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.EqualValues(t, 1, countRows(t, env.db, "usage_records", "user_id = ? AND public_user_id IS NULL", "42"))
	assert.EqualValues(t, 1, countRows(t, env.db, "usage_records", "user_id IS NULL AND public_user_id IS NOT NULL"))
}

func TestE2E_SearchLiveThenFallback(t *testing.T) {
	resetDatabase(t, env.db)
	seedCatalog(t, env.db)

	rpc := map[string]any{"jsonrpc": "2.0", "method": "call", "params": map[string]any{"query": "lamp"}, "id": 1}
	resp, body := doJSON(t, http.MethodPost, "/api/elevenlabs/products/search", rpc, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	result := decode(t, body)["result"].(map[string]any)
	assert.Equal(t, "catalog", result["source"])
	products := result["products"].([]any)
	require.Len(t, products, 1)
	assert.Equal(t, "Desk Lamp", products[0].(map[string]any)["name"])

	resp, body = doJSON(t, http.MethodPost, "/api/elevenlabs/products/search", map[string]any{"query": "macbook"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	fallback := decode(t, body)
	assert.Equal(t, "fallback", fallback["source"])
	assert.NotEmpty(t, fallback["products"])
}

func TestE2E_AddToCartReachesEngine(t *testing.T) {
	resetDatabase(t, env.db)
	seedCatalog(t, env.db)

	headers := map[string]string{"Cookie": "session_id=storefront-abc"}
	resp, body := doJSON(t, http.MethodPost, "/api/elevenlabs/cart/add", map[string]any{"sku": "LAMP-1", "quantity": "2"}, headers)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "Added 2 x Desk Lamp to your cart.", decode(t, body)["message"])

	call := env.engine.last()
	assert.Equal(t, "/cart/add", call.path)
	assert.Equal(t, "session_id=storefront-abc", call.cookie)
	assert.EqualValues(t, 7, call.body["product_id"])
	assert.EqualValues(t, 2, call.body["quantity"])
}

func TestE2E_SessionInitAndPage(t *testing.T) {
	resetDatabase(t, env.db)

	resp, body := doJSON(t, http.MethodGet, "/api/elevenlabs/session/init?page_url=/shop", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	init := decode(t, body)
	assert.Equal(t, true, init["canShowWidget"])
	assert.Equal(t, "agent_e2e", init["config"].(map[string]any)["agent_id"])

	resp, body = doJSON(t, http.MethodGet, "/ai-assistant", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `agent-id="agent_e2e"`)
}

func startEnv() (*testEnv, error) {
	workDir, err := os.MkdirTemp("", "voiceassist-e2e")
	if err != nil {
		return nil, err
	}
	widgetYML := fmt.Sprintf("widget:\n  max_messages_per_session: %d\n", sessionLimit)
	if err := os.WriteFile(filepath.Join(workDir, "widget.yml"), []byte(widgetYML), 0o600); err != nil {
		return nil, err
	}

	engine := newFakeEngine()
	setDefaultEnv(workDir, engine.srv.URL)

	var (
		srv    *server.Server
		dbConn *gorm.DB
	)

	app := fx.New(
		fx.NopLogger,
		observability.Module,
		config.Module,
		fx.Provide(openTestDB),
		migration.Module,
		clock.Module,
		ratelimit.Module,
		identity.Module,
		usage.Module,
		catalog.Module,
		commerce.Module,
		widget.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		fx.Provide(server.NewEngine),
		fx.Provide(server.NewServer),
		fx.Populate(&srv, &dbConn),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		engine.srv.Close()
		return nil, err
	}

	httpSrv := httptest.NewServer(srv.Engine())

	return &testEnv{
		app:     app,
		server:  srv,
		db:      dbConn,
		baseURL: httpSrv.URL,
		httpSrv: httpSrv,
		engine:  engine,
		workDir: workDir,
	}, nil
}

// openTestDB stands in for pkg/db with a shared in-memory database.
func openTestDB(lc fx.Lifecycle) (*gorm.DB, error) {
	conn, err := gorm.Open(sqlite.Open("file:voiceassist_e2e?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return sqlDB.Close() },
	})
	return conn, nil
}

func (e *testEnv) shutdown() {
	if e == nil {
		return
	}
	if e.httpSrv != nil {
		e.httpSrv.Close()
	}
	if e.app != nil {
		_ = e.app.Stop(context.Background())
	}
	if e.engine != nil {
		e.engine.srv.Close()
	}
	_ = os.RemoveAll(e.workDir)
}

func setDefaultEnv(workDir, engineURL string) {
	setEnvIfEmpty("ENVIRONMENT", "test")
	setEnvIfEmpty("LOG_LEVEL", "error")
	setEnvIfEmpty("DATABASE_TYPE", "sqlite")
	setEnvIfEmpty("RATE_LIMIT_ENABLED", "false")
	setEnvIfEmpty("WIDGET_DEFAULT_AGENT_ID", "agent_e2e")
	_ = os.Setenv("WIDGET_CONFIG_PATH", workDir)
	_ = os.Setenv("COMMERCE_ENGINE_URL", engineURL)
}

func setEnvIfEmpty(key, value string) {
	if strings.TrimSpace(os.Getenv(key)) != "" {
		return
	}
	_ = os.Setenv(key, value)
}

func resetDatabase(t *testing.T, dbConn *gorm.DB) {
	t.Helper()
	for _, table := range []string{"usage_records", "product_attribute_values", "products", "product_categories"} {
		require.NoError(t, dbConn.Exec("DELETE FROM "+table).Error, table)
	}
}

func seedCatalog(t *testing.T, dbConn *gorm.DB) {
	t.Helper()
	categoryID := int64(1)
	code := "LAMP-1"
	require.NoError(t, dbConn.Create(&catalogdomain.Category{ID: categoryID, Name: "Lighting"}).Error)
	require.NoError(t, dbConn.Create(&catalogdomain.Product{
		ID:               7,
		Name:             "Desk Lamp",
		DefaultCode:      &code,
		ListPrice:        19.90,
		QtyAvailable:     5,
		CategoryID:       &categoryID,
		SaleOK:           true,
		WebsitePublished: true,
	}).Error)
}

func countRows(t *testing.T, dbConn *gorm.DB, table string, where string, args ...any) int64 {
	t.Helper()
	var count int64
	require.NoError(t, dbConn.Table(table).Where(where, args...).Count(&count).Error)
	return count
}

func mustParseID(t *testing.T, value string) snowflake.ID {
	t.Helper()
	parsed, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || parsed == 0 {
		t.Fatalf("invalid snowflake id: %s", value)
	}
	return parsed
}

func doJSON(t *testing.T, method, path string, payload any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, env.baseURL+path, body)
	require.NoError(t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decode(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return out
}

type engineCall struct {
	path   string
	cookie string
	body   map[string]any
}

// fakeEngine records calls and accepts every cart line.
type fakeEngine struct {
	srv   *httptest.Server
	mu    sync.Mutex
	calls []engineCall
}

func newFakeEngine() *fakeEngine {
	e := &fakeEngine{}
	e.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		e.mu.Lock()
		e.calls = append(e.calls, engineCall{path: r.URL.Path, cookie: r.Header.Get("Cookie"), body: body})
		e.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"order_id": 55, "cart_quantity": body["quantity"], "amount_total": 39.8},
		})
	}))
	return e
}

func (e *fakeEngine) last() engineCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.calls) == 0 {
		return engineCall{}
	}
	return e.calls[len(e.calls)-1]
}
