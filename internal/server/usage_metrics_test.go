package server

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/voiceassist/internal/clock"
	"github.com/smallbiznis/voiceassist/internal/config"
	"github.com/smallbiznis/voiceassist/internal/identity"
	"github.com/smallbiznis/voiceassist/internal/migration"
	obsmetrics "github.com/smallbiznis/voiceassist/internal/observability/metrics"
	"github.com/smallbiznis/voiceassist/internal/usage/repository"
	usageservice "github.com/smallbiznis/voiceassist/internal/usage/service"
	"github.com/smallbiznis/voiceassist/internal/widget"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ledgerServer struct {
	*testServer
	reader *sdkmetric.ManualReader
	// limit_reason as set on the last request
	limitReason string
}

// newLedgerServer wires the real usage service and one shared Metrics into
// both layers, the way the fx graph does.
func newLedgerServer(t *testing.T, settings config.WidgetSettings) *ledgerServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migration.AutoMigrate(conn))

	reader := sdkmetric.NewManualReader()
	m, err := obsmetrics.New(obsmetrics.Config{ServiceName: "voiceassist-test"},
		sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	require.NoError(t, err)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	usage, err := usageservice.NewService(usageservice.ServiceParam{
		DB:      conn,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   clock.NewFakeClock(time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)),
		Config:  config.Config{TimeZone: "UTC"},
		Repo:    repository.Provide(),
		Metrics: m,
	})
	require.NoError(t, err)

	ls := &ledgerServer{reader: reader}
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Next()
		ls.limitReason = c.GetString("limit_reason")
	})
	router.Use(RecoveryMiddleware())
	router.Use(ErrorHandlingMiddleware())

	cfg := config.Config{Identity: config.IdentityConfig{UserHeader: "X-Authenticated-User"}}
	srv := &Server{
		engine:      router,
		cfg:         cfg,
		resolver:    identity.NewResolver(identity.SchemeHex),
		settings:    config.NewStaticWidgetSettingsHolder(settings),
		usagesvc:    usage,
		catalogSvc:  &fakeCatalogService{},
		commerceSvc: &fakeCommerceService{},
		page:        widget.NewPageRenderer(cfg),
		obsMetrics:  m,
	}
	srv.registerToolRoutes()
	ls.testServer = &testServer{router: router}
	return ls
}

func (ls *ledgerServer) total(t *testing.T, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, ls.reader.Collect(context.Background(), &rm))

	var total int64
	for _, scope := range rm.ScopeMetrics {
		for _, metric := range scope.Metrics {
			if sum, ok := metric.Data.(metricdata.Sum[int64]); ok && metric.Name == name {
				for _, point := range sum.DataPoints {
					total += point.Value
				}
			}
		}
	}
	return total
}

func TestUsageRoutesCountEachMessageOnce(t *testing.T) {
	settings := config.DefaultWidgetSettings()
	settings.DailyUsageLimit = 0
	settings.GlobalUsageLimit = 0
	settings.MaxMessagesPerSession = 1
	ls := newLedgerServer(t, settings)

	resp, _ := ls.do(t, http.MethodPost, "/api/elevenlabs/usage/session-start", `{"session_id":"conv-1"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.EqualValues(t, 1, ls.total(t, "voiceassist_usage_messages_total"))
	assert.Empty(t, ls.limitReason)

	resp, body := ls.do(t, http.MethodPost, "/api/elevenlabs/usage/record-message", `{"session_id":"conv-1"}`)
	require.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.Equal(t, "session_limit_exceeded", body["reason"])
	assert.Equal(t, "session_limit_exceeded", ls.limitReason)
	assert.EqualValues(t, 1, ls.total(t, "voiceassist_usage_messages_total"))
	assert.EqualValues(t, 1, ls.total(t, "voiceassist_limit_denied_total"))

	// read-only checks at the cap report the denial without recording one
	resp, body = ls.do(t, http.MethodPost, "/api/elevenlabs/usage/check-limits", `{"session_id":"conv-1"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, false, body["allowed"])
	assert.Empty(t, ls.limitReason)
	assert.EqualValues(t, 1, ls.total(t, "voiceassist_limit_denied_total"))
}

func TestSessionRecordReportsLimitsWithoutDenying(t *testing.T) {
	settings := config.DefaultWidgetSettings()
	settings.DailyUsageLimit = 0
	settings.GlobalUsageLimit = 0
	settings.MaxMessagesPerSession = 1
	ls := newLedgerServer(t, settings)

	resp, body := ls.do(t, http.MethodPost, "/api/elevenlabs/session/record", `{"session_id":"conv-2"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, true, body["success"])

	limits, ok := body["limits"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, limits["allowed"])
	assert.Empty(t, ls.limitReason)
	assert.EqualValues(t, 1, ls.total(t, "voiceassist_usage_messages_total"))
	assert.EqualValues(t, 0, ls.total(t, "voiceassist_limit_denied_total"))
}
