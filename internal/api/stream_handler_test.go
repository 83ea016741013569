package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warungtech/restopos/internal/models"
	"github.com/warungtech/restopos/internal/services/liveupdate"
)

// syncRecorder is a thread-safe response writer for reading a stream body
// while the handler is still writing it.
type syncRecorder struct {
	mu     sync.Mutex
	header http.Header
	body   bytes.Buffer
	status int
}

func newSyncRecorder() *syncRecorder {
	return &syncRecorder{header: make(http.Header)}
}

func (r *syncRecorder) Header() http.Header {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.header
}

func (r *syncRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body.Write(p)
}

func (r *syncRecorder) WriteHeader(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = code
}

func (r *syncRecorder) Flush() {}

func (r *syncRecorder) snapshot() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body.String()
}

func setTenant(tenant *models.Tenant) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("tenant", tenant)
		c.Set("tenant_use_redis", tenant.UseRedis)
	}
}

func TestStreamDeliversPingAndEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)

	broker := liveupdate.NewBroker(nil, 16, zap.NewNop())
	defer broker.Close()

	tenant := &models.Tenant{RestaurantID: 11111111, DBName: "resto_11111111"}
	handler := NewStreamHandler(broker, time.Hour, zap.NewNop())

	router := gin.New()
	router.GET("/live", setTenant(tenant), handler.Stream)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/live", nil).WithContext(ctx)
	rec := newSyncRecorder()

	done := make(chan struct{})
	go func() {
		router.ServeHTTP(rec, req)
		close(done)
	}()

	// The initial ping frame marks the subscription as registered.
	require.Eventually(t, func() bool {
		return strings.Contains(rec.snapshot(), `"event":"ping"`)
	}, time.Second, 5*time.Millisecond, "initial ping frame missing")

	broker.Publish(context.Background(), "11111111", models.EventOrderCreated, json.RawMessage(`{"order":5}`), false)

	require.Eventually(t, func() bool {
		return strings.Contains(rec.snapshot(), `"event":"order.created"`)
	}, time.Second, 5*time.Millisecond, "published event never reached the stream")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream did not terminate on client disconnect")
	}

	body := rec.snapshot()
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(body, "data: "), "frames must use SSE data framing")
	assert.Contains(t, body, `{"order":5}`)
	// The process origin marker is wire-internal and must not reach clients.
	assert.NotContains(t, body, `"origin"`)
}

func TestPublishEventFansOutToListeners(t *testing.T) {
	gin.SetMode(gin.TestMode)

	broker := liveupdate.NewBroker(nil, 16, zap.NewNop())
	defer broker.Close()

	sub := broker.Subscribe("11111111", false)
	defer sub.Unsubscribe()

	tenant := &models.Tenant{RestaurantID: 11111111}
	handler := NewStreamHandler(broker, time.Hour, zap.NewNop())

	router := gin.New()
	router.POST("/orders/events", setTenant(tenant), handler.PublishEvent)

	body := `{"event":"order.updated","data":{"order":3,"status":"served"}}`
	req := httptest.NewRequest(http.MethodPost, "/orders/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)

	select {
	case payload := <-sub.C:
		assert.Equal(t, models.EventOrderUpdated, payload.Event)
		assert.Equal(t, "11111111", payload.TenantID)
		assert.JSONEq(t, `{"order":3,"status":"served"}`, string(payload.Data))
	default:
		t.Fatal("listener did not receive the published event")
	}
}

func TestPublishEventRejectsBadKinds(t *testing.T) {
	gin.SetMode(gin.TestMode)

	broker := liveupdate.NewBroker(nil, 16, zap.NewNop())
	defer broker.Close()

	tenant := &models.Tenant{RestaurantID: 11111111}
	handler := NewStreamHandler(broker, time.Hour, zap.NewNop())

	router := gin.New()
	router.POST("/orders/events", setTenant(tenant), handler.PublishEvent)

	post := func(body string) int {
		req := httptest.NewRequest(http.MethodPost, "/orders/events", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusBadRequest, post(`{"event":"order.exploded"}`))
	assert.Equal(t, http.StatusBadRequest, post(`{"data":{"order":1}}`))
	// Pings are reserved for the stream's own liveness checks.
	assert.Equal(t, http.StatusBadRequest, post(`{"event":"ping"}`))
}
