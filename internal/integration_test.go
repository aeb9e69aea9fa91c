package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Rakib-codee/harmonycare-backend/internal/api"
	"github.com/Rakib-codee/harmonycare-backend/internal/db"
	"github.com/Rakib-codee/harmonycare-backend/internal/emergency"
	"github.com/Rakib-codee/harmonycare-backend/internal/model"
	"github.com/Rakib-codee/harmonycare-backend/internal/mw"
	"github.com/Rakib-codee/harmonycare-backend/internal/store"
)

type pushed struct {
	tokens []string
	data   map[string]string
}

// capturingNotifier records pushes synchronously so assertions need no waiting.
type capturingNotifier struct {
	mu     sync.Mutex
	pushes []pushed
}

func (n *capturingNotifier) SendToMany(_ context.Context, tokens []string, data map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pushes = append(n.pushes, pushed{tokens: tokens, data: data})
	return nil
}

func (n *capturingNotifier) SendToOne(ctx context.Context, token string, data map[string]string) error {
	return n.SendToMany(ctx, []string{token}, data)
}

func (n *capturingNotifier) last() pushed {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pushes[len(n.pushes)-1]
}

type testApp struct {
	db       *gorm.DB
	router   *gin.Engine
	notifier *capturingNotifier
}

func newTestApp(t *testing.T, adminSecret string) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	// 1. Setup a private in-memory SQLite database.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()))
	testDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := testDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(testDB))

	// 2. Wire the engine the way the daemon does, with pushes captured.
	notifier := &capturingNotifier{}
	devices := store.NewGormDeviceDirectory(testDB)
	svc := emergency.NewService(
		store.NewGormEmergencyStore(testDB),
		devices,
		store.NewGormAuditLog(testDB),
		notifier,
		emergency.Options{},
	)
	handler := api.NewHandler(svc, devices, &webpush.Options{VAPIDPublicKey: "test-key"}, 30)
	router := api.NewRouter(handler, api.RouterOptions{RateLimit: 1000, RateBurst: 1000, AdminSecret: adminSecret})

	return &testApp{db: testDB, router: router, notifier: notifier}
}

func (a *testApp) do(t *testing.T, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	a.router.ServeHTTP(w, req)
	return w
}

type listedEmergency struct {
	ID          int64  `json:"id"`
	Status      string `json:"status"`
	VolunteerID *int64 `json:"volunteerId"`
}

func (a *testApp) list(t *testing.T, query string) []listedEmergency {
	t.Helper()
	w := a.do(t, http.MethodGet, "/api/emergencies"+query, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var out []listedEmergency
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func ids(list []listedEmergency) []int64 {
	out := make([]int64, 0, len(list))
	for _, e := range list {
		out = append(out, e.ID)
	}
	return out
}

// TestEmergencyLifecycle walks one emergency from report to acceptance over HTTP.
func TestEmergencyLifecycle(t *testing.T) {
	app := newTestApp(t, "")

	// Devices: the reporter, a volunteer on the spot, a stale one and a tokenless one.
	require.Equal(t, http.StatusOK, app.do(t, http.MethodPost, "/api/devices/register",
		`{"userId": 5, "role": "elderly", "pushToken": "elder-5"}`, nil).Code)
	require.Equal(t, http.StatusOK, app.do(t, http.MethodPost, "/api/devices/register",
		`{"userId": 7, "role": "volunteer", "pushToken": "vol-7", "isAvailable": true, "location": {"lat": 10.0, "lon": 20.0}}`, nil).Code)
	require.Equal(t, http.StatusOK, app.do(t, http.MethodPost, "/api/volunteers/availability",
		`{"volunteerId": 9, "isAvailable": true, "pushToken": "vol-9", "location": {"lat": 10.5, "lon": 20.5}}`, nil).Code)
	require.Equal(t, http.StatusOK, app.do(t, http.MethodPost, "/api/volunteers/availability",
		`{"volunteerId": 11, "isAvailable": true, "location": {"lat": 10.0, "lon": 20.0}}`, nil).Code)
	require.NoError(t, app.db.Model(&model.Device{}).
		Where("role = ? AND user_id = ?", model.RoleVolunteer, 9).
		Update("last_seen_at", time.Now().UTC().Add(-time.Hour)).Error)

	var id int64
	t.Run("Report notifies the fresh nearby volunteer", func(t *testing.T) {
		w := app.do(t, http.MethodPost, "/api/emergencies", `{"elderlyId": 5, "latitude": 10.0, "longitude": 20.0}`, nil)
		require.Equal(t, http.StatusCreated, w.Code)

		var body struct {
			ID int64 `json:"id"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.NotZero(t, body.ID)
		id = body.ID

		push := app.notifier.last()
		assert.Equal(t, []string{"vol-7"}, push.tokens)
		assert.Equal(t, emergency.TypeNewEmergency, push.data["type"])
		assert.Equal(t, fmt.Sprint(id), push.data["emergency_id"])
		assert.Equal(t, "5", push.data["elderly_id"])

		active := app.list(t, "")
		require.Len(t, active, 1)
		assert.Equal(t, id, active[0].ID)
		assert.Equal(t, model.StatusActive, active[0].Status)
		assert.Nil(t, active[0].VolunteerID)
	})

	t.Run("First accept wins, second conflicts", func(t *testing.T) {
		path := fmt.Sprintf("/api/emergencies/%d", id)

		w := app.do(t, http.MethodPatch, path, `{"status": "accepted", "volunteerId": 7}`, nil)
		require.Equal(t, http.StatusOK, w.Code)

		push := app.notifier.last()
		assert.Equal(t, []string{"elder-5"}, push.tokens)
		assert.Equal(t, map[string]string{
			"type":         emergency.TypeEmergencyAccepted,
			"emergency_id": fmt.Sprint(id),
			"volunteer_id": "7",
		}, push.data)

		w = app.do(t, http.MethodPatch, path, `{"status": "accepted", "volunteerId": 9}`, nil)
		assert.Equal(t, http.StatusConflict, w.Code)

		w = app.do(t, http.MethodPatch, "/api/emergencies/1", `{"status": "accepted", "volunteerId": 9}`, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)

		assert.Equal(t, []int64{id}, ids(app.list(t, "?volunteerId=7")))
		assert.Empty(t, app.list(t, "?volunteerId=9"))
		assert.Empty(t, app.list(t, ""), "accepted emergencies are no longer open")
	})

	t.Run("Audit trail", func(t *testing.T) {
		var actions []string
		require.NoError(t, app.db.Model(&model.AuditEntry{}).
			Where("emergency_id = ?", id).Order("id").Pluck("action", &actions).Error)
		assert.Equal(t, []string{model.ActionCreated, model.ActionPushedToVolunteers, model.ActionAccepted}, actions)
	})

	t.Run("Missing latitude writes nothing", func(t *testing.T) {
		var before int64
		require.NoError(t, app.db.Model(&model.Emergency{}).Count(&before).Error)

		w := app.do(t, http.MethodPost, "/api/emergencies", `{"elderlyId": 5, "longitude": 20.0}`, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		var after int64
		require.NoError(t, app.db.Model(&model.Emergency{}).Count(&after).Error)
		assert.Equal(t, before, after)
	})
}

// TestConcurrentAcceptOverHTTP races many volunteers on one emergency.
func TestConcurrentAcceptOverHTTP(t *testing.T) {
	app := newTestApp(t, "")

	w := app.do(t, http.MethodPost, "/api/emergencies", `{"elderlyId": 5, "latitude": 10, "longitude": 20, "timestamp": 1718000000123}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	codes := make(chan int, 10)
	var wg sync.WaitGroup
	for v := 1; v <= 10; v++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			body := fmt.Sprintf(`{"status": "accepted", "volunteerId": %d}`, v)
			codes <- app.do(t, http.MethodPatch, "/api/emergencies/1718000000123", body, nil).Code
		}(v)
	}
	wg.Wait()
	close(codes)

	counts := map[int]int{}
	for c := range codes {
		counts[c]++
	}
	assert.Equal(t, map[int]int{http.StatusOK: 1, http.StatusConflict: 9}, counts)

	var e model.Emergency
	require.NoError(t, app.db.First(&e, 1718000000123).Error)
	assert.Equal(t, model.StatusAccepted, e.Status)
	assert.NotNil(t, e.VolunteerID)
}

// TestRetentionCleanup checks the admin sweep and its credential guard.
func TestRetentionCleanup(t *testing.T) {
	seed := func(t *testing.T, app *testApp) {
		now := time.Now().UTC()
		emergencies := store.NewGormEmergencyStore(app.db)
		for i := int64(1); i <= 3; i++ {
			old := now.AddDate(0, 0, -40)
			require.NoError(t, emergencies.Create(context.Background(), &model.Emergency{
				ID: i, ElderlyID: 5, Latitude: 10, Longitude: 20, Timestamp: i,
				Status: model.StatusActive, CreatedAt: old, UpdatedAt: old,
			}))
		}
		require.NoError(t, emergencies.Create(context.Background(), &model.Emergency{
			ID: 99, ElderlyID: 5, Latitude: 10, Longitude: 20, Timestamp: 99,
			Status: model.StatusActive, CreatedAt: now, UpdatedAt: now,
		}))
	}

	t.Run("Rejected when no credential is configured", func(t *testing.T) {
		app := newTestApp(t, "")
		seed(t, app)

		w := app.do(t, http.MethodPost, "/api/admin/cleanup", `{"days": 30}`, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Len(t, app.list(t, ""), 4)
	})

	t.Run("Deletes only expired emergencies", func(t *testing.T) {
		app := newTestApp(t, "s3cret")
		seed(t, app)

		w := app.do(t, http.MethodPost, "/api/admin/cleanup", `{"days": 30}`, map[string]string{mw.AdminSecretHeader: "s3cret"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"deleted": 3, "days": 30}`, w.Body.String())
		assert.Equal(t, []int64{99}, ids(app.list(t, "")))
	})
}
