package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"FuseBox/internal/biz"
	"FuseBox/internal/conf"
	"FuseBox/internal/data"
	"FuseBox/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/durationpb"
)

// newTestServer wires a real breaker over miniredis behind the HTTP surface.
func newTestServer(t *testing.T) (*khttp.Server, *biz.CircuitBreakerUsecase) {
	t.Helper()

	logger := log.NewStdLogger(os.Stdout)
	mr := miniredis.RunT(t)

	dataConf := &conf.Data{
		Redis: &conf.Data_Redis{
			Addr:         mr.Addr(),
			ReadTimeout:  durationpb.New(200 * time.Millisecond),
			WriteTimeout: durationpb.New(200 * time.Millisecond),
		},
	}
	rdb, cleanupRedis, err := data.NewRedisClient(dataConf, logger)
	require.NoError(t, err)
	t.Cleanup(cleanupRedis)

	d, cleanupData, err := data.NewData(dataConf, logger, rdb, nil)
	require.NoError(t, err)
	t.Cleanup(cleanupData)

	store := data.NewCircuitStore(d, logger)
	alerts := data.NewAlertService(&conf.Alert{}, logger)
	metrics := data.NewLogMetricsSink(logger)
	audit := data.NewAuditLogger(nil, logger)
	bus := biz.NewEventBus(logger)
	t.Cleanup(bus.Close)

	breakerConf := &conf.Breaker{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		CallTimeout:      durationpb.New(time.Second),
		MonitoringPeriod: durationpb.New(time.Second),
		ResetTimeout:     durationpb.New(time.Minute),
		ReportInterval:   durationpb.New(time.Second),
		FlushOnCall:      true,
	}
	uc, err := biz.NewCircuitBreakerUsecase(breakerConf, store, alerts, metrics, audit, bus, logger)
	require.NoError(t, err)

	srv := khttp.NewServer()
	NewCircuitService(uc, logger).RegisterRoutes(srv)
	return srv, uc
}

func doJSON(t *testing.T, srv *khttp.Server, method, path, body string, out interface{}) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if out != nil && rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func tripCircuit(t *testing.T, uc *biz.CircuitBreakerUsecase, circuitID string) {
	t.Helper()
	for i := 0; i < 2; i++ {
		_, err := uc.Execute(context.Background(), circuitID, func(context.Context) (interface{}, error) {
			return nil, errors.New("dependency down")
		}, nil)
		require.Error(t, err)
	}
	require.Equal(t, model.StateOpen, uc.GetState(context.Background(), circuitID))
}

func TestListCircuits(t *testing.T) {
	srv, uc := newTestServer(t)

	var empty []model.CircuitSnapshot
	rec := doJSON(t, srv, http.MethodGet, "/v1/circuits", "", &empty)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, empty)

	_, err := uc.Execute(context.Background(), "payments", func(context.Context) (interface{}, error) {
		return "ok", nil
	}, nil)
	require.NoError(t, err)
	tripCircuit(t, uc, "inventory")

	var snapshots []model.CircuitSnapshot
	rec = doJSON(t, srv, http.MethodGet, "/v1/circuits", "", &snapshots)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, snapshots, 2)
	assert.Equal(t, "inventory", snapshots[0].CircuitID)
	assert.Equal(t, model.StateOpen, snapshots[0].State)
	assert.Equal(t, "payments", snapshots[1].CircuitID)
	assert.Equal(t, model.StateClosed, snapshots[1].State)
	assert.Equal(t, uint64(1), snapshots[1].TotalCalls)
}

func TestGetCircuit(t *testing.T) {
	srv, uc := newTestServer(t)
	tripCircuit(t, uc, "payments")

	var snapshot model.CircuitSnapshot
	rec := doJSON(t, srv, http.MethodGet, "/v1/circuits/payments", "", &snapshot)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "payments", snapshot.CircuitID)
	assert.Equal(t, model.StateOpen, snapshot.State)
	assert.Equal(t, uint64(2), snapshot.TotalCalls)
	assert.Equal(t, "dependency down", snapshot.LastError)
}

func TestGetCircuit_UnknownReportsClosed(t *testing.T) {
	srv, _ := newTestServer(t)

	var snapshot model.CircuitSnapshot
	rec := doJSON(t, srv, http.MethodGet, "/v1/circuits/never-seen", "", &snapshot)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "never-seen", snapshot.CircuitID)
	assert.Equal(t, model.StateClosed, snapshot.State)
	assert.Equal(t, float64(1), snapshot.SuccessRate)
	assert.Equal(t, uint64(0), snapshot.TotalCalls)
}

func TestResetCircuit(t *testing.T) {
	srv, uc := newTestServer(t)
	tripCircuit(t, uc, "payments")

	var snapshot model.CircuitSnapshot
	rec := doJSON(t, srv, http.MethodPost, "/v1/circuits/payments/reset", `{"note":"ops ticket 4711"}`, &snapshot)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StateClosed, snapshot.State)
	assert.Equal(t, uint64(0), snapshot.TotalCalls)
	assert.Equal(t, model.StateClosed, uc.GetState(context.Background(), "payments"))
}

func TestResetCircuit_BodyOptional(t *testing.T) {
	srv, uc := newTestServer(t)
	tripCircuit(t, uc, "payments")

	var snapshot model.CircuitSnapshot
	rec := doJSON(t, srv, http.MethodPost, "/v1/circuits/payments/reset", "", &snapshot)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StateClosed, snapshot.State)
	assert.Equal(t, model.StateClosed, uc.GetState(context.Background(), "payments"))
}
