package metricspush

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/prometheus/prometheus/prompb"
	"github.com/smallbiznis/dormitory/internal/config"
	"github.com/smallbiznis/dormitory/internal/fridge/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestNewPusher(t *testing.T) {
	log := zap.NewNop()
	cases := []struct {
		name string
		push config.MetricsPushConfig
		want string
	}{
		{name: "disabled", push: config.MetricsPushConfig{}},
		{name: "missing endpoint", push: config.MetricsPushConfig{Exporter: ExporterRemoteWrite}},
		{name: "bad endpoint", push: config.MetricsPushConfig{Exporter: ExporterRemoteWrite, Endpoint: "not a url"}},
		{name: "unknown exporter", push: config.MetricsPushConfig{Exporter: "statsd", Endpoint: "http://x"}},
		{name: "remote write", push: config.MetricsPushConfig{Exporter: ExporterRemoteWrite, Endpoint: "http://x/api/v1/write"}, want: "*metricspush.RemoteWritePusher"},
		{name: "pushgateway", push: config.MetricsPushConfig{Exporter: "Prometheus_Pushgateway", Endpoint: "http://x"}, want: "*metricspush.PushgatewayPusher"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewPusher(config.Config{AppName: "dormitory", MetricsPush: tc.push}, log)
			if tc.want == "" {
				assert.Nil(t, p)
				return
			}
			assert.Equal(t, tc.want, fmt.Sprintf("%T", p))
		})
	}
}

func TestRemoteWritePush(t *testing.T) {
	var got prompb.WriteRequest
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		raw, err := snappy.Decode(nil, body)
		require.NoError(t, err)
		require.NoError(t, got.Unmarshal(raw))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	applies := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "applies_total", Help: "h"}, []string{"floor"})
	applies.WithLabelValues("3").Add(2)
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "apply_seconds", Help: "h"})
	latency.Observe(0.2)
	reg.MustRegister(applies, latency)

	p := NewRemoteWritePusher(srv.URL, "secret")
	p.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	require.NoError(t, p.Push(context.Background(), reg))

	assert.Equal(t, "snappy", headers.Get("Content-Encoding"))
	assert.Equal(t, "Bearer secret", headers.Get("Authorization"))
	require.Len(t, got.Timeseries, 1)
	ts := got.Timeseries[0]
	labels := map[string]string{}
	for _, l := range ts.Labels {
		labels[l.Name] = l.Value
	}
	assert.Equal(t, map[string]string{"__name__": "applies_total", "floor": "3"}, labels)
	assert.Equal(t, "__name__", ts.Labels[0].Name)
	require.Len(t, ts.Samples, 1)
	assert.Equal(t, 2.0, ts.Samples[0].Value)
	assert.EqualValues(t, 1_700_000_000_000, ts.Samples[0].Timestamp)
}

func TestRemoteWritePushReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "g", Help: "h"})
	g.Set(1)
	reg.MustRegister(g)

	err := NewRemoteWritePusher(srv.URL, "").Push(context.Background(), reg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestPushgatewayPush(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "g", Help: "h"})
	reg.MustRegister(g)

	p := NewPushgatewayPusher(srv.URL, "dormitory", map[string]string{"environment": "test", "blank": " "})
	require.NoError(t, p.Push(context.Background(), reg))
	assert.Equal(t, "/metrics/job/dormitory/environment/test", path)

	assert.Error(t, NewPushgatewayPusher(srv.URL, "", nil).Push(context.Background(), reg))
}

func TestOccupancyCollector(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&domain.FridgeUnit{}, &domain.FridgeCompartment{}, &domain.RoomCompartmentAssignment{}))

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&domain.FridgeUnit{ID: 1, Floor: 3, Location: "k", CreatedAt: now, UpdatedAt: now}).Error)
	for i, status := range []domain.CompartmentStatus{domain.CompartmentStatusActive, domain.CompartmentStatusActive, domain.CompartmentStatusRetired} {
		require.NoError(t, db.Create(&domain.FridgeCompartment{
			ID: snowflake.ID(10 + i), UnitID: 1, SlotIndex: i, SlotCode: string(rune('A' + i)),
			CompartmentType: domain.CompartmentTypeChill, Status: status,
			LabelRangeStart: 1, LabelRangeEnd: 10, CreatedAt: now, UpdatedAt: now,
		}).Error)
	}
	require.NoError(t, db.Create(&domain.RoomCompartmentAssignment{ID: 1, RoomID: 5, CompartmentID: 10, AssignedAt: now, CreatedAt: now}).Error)
	require.NoError(t, db.Create(&domain.RoomCompartmentAssignment{ID: 2, RoomID: 6, CompartmentID: 11, AssignedAt: now, CreatedAt: now, RevokedAt: &now}).Error)

	expected := `
# HELP dormitory_fridge_active_assignments Active room to compartment assignments by floor.
# TYPE dormitory_fridge_active_assignments gauge
dormitory_fridge_active_assignments{floor="3"} 1
# HELP dormitory_fridge_compartments Fridge compartments by floor and status.
# TYPE dormitory_fridge_compartments gauge
dormitory_fridge_compartments{floor="3",status="active"} 2
dormitory_fridge_compartments{floor="3",status="retired"} 1
`
	require.NoError(t, testutil.CollectAndCompare(NewOccupancyCollector(db), strings.NewReader(expected)))
}
