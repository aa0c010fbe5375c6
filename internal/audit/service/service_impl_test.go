package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/smallbiznis/dormitory/internal/audit/domain"
	"github.com/smallbiznis/dormitory/internal/audit/repository"
	"github.com/smallbiznis/dormitory/internal/auditcontext"
	"github.com/smallbiznis/dormitory/internal/clock"
	obscontext "github.com/smallbiznis/dormitory/internal/observability/context"
	"github.com/smallbiznis/dormitory/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupAuditService(t *testing.T) (auditdomain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&auditdomain.AuditLog{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  repository.Provide(),
	})
	return svc, db, clk
}

func TestRecordUsesContextActorAndRequest(t *testing.T) {
	svc, db, _ := setupAuditService(t)

	ctx := obscontext.WithActor(context.Background(), "floor_manager", "u-9")
	ctx = obscontext.WithRequestID(ctx, "req-1")
	ctx = auditcontext.WithIPAddress(ctx, "10.0.0.8")
	cid := "01HZX"

	err := svc.Record(ctx, "fridge.reallocation.apply", "floor", "3", nil, &cid, map[string]any{
		"affected_compartments": 2,
		"":                      "dropped",
	})
	require.NoError(t, err)

	var stored auditdomain.AuditLog
	require.NoError(t, db.First(&stored).Error)
	assert.Equal(t, "floor_manager", stored.ActorType)
	require.NotNil(t, stored.ActorID)
	assert.Equal(t, "u-9", *stored.ActorID)
	require.NotNil(t, stored.RequestID)
	assert.Equal(t, "req-1", *stored.RequestID)
	require.NotNil(t, stored.CorrelationID)
	assert.Equal(t, cid, *stored.CorrelationID)
	require.NotNil(t, stored.IPAddress)
	assert.Nil(t, stored.UserAgent)
	assert.Equal(t, json.Number("2"), stored.Detail["affected_compartments"])
	assert.NotContains(t, stored.Detail, "")
}

func TestRecordDefaultsToSystemActor(t *testing.T) {
	svc, db, _ := setupAuditService(t)

	require.NoError(t, svc.Record(context.Background(), "room.create", "room", "42", nil, nil, nil))

	var stored auditdomain.AuditLog
	require.NoError(t, db.First(&stored).Error)
	assert.Equal(t, auditdomain.ActorTypeSystem, stored.ActorType)
	assert.Nil(t, stored.ActorID)
}

func TestRecordValidatesInput(t *testing.T) {
	svc, _, _ := setupAuditService(t)

	err := svc.Record(context.Background(), " ", "floor", "1", nil, nil, nil)
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)

	err = svc.Record(context.Background(), "fridge.unit.create", "", "1", nil, nil, nil)
	assert.ErrorIs(t, err, auditdomain.ErrInvalidResource)
}

func TestListPaginatesNewestFirst(t *testing.T) {
	svc, _, clk := setupAuditService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.Record(ctx, "fridge.reallocation.apply", "floor", fmt.Sprint(i%2+1), nil, nil, nil))
		clk.Advance(time.Minute)
	}
	require.NoError(t, svc.Record(ctx, "room.create", "room", "9", nil, nil, nil))

	first, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Action: "fridge.reallocation.apply", Pagination: paginationOf("", 2)})
	require.NoError(t, err)
	require.Len(t, first.AuditLogs, 2)
	assert.True(t, first.HasMore)
	assert.True(t, first.AuditLogs[0].CreatedAt.After(first.AuditLogs[1].CreatedAt))

	second, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Action: "fridge.reallocation.apply", Pagination: paginationOf(first.NextPageToken, 2)})
	require.NoError(t, err)
	require.Len(t, second.AuditLogs, 2)
	assert.True(t, first.AuditLogs[1].CreatedAt.After(second.AuditLogs[0].CreatedAt))

	third, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Action: "fridge.reallocation.apply", Pagination: paginationOf(second.NextPageToken, 2)})
	require.NoError(t, err)
	assert.Len(t, third.AuditLogs, 1)
	assert.False(t, third.HasMore)

	byFloor, err := svc.List(ctx, auditdomain.ListAuditLogRequest{ResourceType: "floor", ResourceKey: "1"})
	require.NoError(t, err)
	assert.Len(t, byFloor.AuditLogs, 3)
}

func TestListRejectsBadPageToken(t *testing.T) {
	svc, _, _ := setupAuditService(t)

	_, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{Pagination: paginationOf("not-a-token", 10)})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)
}

func paginationOf(token string, size int) pagination.Pagination {
	return pagination.Pagination{PageToken: token, PageSize: size}
}
