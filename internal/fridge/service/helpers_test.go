package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/dormitory/internal/clock"
	"github.com/smallbiznis/dormitory/internal/config"
	"github.com/smallbiznis/dormitory/internal/fridge/domain"
	"github.com/smallbiznis/dormitory/internal/fridge/repository"
	"github.com/smallbiznis/dormitory/internal/lock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var baseTime = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

type auditCall struct {
	action       string
	resourceType string
	resourceKey  string
	detail       map[string]any
}

type auditRecorder struct {
	mu    sync.Mutex
	calls []auditCall
	err   error
}

func (a *auditRecorder) Record(_ context.Context, action, resourceType, resourceKey string, _, _ *string, detail map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, auditCall{action: action, resourceType: resourceType, resourceKey: resourceKey, detail: detail})
	return a.err
}

func (a *auditRecorder) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.calls))
	for _, c := range a.calls {
		out = append(out, c.action)
	}
	return out
}

type fixture struct {
	svc    *Service
	db     *gorm.DB
	audit  *auditRecorder
	clock  *clock.FakeClock
	locker *lock.LocalLocker
}

type fixtureOption func(*Params)

func withRepo(wrap func(domain.Repository) domain.Repository) fixtureOption {
	return func(p *Params) { p.Repo = wrap(p.Repo) }
}

func withPolicy(policy config.FridgePolicy) fixtureOption {
	return func(p *Params) { p.Policy = config.NewStaticFridgePolicy(policy) }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(
		&domain.FridgeUnit{},
		&domain.FridgeCompartment{},
		&domain.Room{},
		&domain.RoomCompartmentAssignment{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(baseTime)
	locker := lock.NewLocalLocker(clk)
	recorder := &auditRecorder{}

	p := Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  clk,
		Repo:   repository.Provide(),
		Audit:  recorder,
		Locker: locker,
		Policy: config.NewStaticFridgePolicy(config.FridgePolicy{}),
	}
	for _, opt := range opts {
		opt(&p)
	}

	return &fixture{
		svc:    NewService(p),
		db:     db,
		audit:  recorder,
		clock:  clk,
		locker: locker,
	}
}

func (f *fixture) unit(t *testing.T, id snowflake.ID, floor int) {
	t.Helper()
	require.NoError(t, f.db.Create(&domain.FridgeUnit{
		ID: id, Floor: floor, Location: "kitchen", CreatedAt: baseTime, UpdatedAt: baseTime,
	}).Error)
}

type compartmentOpt func(*domain.FridgeCompartment)

func locked(c *domain.FridgeCompartment) { c.Locked = true }

func freeze(c *domain.FridgeCompartment) { c.CompartmentType = domain.CompartmentTypeFreeze }

func status(s domain.CompartmentStatus) compartmentOpt {
	return func(c *domain.FridgeCompartment) { c.Status = s }
}

func (f *fixture) compartment(t *testing.T, id, unitID snowflake.ID, slot int, opts ...compartmentOpt) {
	t.Helper()
	c := domain.FridgeCompartment{
		ID:              id,
		UnitID:          unitID,
		SlotIndex:       slot,
		SlotCode:        string(rune('A' + slot)),
		CompartmentType: domain.CompartmentTypeChill,
		Status:          domain.CompartmentStatusActive,
		LabelRangeStart: 1,
		LabelRangeEnd:   50,
		CreatedAt:       baseTime,
		UpdatedAt:       baseTime,
	}
	for _, opt := range opts {
		opt(&c)
	}
	require.NoError(t, f.db.Create(&c).Error)
}

func (f *fixture) room(t *testing.T, id snowflake.ID, floor int, number string) {
	t.Helper()
	require.NoError(t, f.db.Create(&domain.Room{ID: id, Floor: floor, RoomNumber: number, CreatedAt: baseTime}).Error)
}

func (f *fixture) assign(t *testing.T, id, roomID, compartmentID snowflake.ID, at time.Time) {
	t.Helper()
	require.NoError(t, f.db.Create(&domain.RoomCompartmentAssignment{
		ID: id, RoomID: roomID, CompartmentID: compartmentID, AssignedAt: at, CreatedAt: at,
	}).Error)
}

// active returns the active room ids per compartment.
func (f *fixture) active(t *testing.T) map[snowflake.ID][]snowflake.ID {
	t.Helper()
	var rows []domain.RoomCompartmentAssignment
	require.NoError(t, f.db.Where("revoked_at IS NULL").Order("compartment_id, room_id").Find(&rows).Error)
	out := map[snowflake.ID][]snowflake.ID{}
	for _, r := range rows {
		out[r.CompartmentID] = append(out[r.CompartmentID], r.RoomID)
	}
	return out
}

func ids(values ...int64) []snowflake.ID {
	out := make([]snowflake.ID, 0, len(values))
	for _, v := range values {
		out = append(out, snowflake.ID(v))
	}
	return out
}
