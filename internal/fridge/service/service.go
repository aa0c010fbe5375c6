package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/dormitory/internal/audit/domain"
	"github.com/smallbiznis/dormitory/internal/clock"
	"github.com/smallbiznis/dormitory/internal/config"
	"github.com/smallbiznis/dormitory/internal/fridge/domain"
	"github.com/smallbiznis/dormitory/internal/lock"
	"github.com/smallbiznis/dormitory/internal/observability/metrics"
	pkgdb "github.com/smallbiznis/dormitory/pkg/db"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultApplyLockTTL = 30 * time.Second

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Audit   auditdomain.Recorder
	Locker  lock.Locker
	Policy  *config.FridgePolicyHolder
	Config  config.Config
	Metrics *metrics.Metrics `optional:"true"`
}

// Service implements both the reallocation engine and topology administration
// on top of the same store.
type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	audit   auditdomain.Recorder
	locker  lock.Locker
	policy  *config.FridgePolicyHolder
	lockTTL time.Duration
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

func NewService(p Params) *Service {
	ttl := p.Config.Fridge.ApplyLockTTL
	if ttl <= 0 {
		ttl = defaultApplyLockTTL
	}
	policy := p.Policy
	if policy == nil {
		policy = config.NewStaticFridgePolicy(config.FridgePolicy{})
	}
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("fridge.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		audit:   p.Audit,
		locker:  p.Locker,
		policy:  policy,
		lockTTL: ttl,
		metrics: p.Metrics,
		tracer:  otel.Tracer("dormitory/fridge"),
	}
}

var (
	_ domain.AllocationService = (*Service)(nil)
	_ domain.TopologyService   = (*Service)(nil)
)

// storeError marks a persistence failure. Domain errors pass through so
// validation detected inside a transaction keeps its kind.
func storeError(err error) error {
	if err == nil || isDomainError(err) {
		return err
	}
	if pkgdb.IsLockContention(err) {
		return fmt.Errorf("%w: %w", domain.ErrFloorBusy, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrApplyFailed, err)
}

func isDomainError(err error) bool {
	return errors.Is(err, domain.ErrInvalidArgument) ||
		errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrApplyFailed)
}
