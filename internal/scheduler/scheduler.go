// Package scheduler fires recurring template generation once a minute.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/kitchenops/checklists/internal/appctx"
	"github.com/kitchenops/checklists/internal/config"
	"github.com/kitchenops/checklists/internal/services"
)

const lockTTL = 2 * time.Minute

// Locker is satisfied by *redislock.Client.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error)
}

type Scheduler struct {
	db     *gorm.DB
	locker Locker
	cron   *cron.Cron
}

// New builds a scheduler. With REDIS_ADDRESS set, every run is guarded by a
// redis lock so that only one replica generates a given template and day.
func New(gdb *gorm.DB, cfg config.Config) *Scheduler {
	s := &Scheduler{db: gdb}
	if cfg.RedisAddr == "" {
		return s
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, PoolSize: 10})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		config.LogError("scheduler", "New", "redis ping", cfg.RedisAddr, err)
		config.Logger().Warn("scheduler running without redis lock")
		_ = rdb.Close()
		return s
	}
	s.locker = redislock.New(rdb)
	return s
}

// WithLocker replaces the run guard.
func (s *Scheduler) WithLocker(l Locker) *Scheduler {
	s.locker = l
	return s
}

func lockKey(tenantID string, templateID uint, date string) string {
	return fmt.Sprintf("checklists:generate:%s:%d:%s", tenantID, templateID, date)
}

// Start runs the job every minute in the service timezone.
func (s *Scheduler) Start() error {
	s.cron = cron.New(cron.WithLocation(services.Location()))
	if _, err := s.cron.AddFunc("* * * * *", func() {
		s.RunOnce(context.Background(), time.Now())
	}); err != nil {
		return err
	}
	s.cron.Start()
	config.Logger().WithField("locked", s.locker != nil).Info("scheduler started")
	return nil
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// RunOnce generates every template due at now and returns how many
// instances were created. Templates already generated for the day are
// skipped.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) int {
	due, err := services.DueTemplates(ctx, s.db, now)
	if err != nil {
		config.LogError("scheduler", "RunOnce", "load due templates", nil, err)
		return 0
	}
	date := now.In(services.Location()).Format("2006-01-02")
	created := 0
	for _, t := range due {
		log := config.Logger().WithFields(logrus.Fields{"tenant": t.TenantID, "template": t.ID, "date": date})

		if s.locker != nil {
			// Not released: replicas ticking later in the same minute skip too.
			key := lockKey(t.TenantID, t.ID, date)
			if _, err := s.locker.Obtain(ctx, key, lockTTL, nil); err != nil {
				if errors.Is(err, redislock.ErrNotObtained) {
					log.Debug("generation locked by another replica")
				} else {
					config.LogError("scheduler", "RunOnce", "obtain lock", key, err)
				}
				continue
			}
		}

		p := appctx.Principal{TenantID: t.TenantID, UserID: t.CreatedBy, IsAdmin: true}
		res, err := services.GenerateInstances(ctx, s.db, p, []uint{t.ID}, date)
		var e *services.Error
		switch {
		case errors.As(err, &e) && e.Code == services.CodeDuplicateInstance:
			log.Debug("instance already generated")
		case err != nil:
			config.LogError("scheduler", "RunOnce", "generate", map[string]any{
				"tenant": t.TenantID, "template": t.ID, "date": date,
			}, err)
		default:
			created += len(res.Created)
			log.Info("recurring instance generated")
		}
	}
	return created
}
