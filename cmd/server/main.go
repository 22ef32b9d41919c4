package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kitchenops/checklists/internal/config"
	"github.com/kitchenops/checklists/internal/db"
	"github.com/kitchenops/checklists/internal/events"
	"github.com/kitchenops/checklists/internal/scheduler"
	"github.com/kitchenops/checklists/internal/services"
	"github.com/kitchenops/checklists/internal/web"
)

func main() {
	cfg := config.Load()
	config.SetLogLevel(cfg.LogLevel)
	services.SetLocation(cfg.Timezone)
	log := config.Logger()

	if err := db.Init(cfg); err != nil {
		log.WithError(err).Fatal("db init")
	}

	events.OnInstancesGenerated = func(tenantID, date string, ids []uint) {
		log.WithFields(logrus.Fields{"tenant": tenantID, "date": date, "instances": ids}).Info("instances generated")
	}
	events.OnInstanceSubmitted = func(tenantID string, id uint) {
		log.WithFields(logrus.Fields{"tenant": tenantID, "instance": id}).Info("instance submitted")
	}

	var sched *scheduler.Scheduler
	if cfg.SchedulerEnabled {
		sched = scheduler.New(db.Conn(), cfg)
		if err := sched.Start(); err != nil {
			log.WithError(err).Fatal("scheduler start")
		}
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           web.Router(db.Conn(), cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("addr", cfg.Addr).Info("checklists listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("listen")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if sched != nil {
		sched.Stop()
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("shutdown")
	}
}
