// Package app wires the store, dispatcher, validator, generator, backup
// manager, and scheduler together from one config file.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"sheetops/internal/audit"
	"sheetops/internal/backup"
	"sheetops/internal/config"
	"sheetops/internal/generate"
	"sheetops/internal/notify"
	"sheetops/internal/observability/pprof"
	"sheetops/internal/sched"
	"sheetops/internal/store"
	"sheetops/internal/validate"
	"sheetops/pkg/logx"
)

// jobSpec pairs a handler with its built-in cadence. Config can override the
// cadence or disable the job.
type jobSpec struct {
	handler sched.Handler
	cadence sched.Cadence
}

type App struct {
	cfgm *config.Manager
	log  logx.Logger

	store  store.Store
	audit  *audit.Log
	disp   *notify.Dispatcher
	engine *sched.Engine
	backup *backup.Manager
	prof   *pprof.Service

	specs map[string]jobSpec

	cronMu  sync.Mutex
	cron    *cron.Cron
	entryID map[string]cron.EntryID
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath, logx.NewConsole("INFO"))
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}).With(logx.String("comp", "app"))

	busyTimeout, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(store.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "store")))
	if err != nil {
		return nil, err
	}

	auditLog := audit.NewLog(st, log.With(logx.String("comp", "audit")))

	gw := notify.NewSMTPGateway(notify.SMTPConfig{
		Host:      cfg.SMTP.Host,
		Port:      cfg.SMTP.Port,
		Username:  cfg.SMTP.Username,
		Password:  cfg.SMTP.Password,
		FromEmail: cfg.SMTP.From,
		FromName:  cfg.SMTP.FromName,
		TLS:       cfg.SMTP.UseTLS,
	})
	disp := notify.NewDispatcher(notify.Config{
		AdminEmail:       cfg.Notify.AdminEmail,
		AdminName:        cfg.Notify.AdminName,
		FailureThreshold: cfg.Notify.FailureThreshold,
		RatePerSec:       int(cfg.Notify.RatePerSec),
		Parallel:         cfg.Notify.Parallel,
	}, gw, log.With(logx.String("comp", "notify")))

	validator := validate.New(st, log.With(logx.String("comp", "validate")))
	generator := generate.New(st, disp, log.With(logx.String("comp", "generate")))
	mailJobs := notify.NewJobs(st, disp, log.With(logx.String("comp", "notify")))

	backupMgr := backup.NewManager(backup.Config{
		Dir:  cfg.Backup.Dir,
		Keep: cfg.Backup.Keep,
	}, st, validator, auditLog, log.With(logx.String("comp", "backup")))

	lockTTL, err := cfg.LockTTL()
	if err != nil {
		return nil, err
	}
	if lockTTL <= 0 {
		lockTTL = sched.DefaultLockTTL
	}
	locks := sched.NewLockTable(st, lockTTL, log.With(logx.String("comp", "locks")))
	reg := sched.NewRegistry(st, log.With(logx.String("comp", "sched")))
	engine := sched.NewEngine(reg, locks, auditLog, disp, log.With(logx.String("comp", "sched")))

	a := &App{
		cfgm:    cfgm,
		log:     log,
		store:   st,
		audit:   auditLog,
		disp:    disp,
		engine:  engine,
		backup:  backupMgr,
		prof: pprof.New(pprof.Config{
			Enabled: cfg.Debug.Pprof,
			Addr:    cfg.Debug.PprofAddr,
			Token:   cfg.Debug.PprofToken,
		}, log),
		entryID: map[string]cron.EntryID{},
		specs: map[string]jobSpec{
			"recurring-task-generator": {
				handler: notify.FlushAfter(generator, disp),
				cadence: sched.EveryHour(),
			},
			"integrity-check": {
				handler: notify.FlushAfter(validate.NewJob("integrity-check", validator, disp), disp),
				cadence: sched.DailyAt(8, 0),
			},
			"daily-summary": {
				handler: mailJobs.DailySummary(),
				cadence: sched.DailyAt(9, 0),
			},
			"overdue-reminders": {
				handler: mailJobs.OverdueReminders(),
				cadence: sched.DailyAt(10, 0),
			},
			"kpi-alerts": {
				handler: mailJobs.KpiAlerts(),
				cadence: sched.DailyAt(11, 0),
			},
			"weekly-report": {
				handler: mailJobs.WeeklyReport(),
				cadence: sched.WeeklyAt(time.Friday, 17, 0),
			},
			"backup": {
				handler: backup.NewJob(backupMgr),
				cadence: sched.DailyAt(2, 0),
			},
		},
	}
	return a, nil
}

// Start registers the jobs, starts the cron runner, and begins watching the
// config file for cadence changes.
func (a *App) Start(ctx context.Context) error {
	cfg := a.cfgm.Get()
	if err := a.applyJobs(ctx, cfg); err != nil {
		return err
	}
	if !cfg.Scheduler.Enabled {
		a.log.Warn("scheduler disabled; jobs only run via manual invocation")
	}

	a.cfgm.OnChange(func(next *config.Config) {
		if err := a.applyJobs(ctx, next); err != nil {
			a.log.Error("applying reloaded config failed", logx.Err(err))
		}
	})
	go func() { _ = a.cfgm.Watch(ctx) }()

	if err := a.prof.Start(); err != nil {
		return err
	}
	a.log.Info("started", logx.Int("jobs", len(a.engine.Jobs())))
	return nil
}

// RunJob fires a single job immediately. The firing goes through the normal
// engine path, so the run lock and the duplicate-window check still apply.
func (a *App) RunJob(ctx context.Context, name string) error {
	if _, err := a.registerJobs(ctx, a.cfgm.Get()); err != nil {
		return err
	}
	outcome, err := a.engine.RunNow(ctx, name)
	if err != nil {
		return err
	}
	a.log.Info("manual run finished", logx.String("job", name), logx.String("outcome", string(outcome)))
	return nil
}

// Restore overwrites the store's sheets from a snapshot. Force bypasses the
// pre-restore integrity guard.
func (a *App) Restore(ctx context.Context, ref string, force bool) error {
	return a.backup.Restore(ctx, ref, force)
}

func (a *App) Stop(ctx context.Context) error {
	a.cronMu.Lock()
	if a.cron != nil {
		stopped := a.cron.Stop()
		select {
		case <-stopped.Done():
		case <-ctx.Done():
		}
		a.cron = nil
	}
	a.cronMu.Unlock()
	a.prof.Stop(ctx)
	return a.store.Close()
}

type activeJob struct {
	name    string
	cadence sched.Cadence
}

// registerJobs resolves config overrides and registers every enabled job
// with the engine. It does not touch the cron runner.
func (a *App) registerJobs(ctx context.Context, cfg *config.Config) ([]activeJob, error) {
	overrides := map[string]config.JobConfig{}
	for _, j := range cfg.Jobs {
		name := strings.TrimSpace(j.Name)
		if _, ok := a.specs[name]; !ok {
			return nil, fmt.Errorf("%w: %s", sched.ErrUnknownJob, name)
		}
		overrides[name] = j
	}

	var enabled []activeJob
	for name, spec := range a.specs {
		cadence := spec.cadence
		if ov, ok := overrides[name]; ok {
			if ov.Disabled {
				a.log.Info("job disabled by config", logx.String("job", name))
				continue
			}
			if strings.TrimSpace(ov.Cadence) != "" {
				parsed, err := sched.ParseCadence(ov.Cadence)
				if err != nil {
					return nil, fmt.Errorf("jobs[%s]: %w", name, err)
				}
				cadence = parsed
			}
		}
		if err := a.engine.Register(ctx, name, cadence, spec.handler); err != nil {
			return nil, err
		}
		enabled = append(enabled, activeJob{name: name, cadence: cadence})
	}
	return enabled, nil
}

// applyJobs registers every enabled job with its effective cadence and
// rebuilds the cron entries. Called at startup and on config reload.
func (a *App) applyJobs(ctx context.Context, cfg *config.Config) error {
	enabled, err := a.registerJobs(ctx, cfg)
	if err != nil {
		return err
	}

	if !cfg.Scheduler.Enabled {
		return nil
	}

	loc := time.Local
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("scheduler.timezone: %w", err)
		}
		loc = l
	}

	a.cronMu.Lock()
	defer a.cronMu.Unlock()
	if a.cron != nil {
		a.cron.Stop()
	}
	a.cron = cron.New(cron.WithLocation(loc))
	a.entryID = map[string]cron.EntryID{}
	for _, job := range enabled {
		name := job.name
		id, err := a.cron.AddFunc(job.cadence.CronSpec(), func() {
			outcome, err := a.engine.OnFire(ctx, name)
			if err != nil {
				a.log.Error("trigger fire failed",
					logx.String("job", name),
					logx.String("outcome", string(outcome)),
					logx.Err(err))
			}
		})
		if err != nil {
			return fmt.Errorf("schedule %s: %w", name, err)
		}
		a.entryID[name] = id
		a.log.Debug("trigger scheduled",
			logx.String("job", name),
			logx.String("cadence", job.cadence.String()))
	}
	a.cron.Start()
	return nil
}
