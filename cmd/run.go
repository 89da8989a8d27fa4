package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/example/visa-rescheduler/internal/ais"
	"github.com/example/visa-rescheduler/internal/attempts"
	"github.com/example/visa-rescheduler/internal/auth"
	"github.com/example/visa-rescheduler/internal/browser"
	"github.com/example/visa-rescheduler/internal/clock"
	"github.com/example/visa-rescheduler/internal/config"
	"github.com/example/visa-rescheduler/internal/embassy"
	"github.com/example/visa-rescheduler/internal/httpsession"
	"github.com/example/visa-rescheduler/internal/journal"
	"github.com/example/visa-rescheduler/internal/logx"
	"github.com/example/visa-rescheduler/internal/notify"
	"github.com/example/visa-rescheduler/internal/scheduler"
	"github.com/example/visa-rescheduler/internal/web"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Log in and poll until an appointment inside the target window is booked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return run(ctx, cfg)
		},
	}
}

func run(ctx context.Context, cfg config.Config) error {
	base, closeLog, err := logx.New(logx.Config{Level: cfg.Log.Level, Console: cfg.Log.Console, File: cfg.Log.File})
	if err != nil {
		return err
	}
	defer closeLog.Close()

	runID := uuid.NewString()
	log := base.With().Str("run", runID).Logger()

	emb, err := embassy.Builtin().Lookup(cfg.Embassy)
	if err != nil {
		return err
	}
	window, err := cfg.Window()
	if err != nil {
		return err
	}
	fac := emb.Facilities()

	jr, err := journal.Open(cfg.Log.JournalDir)
	if err != nil {
		return err
	}
	defer jr.Close()

	channels, err := notify.Channels(cfg.Notify, cfg.Account.Username)
	if err != nil {
		return err
	}
	notifier := notify.New(log, cfg.Notify.RatePerMinute, channels...)

	tr, closeTransport, err := openTransport(ctx, cfg.Transport, cfg.Timing, log)
	if err != nil {
		return err
	}
	defer closeTransport()

	store, err := attempts.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	ep := ais.Endpoints{BaseURL: cfg.Transport.BaseURL, Locale: emb.Locale, ScheduleID: cfg.Account.ScheduleID}
	sleeper := clock.Real{}

	client := &ais.Client{
		Endpoints:  ep,
		Attempts:   cfg.Timing.QueryAttempts,
		RetryDelay: cfg.Timing.StepDelay,
		Limiter:    rate.NewLimiter(rate.Limit(cfg.Timing.RequestsPerSecond), 1),
		Sleeper:    sleeper,
		Log:        log,
	}
	status := scheduler.NewStatus(runID)
	deps := scheduler.Deps{
		Auth: &ais.Authenticator{
			Transport:   tr,
			Endpoints:   ep,
			Credentials: ais.Credentials{Username: cfg.Account.Username, Password: cfg.Account.Password},
			Facility:    fac,
			Attempts:    cfg.Timing.LoginAttempts,
			StepDelay:   cfg.Timing.StepDelay,
			MarkerWait:  cfg.Timing.LoginWait,
			Notifier:    notifier,
			Sleeper:     sleeper,
			Log:         log,
		},
		Query: client,
		Linker: &scheduler.Linker{
			Query:       client,
			Facility:    fac,
			DesiredTime: cfg.Target.DesiredTime,
			Notifier:    notifier,
			Log:         log,
		},
		Submit: &ais.Submitter{
			Transport:      tr,
			Endpoints:      ep,
			Facility:       fac,
			Window:         window,
			SuccessMarkers: cfg.Markers.Success,
			Journal:        jr,
			Notifier:       notifier,
			Log:            log,
		},
		Notifier: notifier,
		Journal:  jr,
		Status:   status,
		Sleeper:  sleeper,
		Log:      log,
	}
	if store != nil {
		deps.Recorder = store
	}

	if cfg.Web.Addr != "" {
		hashKey, blockKey, err := cfg.CookieKeys()
		if err != nil {
			return err
		}
		srv := &web.Server{
			Auth:     auth.NewStore(cfg.Web.OperatorHash, hashKey, blockKey),
			Status:   status,
			Attempts: store,
			Window:   window.String(),
			Log:      log.With().Str("comp", "web").Logger(),
		}
		webCtx, stopWeb := context.WithCancel(ctx)
		defer stopWeb()
		go func() {
			if err := web.Start(webCtx, cfg.Web.Addr, srv.Routes(), log); err != nil {
				log.Error().Err(err).Msg("status page stopped")
			}
		}()
	}

	log.Info().
		Str("embassy", emb.Code).
		Stringer("window", window).
		Str("driver", cfg.Transport.Driver).
		Strs("notify", notifier.Channels()).
		Msg("starting")

	loop := scheduler.New(scheduler.Config{
		RunID:        runID,
		Facility:     fac,
		Window:       window,
		RetryMin:     cfg.Timing.RetryMin,
		RetryMax:     cfg.Timing.RetryMax,
		WorkLimit:    cfg.Timing.WorkLimit,
		WorkCooldown: cfg.Timing.WorkCooldown,
		BanCooldown:  cfg.Timing.BanCooldown,
	}, deps)

	if err := loop.Run(ctx); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			log.Info().Msg("interrupted")
			return nil
		}
		return err
	}
	log.Info().Msg("rescheduled")
	return nil
}

func openTransport(ctx context.Context, tc config.TransportConfig, timing config.TimingConfig, log zerolog.Logger) (ais.Transport, func(), error) {
	switch tc.Driver {
	case "browser":
		b, err := browser.Open(ctx, browser.Options{
			BaseURL:    tc.BaseURL,
			ControlURL: tc.ControlURL,
			Headless:   tc.Headless,
			UserAgent:  tc.UserAgent,
			Timeout:    timing.RequestTimeout,
			Log:        log,
		})
		if err != nil {
			return nil, nil, err
		}
		return b, func() { _ = b.Close() }, nil
	case "http":
		s, err := httpsession.New(httpsession.Options{
			BaseURL:   tc.BaseURL,
			UserAgent: tc.UserAgent,
			Timeout:   timing.RequestTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown transport driver %q", tc.Driver)
	}
}
