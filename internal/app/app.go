package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kk2215/okan-ai/internal/bot"
	"github.com/kk2215/okan-ai/internal/config"
	"github.com/kk2215/okan-ai/internal/geo"
	"github.com/kk2215/okan-ai/internal/line"
	"github.com/kk2215/okan-ai/internal/scheduler"
	"github.com/kk2215/okan-ai/internal/store"
	"github.com/kk2215/okan-ai/internal/transit"
	"github.com/kk2215/okan-ai/internal/weather"
)

// App wires the webhook server, the state machine, and the scheduler.
type App struct {
	cfg     config.Config
	log     *zap.Logger
	gateway *line.Gateway
	httpSrv *http.Server
	repo    store.Repo
	router  *bot.Router
	sched   *scheduler.Scheduler
}

// New builds the application from config.
func New(cfg config.Config, log *zap.Logger) (*App, error) {
	a := &App{
		cfg:     cfg,
		log:     log,
		gateway: line.New(cfg.ChannelToken, ""),
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	r.HandleFunc("/webhook", a.handleWebhook).Methods(http.MethodPost)

	a.httpSrv = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return a, nil
}

// stationSource adapts the transit client to the location resolver's
// station-name fallback.
type stationSource struct{ c *transit.Client }

func (s stationSource) FindStations(ctx context.Context, name string) ([]geo.Place, error) {
	stops, err := s.c.FindStops(ctx, name)
	if err != nil {
		return nil, err
	}
	places := make([]geo.Place, 0, len(stops))
	for _, st := range stops {
		places = append(places, geo.Place{
			Name:       st.Name,
			Prefecture: st.Prefecture,
			Lat:        st.Lat,
			Lon:        st.Lon,
		})
	}
	return places, nil
}

// Run opens the store, starts the HTTP server and the scheduler, and blocks
// until a shutdown signal.
func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting okan-ai",
		zap.String("http", a.cfg.HTTPAddr),
		zap.String("digest_at", a.cfg.DigestTime),
	)

	repo, err := store.OpenSQLite(ctx, a.cfg.DBPath)
	if err != nil {
		return err
	}
	a.repo = repo
	a.log.Info("sqlite ready", zap.String("path", a.cfg.DBPath))

	stations := transit.NewClient("")
	resolver, err := geo.NewResolver(stationSource{c: stations})
	if err != nil {
		return err
	}

	machine := bot.NewMachine(resolver, stations)
	machine.SplitRouteSetup = a.cfg.SplitRouteSetup
	a.router = bot.NewRouter(a.repo, a.gateway, machine, a.log)

	var status scheduler.LineStatusSource
	if a.cfg.TrainStatusURL != "" {
		status = transit.NewStatusClient(a.cfg.TrainStatusURL)
	}
	a.sched = scheduler.New(
		a.repo, a.log, a.gateway,
		weather.NewClient(a.cfg.WeatherAPIKey, ""),
		status,
		a.cfg.DigestTime,
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go a.sched.Run(ctx)

	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	a.log.Info("shutdown signal received")

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = a.httpSrv.Shutdown(shCtx)
	cancel()
	if err != nil {
		a.log.Warn("http server shutdown error", zap.Error(err))
	}
	if a.repo != nil {
		_ = a.repo.Close()
	}
	return nil
}

// handleWebhook verifies and dispatches one event batch. Per-event failures
// are tolerated; a panic anywhere in batch handling becomes a 500 so the
// platform redelivers.
func (a *App) handleWebhook(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			a.log.Error("webhook batch panicked", zap.Any("panic", rec), zap.Stack("stack"))
			w.WriteHeader(http.StatusInternalServerError)
		}
	}()

	events, err := line.ParseRequest(a.cfg.ChannelSecret, r)
	if err != nil {
		if errors.Is(err, line.ErrBadSignature) {
			a.log.Warn("webhook signature rejected")
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		a.log.Error("webhook parse failed", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	a.router.HandleEvents(r.Context(), events)
	w.WriteHeader(http.StatusOK)
}
