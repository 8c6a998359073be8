package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"housevault/internal/metrics"
	persistlog "housevault/internal/persistence/log"
	"housevault/internal/sim/game"
	"housevault/internal/sim/occupancy"
	"housevault/internal/sim/tuning"
	"housevault/internal/transport/httpapi"
	"housevault/internal/transport/ws"
)

func main() {
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Printf("load .env: %v", err)
	}

	var (
		addr       = flag.String("addr", envString("HV_ADDR", ":8080"), "http listen address")
		dataDir    = flag.String("data", envString("HV_DATA_DIR", "./data"), "runtime data directory (sqlite state, journals)")
		tuningPath = flag.String("tuning", envString("HV_TUNING", "./configs/tuning.yaml"), "path to tuning.yaml")
	)
	flag.Parse()

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", *tuningPath)
		tune = tuning.Defaults()
	}
	live := tuning.NewLive(tune)

	st, err := openRuntimeStore(*dataDir, logger)
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	defer st.Close()

	journalDir := envString("HV_JOURNAL_DIR", filepath.Join(*dataDir, "journal"))
	eventLog := persistlog.NewEventLogger(journalDir)
	auditLog := persistlog.NewAuditLogger(journalDir)
	defer eventLog.Close()
	defer auditLog.Close()

	reg := metrics.NewRegistry("housevault_")
	rec := metrics.Multi{reg, metrics.NewJournal(eventLog, func(err error) {
		logger.Printf("journal event: %v", err)
	})}

	svc := game.New(game.Options{
		Store:   st,
		Tuning:  live,
		Metrics: rec,
		Audit:   auditLog,
		Logger:  logger,
	})

	ctx, cancel := signalContext()
	defer cancel()

	if err := svc.RefreshGauges(ctx); err != nil {
		logger.Printf("refresh gauges: %v", err)
	}
	if _, _, err := svc.EnsureRegistrationKey(ctx); err != nil {
		logger.Printf("registration key: %v", err)
	}

	sw := &occupancy.Sweeper{
		Manager:  svc.Occupancy(),
		Interval: time.Duration(envInt("HV_SWEEP_INTERVAL_SECONDS", 0)) * time.Second,
		Logger:   logger,
		After: func(ctx context.Context) {
			if err := svc.RefreshGauges(ctx); err != nil {
				logger.Printf("refresh gauges: %v", err)
			}
		},
	}
	go sw.Run(ctx)
	if !tune.Sweeper.Enabled {
		logger.Printf("eviction sweeper paused (sweeper.enabled=false)")
	}

	adminKey := ""
	if envBool("HV_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		adminKey = envString("ADMINISTRATION_KEY", "")
	} else {
		logger.Printf("admin endpoints disabled (HV_ENABLE_ADMIN_HTTP=false)")
	}

	mux := http.NewServeMux()
	httpapi.NewServer(svc, httpapi.Config{AdminKey: adminKey, Registry: reg, Logger: logger}).Register(mux)
	mux.HandleFunc("/v1/ws", ws.NewServer(svc, logger).Handler())
	if envBool("HV_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
