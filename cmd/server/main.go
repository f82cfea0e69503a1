package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	persistlog "fairdice.ai/internal/persistence/log"
	"fairdice.ai/internal/protocol"
	"fairdice.ai/internal/sim/arena"
	"fairdice.ai/internal/sim/controller"
	"fairdice.ai/internal/sim/entropy"
	"fairdice.ai/internal/sim/stats"
	"fairdice.ai/internal/sim/tuning"
	"fairdice.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the roll/batch index")
		noRollLog  = flag.Bool("disable_roll_log", false, "do not write per-session roll logs")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		if tune, err = tuning.ApplyEnv(tuning.Defaults()); err != nil {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	idx, err := openRollIndex(*disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.RecordTuning(tune); err != nil {
			logger.Printf("index backend: record tuning: %v", err)
		}
	}

	rollDir := filepath.Join(*dataDir, "rolls")
	if *noRollLog {
		rollDir = ""
	}
	hub := ws.NewHub()
	reporters := multiReporter{hub}
	if idx != nil {
		reporters = append(reporters, idx)
	}

	c, err := controller.New(tune.ControllerConfig(), arena.NewWorld(tune.ArenaConfig()), entropy.Crypto{},
		controller.WithReporter(reporters))
	if err != nil {
		logger.Fatalf("controller: %v", err)
	}
	if rollDir != "" {
		rollLog := persistlog.NewRollLogger(rollDir)
		defer rollLog.Close()
		c.SetRollLogger(rollLog)
	}

	rt := controller.NewRuntime(c, tune.StepsPerTick, logger)

	ctx, cancel := signalContext()
	defer cancel()

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := rt.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("simulation stopped: %v", err)
		}
	}()
	// Sinks are closed by deferred calls; stop the loop that feeds them first.
	defer func() {
		cancel()
		<-runDone
	}()

	params := simParams(tune)
	enableAdminHTTP := envBool("DICE_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	if !enableAdminHTTP {
		logger.Printf("admin endpoints disabled (DICE_ENABLE_ADMIN_HTTP=false)")
	}
	enablePprofHTTP := envBool("DICE_ENABLE_PPROF_HTTP", false)
	if !enablePprofHTTP {
		logger.Printf("pprof endpoints disabled (DICE_ENABLE_PPROF_HTTP=false)")
	}
	mux := newMux(serverDeps{
		rt:     rt,
		hub:    hub,
		idx:    idx,
		params: params,
		admin:  enableAdminHTTP,
		pprof:  enablePprofHTTP,
		logger: logger,
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s tick_rate_hz=%d steps_per_tick=%d max_rolls=%d", *addr, tune.TickRateHz, tune.StepsPerTick, tune.MaxRolls)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func simParams(tune tuning.Tuning) protocol.SimParams {
	return protocol.SimParams{
		TickRateHz:       tune.TickRateHz,
		StepsPerTick:     tune.StepsPerTick,
		MaxRolls:         tune.MaxRolls,
		RestThreshold:    tune.Rest.Threshold,
		DebounceMs:       tune.Rest.DebounceMs,
		DegreesOfFreedom: stats.JointDegreesOfFreedom,
		CriticalValue:    stats.JointCriticalValue,
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

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
