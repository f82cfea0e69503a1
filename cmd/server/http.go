package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"strconv"
	"time"

	"fairdice.ai/internal/persistence/indexdb"
	"fairdice.ai/internal/protocol"
	"fairdice.ai/internal/sim/controller"
	"fairdice.ai/internal/transport/ws"
)

const reportTimeout = 2 * time.Second

type serverDeps struct {
	rt     *controller.Runtime
	hub    *ws.Hub
	idx    *indexdb.SQLiteIndex // nil when indexing is disabled
	params protocol.SimParams
	admin  bool
	pprof  bool
	logger *log.Logger
}

func newMux(d serverDeps) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rep, ok := currentReport(rw, r, d.rt)
		if !ok {
			return
		}
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, rep, d.hub.Clients(), d.idx)
	})

	if d.admin {
		// Local-only admin endpoints; read-only views of the simulation.
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rep, ok := currentReport(rw, r, d.rt)
			if !ok {
				return
			}
			resp := struct {
				Report  controller.Report  `json:"report"`
				Params  protocol.SimParams `json:"params"`
				Clients int                `json:"clients"`
			}{
				Report:  rep,
				Params:  d.params,
				Clients: d.hub.Clients(),
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(resp)
		})
		mux.HandleFunc("/admin/v1/rolls", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			if d.idx == nil {
				http.Error(rw, "index disabled", http.StatusNotFound)
				return
			}
			limit := queryInt(r, "limit", 100)
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			if err := d.idx.Sync(ctx); err != nil {
				http.Error(rw, err.Error(), http.StatusServiceUnavailable)
				return
			}
			rows, err := d.idx.RecentRolls(ctx, r.URL.Query().Get("session_id"), limit)
			if err != nil {
				http.Error(rw, err.Error(), http.StatusInternalServerError)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(map[string]any{"rolls": rows})
		})
		mux.HandleFunc("/admin/v1/batches", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			if d.idx == nil {
				http.Error(rw, "index disabled", http.StatusNotFound)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			if err := d.idx.Sync(ctx); err != nil {
				http.Error(rw, err.Error(), http.StatusServiceUnavailable)
				return
			}
			rows, err := d.idx.Batches(ctx, queryInt(r, "limit", 20))
			if err != nil {
				http.Error(rw, err.Error(), http.StatusInternalServerError)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(map[string]any{"batches": rows})
		})
	}
	if d.pprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(d.rt, d.hub, d.params, d.logger).Handler())
	return mux
}

// currentReport asks the simulation loop for a report, answering 503 when the
// loop does not respond in time.
func currentReport(rw http.ResponseWriter, r *http.Request, rt *controller.Runtime) (controller.Report, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), reportTimeout)
	defer cancel()
	rep, err := rt.Report(ctx)
	if err != nil {
		http.Error(rw, "simulation unavailable", http.StatusServiceUnavailable)
		return controller.Report{}, false
	}
	return rep, true
}

func queryInt(r *http.Request, key string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeMetrics(rw http.ResponseWriter, rep controller.Report, clients int, idx *indexdb.SQLiteIndex) {
	// Minimal Prometheus exposition format.
	fmt.Fprintf(rw, "# HELP fairdice_tick Current simulation tick.\n")
	fmt.Fprintf(rw, "# TYPE fairdice_tick gauge\n")
	fmt.Fprintf(rw, "fairdice_tick %d\n", rep.Tick)

	running := 0
	if rep.Running {
		running = 1
	}
	fmt.Fprintf(rw, "# HELP fairdice_batch_running Whether a batch is in progress.\n")
	fmt.Fprintf(rw, "# TYPE fairdice_batch_running gauge\n")
	fmt.Fprintf(rw, "fairdice_batch_running %d\n", running)

	fmt.Fprintf(rw, "# HELP fairdice_batch_rolls Rolls in the current session.\n")
	fmt.Fprintf(rw, "# TYPE fairdice_batch_rolls gauge\n")
	fmt.Fprintf(rw, "fairdice_batch_rolls{kind=%q} %d\n", "target", rep.Target)
	fmt.Fprintf(rw, "fairdice_batch_rolls{kind=%q} %d\n", "completed", rep.Completed)

	fmt.Fprintf(rw, "# HELP fairdice_chi_squared Chi-squared statistic of the current session (absent when undefined).\n")
	fmt.Fprintf(rw, "# TYPE fairdice_chi_squared gauge\n")
	for _, f := range []struct {
		scope string
		v     float64
		ok    bool
	}{
		{"joint", rep.Fairness.Joint.ChiSquared, rep.Fairness.Joint.Defined()},
		{"die_a", rep.Fairness.DieA.ChiSquared, rep.Fairness.DieA.Defined()},
		{"die_b", rep.Fairness.DieB.ChiSquared, rep.Fairness.DieB.Defined()},
	} {
		if f.ok {
			fmt.Fprintf(rw, "fairdice_chi_squared{scope=%q} %.6f\n", f.scope, f.v)
		}
	}

	fmt.Fprintf(rw, "# HELP fairdice_ws_clients Current number of connected clients.\n")
	fmt.Fprintf(rw, "# TYPE fairdice_ws_clients gauge\n")
	fmt.Fprintf(rw, "fairdice_ws_clients %d\n", clients)

	if idx == nil {
		return
	}
	s := idx.Stats()
	fmt.Fprintf(rw, "# HELP fairdice_index_queue_depth Index writer queue depth.\n")
	fmt.Fprintf(rw, "# TYPE fairdice_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "fairdice_index_queue_depth %d\n", s.QueueDepth)

	fmt.Fprintf(rw, "# HELP fairdice_index_dropped_total Index writes dropped because the queue was full.\n")
	fmt.Fprintf(rw, "# TYPE fairdice_index_dropped_total counter\n")
	fmt.Fprintf(rw, "fairdice_index_dropped_total{kind=%q} %d\n", "roll", s.DropRollTotal)
	fmt.Fprintf(rw, "fairdice_index_dropped_total{kind=%q} %d\n", "batch", s.DropBatchTotal)
	fmt.Fprintf(rw, "fairdice_index_dropped_total{kind=%q} %d\n", "launch_failure", s.DropFailureTotal)
}
