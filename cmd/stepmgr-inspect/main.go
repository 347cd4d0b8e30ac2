// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Command stepmgr-inspect serves a read-only HTTP view over a step
// manager process's jobs: pack_info_response snapshots as JSON,
// plus the lifecycle event WebSocket feed. It carries no control
// path back into the core — every route here only reads.
//
// Grounded on the mux.Router wiring, flag-based port configuration,
// and "handle" registration indirection of the debug web server in
// the pack (a whitelisted static-content server), adapted from
// serving trace files to serving in-memory job/step snapshots.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/jontk/slurm-stepmgr/internal/infopack"
	"github.com/jontk/slurm-stepmgr/internal/job"
	"github.com/jontk/slurm-stepmgr/internal/jobregistry"
	"github.com/jontk/slurm-stepmgr/pkg/logging"
	"github.com/jontk/slurm-stepmgr/pkg/streaming"
)

var (
	port = flag.Int("port", 7878, "The inspector's HTTP port.")
)

const err404 = "no such job: %d"

// handle registers path on r, mirroring the pack's indirection so
// route registration stays swappable in tests.
var handle = func(r *mux.Router, path string, handler http.HandlerFunc) {
	r.HandleFunc(path, handler)
}

type inspector struct {
	registry *jobregistry.Registry
	logger   logging.Logger
}

func (in *inspector) handleListJobs(w http.ResponseWriter, req *http.Request) {
	sendJSON(w, in.registry.List())
}

func (in *inspector) handleJobInfo(w http.ResponseWriter, req *http.Request) {
	jobID, ok := parseJobID(mux.Vars(req)["jobID"])
	if !ok {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}
	j, found := in.registry.Get(jobID)
	if !found {
		in.logger.Warn("inspect: job not found", "job_id", jobID)
		http.Error(w, fmt.Sprintf(err404, jobID), http.StatusNotFound)
		return
	}
	resp := infopack.Pack(j, job.NoVal, req.URL.Query().Get("partition"), time.Now())
	sendJSON(w, resp)
}

func (in *inspector) handleStepInfo(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	jobID, ok := parseJobID(vars["jobID"])
	if !ok {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}
	stepID, ok := parseJobID(vars["stepID"])
	if !ok {
		http.Error(w, "invalid step id", http.StatusBadRequest)
		return
	}
	j, found := in.registry.Get(jobID)
	if !found {
		http.Error(w, fmt.Sprintf(err404, jobID), http.StatusNotFound)
		return
	}
	resp := infopack.Pack(j, stepID, req.URL.Query().Get("partition"), time.Now())
	if resp.Count == 0 {
		http.Error(w, "no such step", http.StatusNotFound)
		return
	}
	sendJSON(w, resp.Steps[0])
}

func handleHealthz(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok"))
}

func parseJobID(raw string) (uint32, bool) {
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}

func sendJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func registerRoutes(r *mux.Router, in *inspector, events *streaming.Server) {
	handle(r, "/healthz", handleHealthz)
	handle(r, "/jobs", in.handleListJobs)
	handle(r, "/jobs/{jobID}", in.handleJobInfo)
	handle(r, "/jobs/{jobID}/steps/{stepID}", in.handleStepInfo)
	r.HandleFunc("/events/ws", events.HandleWebSocket)
}

var startServer = func(r *mux.Router) error {
	return http.ListenAndServe(fmt.Sprintf(":%d", *port), r)
}

func main() {
	flag.Parse()

	logger := logging.NewLogger(logging.DefaultConfig())
	registry := jobregistry.New()
	publisher := streaming.NewPublisher()

	in := &inspector{registry: registry, logger: logger}
	events := streaming.NewServer(publisher)

	r := mux.NewRouter()
	registerRoutes(r, in, events)

	logger.Info("stepmgr-inspect listening", "port", *port)
	if err := startServer(r); err != nil {
		logger.Error("stepmgr-inspect server exited", "error", err)
	}
}
