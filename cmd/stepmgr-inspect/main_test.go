// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jontk/slurm-stepmgr/internal/job"
	"github.com/jontk/slurm-stepmgr/internal/jobregistry"
	"github.com/jontk/slurm-stepmgr/pkg/logging"
	"github.com/jontk/slurm-stepmgr/pkg/streaming"
)

func newTestRouter(reg *jobregistry.Registry) *mux.Router {
	in := &inspector{registry: reg, logger: logging.NoOpLogger{}}
	events := streaming.NewServer(streaming.NewPublisher())
	r := mux.NewRouter()
	registerRoutes(r, in, events)
	return r
}

func TestHandleListJobsReturnsRegisteredIDs(t *testing.T) {
	reg := jobregistry.New()
	reg.Put(&job.Job{JobID: 2})
	reg.Put(&job.Job{JobID: 1})

	req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
	rec := httptest.NewRecorder()
	newTestRouter(reg).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var ids []uint32
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ids))
	assert.Equal(t, []uint32{1, 2}, ids)
}

func TestHandleJobInfoReturns404ForUnknownJob(t *testing.T) {
	reg := jobregistry.New()
	req := httptest.NewRequest(http.MethodGet, "/jobs/42", nil)
	rec := httptest.NewRecorder()
	newTestRouter(reg).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleJobInfoReturnsPackedSteps(t *testing.T) {
	reg := jobregistry.New()
	reg.Put(&job.Job{JobID: 5, Steps: []*job.Step{{JobID: 5, StepID: 1}, {JobID: 5, StepID: 2}}})

	req := httptest.NewRequest(http.MethodGet, "/jobs/5", nil)
	rec := httptest.NewRecorder()
	newTestRouter(reg).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Count int
		Steps []struct{ StepID uint32 }
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
}

func TestHandleStepInfoReturnsSingleStep(t *testing.T) {
	reg := jobregistry.New()
	reg.Put(&job.Job{JobID: 5, Steps: []*job.Step{{JobID: 5, StepID: 1}, {JobID: 5, StepID: 2}}})

	req := httptest.NewRequest(http.MethodGet, "/jobs/5/steps/2", nil)
	rec := httptest.NewRecorder()
	newTestRouter(reg).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct{ StepID uint32 }
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 2, body.StepID)
}

func TestHandleStepInfoReturns404ForUnknownStep(t *testing.T) {
	reg := jobregistry.New()
	reg.Put(&job.Job{JobID: 5, Steps: []*job.Step{{JobID: 5, StepID: 1}}})

	req := httptest.NewRequest(http.MethodGet, "/jobs/5/steps/99", nil)
	rec := httptest.NewRecorder()
	newTestRouter(reg).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleHealthz(t *testing.T) {
	reg := jobregistry.New()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	newTestRouter(reg).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
