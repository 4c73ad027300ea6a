// handlers_batch_test.go - Tests for batch handlers
package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/models"
)

func startTestBatch(t *testing.T, td *testDeps, fileNames []string) *models.BatchJob {
	t.Helper()

	req := multipartRequest(t, "/api/batch/convert/image-convert", "files",
		fileNames, map[string]string{"output_format": "jpg"})
	rec := httptest.NewRecorder()
	c := td.echo.NewContext(req, rec)
	c.SetParamNames("toolId")
	c.SetParamValues("image-convert")

	if err := td.handlers.Batch.HandleStartBatch(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", rec.Code)
	}

	var job models.BatchJob
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("failed to unmarshal batch job: %v", err)
	}
	if job.ID == "" {
		t.Fatal("expected non-empty batch_id")
	}
	return &job
}

func pollBatch(t *testing.T, td *testDeps, id string, accept string) ([]byte, string) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		req := httptest.NewRequest(http.MethodGet, "/api/batch/status/"+id, nil)
		if accept != "" {
			req.Header.Set(echo.HeaderAccept, accept)
		}
		rec := httptest.NewRecorder()
		c := td.echo.NewContext(req, rec)
		c.SetParamNames("batchId")
		c.SetParamValues(id)

		if err := td.handlers.Batch.HandleBatchStatus(c); err != nil {
			t.Fatalf("status poll failed: %v", err)
		}

		var job models.BatchJob
		if accept == msgpackContentType {
			if err := msgpack.Unmarshal(rec.Body.Bytes(), &job); err != nil {
				t.Fatalf("failed to decode msgpack status: %v", err)
			}
		} else {
			if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
				t.Fatalf("failed to decode json status: %v", err)
			}
		}
		if job.Status == models.BatchStatusComplete || job.Status == models.BatchStatusError {
			return rec.Body.Bytes(), rec.Header().Get(echo.HeaderContentType)
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("batch did not finish in time")
	return nil, ""
}

func TestStartBatch_Validation(t *testing.T) {
	tests := []struct {
		name       string
		toolID     string
		fileNames  []string
		fields     map[string]string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unknown tool",
			toolID:     "does-not-exist",
			fileNames:  []string{"a.png"},
			fields:     map[string]string{"output_format": "jpg"},
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "no files",
			toolID:     "image-convert",
			fileNames:  nil,
			fields:     map[string]string{"output_format": "jpg"},
			wantStatus: http.StatusBadRequest,
			wantCode:   models.CodeNoFile,
		},
		{
			name:       "missing output format",
			toolID:     "image-convert",
			fileNames:  []string{"a.png"},
			fields:     map[string]string{},
			wantStatus: http.StatusBadRequest,
			wantCode:   models.CodeNoFormat,
		},
		{
			name:       "one invalid file rejects the whole batch",
			toolID:     "image-convert",
			fileNames:  []string{"a.png", "movie.avi"},
			fields:     map[string]string{"output_format": "jpg"},
			wantStatus: http.StatusBadRequest,
			wantCode:   models.CodeInvalidFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			td := newTestDeps(t)

			req := multipartRequest(t, "/api/batch/convert/"+tt.toolID, "files", tt.fileNames, tt.fields)
			rec := httptest.NewRecorder()
			c := td.echo.NewContext(req, rec)
			c.SetParamNames("toolId")
			c.SetParamValues(tt.toolID)

			err := td.handlers.Batch.HandleStartBatch(c)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			apiErr, ok := err.(*APIError)
			if !ok {
				t.Fatalf("expected APIError, got %T", err)
			}
			if apiErr.Status != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, apiErr.Status)
			}
			if apiErr.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, apiErr.Code)
			}
		})
	}
}

func TestBatchLifecycleWithPartialFailure(t *testing.T) {
	td := newTestDeps(t)

	job := startTestBatch(t, td, []string{"one.png", "bad.png", "three.png"})
	body, _ := pollBatch(t, td, job.ID, "")

	var done models.BatchJob
	json.Unmarshal(body, &done)

	if done.Status != models.BatchStatusComplete {
		t.Fatalf("expected complete, got %s", done.Status)
	}
	if done.Completed != 2 || done.Failed != 1 {
		t.Errorf("expected 2 completed / 1 failed, got %d / %d", done.Completed, done.Failed)
	}
	if done.TotalFiles != 3 {
		t.Errorf("expected total_files 3, got %d", done.TotalFiles)
	}

	// Finished batch with successes serves a zip.
	dlReq := httptest.NewRequest(http.MethodGet, "/api/batch/"+job.ID+"/download", nil)
	dlRec := httptest.NewRecorder()
	dc := td.echo.NewContext(dlReq, dlRec)
	dc.SetParamNames("batchId")
	dc.SetParamValues(job.ID)

	if err := td.handlers.Batch.HandleBatchDownload(dc); err != nil {
		t.Fatalf("download failed: %v", err)
	}
	if dlRec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", dlRec.Code)
	}
}

// The 202 reply ends the request context; processing must keep running
// on its own context, so a slow batch still completes after the handler
// returns.
func TestBatchOutlivesRequestContext(t *testing.T) {
	td := newTestDeps(t)
	td.exec.delay = 200 * time.Millisecond
	srv := startTestServer(t, td)

	body, contentType := multipartBody(t, "files", []string{"a.png", "b.png"},
		map[string]string{"output_format": "jpg"})
	resp, err := http.Post(srv.URL+"/api/batch/convert/image-convert", contentType, body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", resp.StatusCode)
	}

	var job models.BatchJob
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		t.Fatalf("decoding job: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		statusResp, err := http.Get(srv.URL + "/api/batch/status/" + job.ID)
		if err != nil {
			t.Fatalf("status poll failed: %v", err)
		}
		var snap models.BatchJob
		decodeErr := json.NewDecoder(statusResp.Body).Decode(&snap)
		statusResp.Body.Close()
		if decodeErr != nil {
			t.Fatalf("decoding status: %v", decodeErr)
		}

		if snap.Status == models.BatchStatusComplete || snap.Status == models.BatchStatusError {
			if snap.Status != models.BatchStatusComplete {
				t.Fatalf("expected complete, got %s", snap.Status)
			}
			if snap.Completed != 2 || snap.Failed != 0 {
				t.Fatalf("expected 2 completed / 0 failed, got %d / %d", snap.Completed, snap.Failed)
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("batch did not finish in time")
}

func TestBatchStatusMsgpackVariant(t *testing.T) {
	td := newTestDeps(t)

	job := startTestBatch(t, td, []string{"a.png"})
	body, contentType := pollBatch(t, td, job.ID, msgpackContentType)

	if contentType != msgpackContentType {
		t.Errorf("expected content type %s, got %s", msgpackContentType, contentType)
	}

	var done models.BatchJob
	if err := msgpack.Unmarshal(body, &done); err != nil {
		t.Fatalf("failed to decode msgpack: %v", err)
	}
	if done.ID != job.ID {
		t.Errorf("expected batch id %s, got %s", job.ID, done.ID)
	}
	if done.Completed != 1 {
		t.Errorf("expected 1 completed, got %d", done.Completed)
	}
}

func TestBatchStatusUnknownBatch(t *testing.T) {
	td := newTestDeps(t)

	req := httptest.NewRequest(http.MethodGet, "/api/batch/status/nope", nil)
	rec := httptest.NewRecorder()
	c := td.echo.NewContext(req, rec)
	c.SetParamNames("batchId")
	c.SetParamValues("nope")

	err := td.handlers.Batch.HandleBatchStatus(c)
	apiErr, ok := err.(*APIError)
	if !ok || apiErr.Status != http.StatusNotFound {
		t.Fatalf("expected 404 APIError, got %v", err)
	}
}
