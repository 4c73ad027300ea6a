package convert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/models"
)

func writeTestInput(t *testing.T, dir string) Input {
	t.Helper()
	path := filepath.Join(dir, "doc.pdf")
	content := []byte("fake pdf payload for upload progress accounting")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}
	return Input{
		ToolID:   "pdf-convert",
		Name:     "doc.pdf",
		Path:     path,
		Size:     int64(len(content)),
		Endpoint: "/pdf/convert",
	}
}

func TestRemoteExecutorSuccess(t *testing.T) {
	var gotFormat, gotQuality string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pdf/convert" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parsing multipart: %v", err)
		}
		gotFormat = r.FormValue("output_format")
		gotQuality = r.FormValue("quality")

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		file.Close()
		if header.Filename != "doc.pdf" {
			t.Errorf("filename = %s", header.Filename)
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":          "success",
			"result_url":      "/downloads/out.docx",
			"processing_time": 1.25,
			"metadata":        map[string]interface{}{"pages": 3, "output_size": 2048},
		})
	}))
	defer srv.Close()

	exec := NewRemoteExecutor(srv.URL, srv.Client())

	var progress []int
	result, err := exec.Execute(context.Background(), writeTestInput(t, t.TempDir()),
		"docx", Options{Quality: 90}, func(p int) { progress = append(progress, p) })
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if gotFormat != "docx" {
		t.Errorf("output_format field = %s", gotFormat)
	}
	if gotQuality != "90" {
		t.Errorf("quality field = %s", gotQuality)
	}
	if result.OutputRef != "/downloads/out.docx" {
		t.Errorf("OutputRef = %s", result.OutputRef)
	}
	if result.DurationSeconds != 1.25 {
		t.Errorf("DurationSeconds = %f", result.DurationSeconds)
	}
	if result.Metadata["pages"] != "3" {
		t.Errorf("metadata pages = %s", result.Metadata["pages"])
	}
	if result.OutputSize != 2048 {
		t.Errorf("OutputSize = %d", result.OutputSize)
	}

	assertMonotoneTo100(t, progress)
}

func TestRemoteExecutorErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":        "error",
			"error_message": "unsupported codec",
		})
	}))
	defer srv.Close()

	exec := NewRemoteExecutor(srv.URL, srv.Client())
	_, err := exec.Execute(context.Background(), writeTestInput(t, t.TempDir()), "docx", Options{}, nil)

	ce, ok := err.(*ConversionError)
	if !ok {
		t.Fatalf("expected *ConversionError, got %T: %v", err, err)
	}
	if ce.Code != models.CodeConversionFailed {
		t.Errorf("code = %s", ce.Code)
	}
	if ce.Message != "unsupported codec" {
		t.Errorf("message = %s", ce.Message)
	}
}

func TestRemoteExecutorTransportFailureIsNormalized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	exec := NewRemoteExecutor(srv.URL, srv.Client())
	_, err := exec.Execute(context.Background(), writeTestInput(t, t.TempDir()), "docx", Options{}, nil)

	ce, ok := err.(*ConversionError)
	if !ok {
		t.Fatalf("raw transport error escaped the executor boundary: %T", err)
	}
	if ce.Code != models.CodeConversionFailed {
		t.Errorf("code = %s", ce.Code)
	}
}

func TestRemoteExecutorPollsProcessingTask(t *testing.T) {
	var polls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pdf/convert":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status":  "processing",
				"task_id": "task-7",
			})
		case "/tasks/task-7":
			n := atomic.AddInt32(&polls, 1)
			if n < 3 {
				json.NewEncoder(w).Encode(map[string]interface{}{
					"status":              "processing",
					"progress_percentage": float64(n * 30),
				})
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status":     "success",
				"result_url": "/downloads/task-7.docx",
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	exec := NewRemoteExecutor(srv.URL, srv.Client())
	exec.SetPollInterval(5 * time.Millisecond)

	var progress []int
	result, err := exec.Execute(context.Background(), writeTestInput(t, t.TempDir()),
		"docx", Options{}, func(p int) { progress = append(progress, p) })
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.OutputRef != "/downloads/task-7.docx" {
		t.Errorf("OutputRef = %s", result.OutputRef)
	}
	if atomic.LoadInt32(&polls) < 3 {
		t.Errorf("expected at least 3 polls, got %d", polls)
	}
	assertMonotoneTo100(t, progress)
}

func TestRemoteExecutorCancellationDuringPoll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "processing",
			"task_id": "task-8",
		})
	}))
	defer srv.Close()

	exec := NewRemoteExecutor(srv.URL, srv.Client())
	exec.SetPollInterval(5 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := exec.Execute(ctx, writeTestInput(t, t.TempDir()), "docx", Options{}, nil)

	ce, ok := err.(*ConversionError)
	if !ok {
		t.Fatalf("expected *ConversionError, got %T", err)
	}
	if ce.Code != models.CodeConversionCancelled {
		t.Errorf("code = %s, want %s", ce.Code, models.CodeConversionCancelled)
	}
}
