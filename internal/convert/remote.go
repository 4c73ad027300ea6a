package convert

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/models"
)

// conversionResponse is the wire shape of the remote conversion endpoints.
type conversionResponse struct {
	Status         string                 `json:"status"` // "success" | "error" | "processing"
	ResultURL      string                 `json:"result_url,omitempty"`
	TaskID         string                 `json:"task_id,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	ProcessingTime float64                `json:"processing_time,omitempty"`
	Progress       float64                `json:"progress_percentage,omitempty"`
}

// RemoteExecutor delegates conversions to a REST endpoint: a multipart
// POST carrying the file plus string-encoded option fields. Upload
// progress comes from transfer byte counts; "processing" replies are
// polled by task id until terminal.
type RemoteExecutor struct {
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
}

// NewRemoteExecutor creates a remote executor against baseURL.
func NewRemoteExecutor(baseURL string, client *http.Client) *RemoteExecutor {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	return &RemoteExecutor{
		baseURL:      baseURL,
		client:       client,
		pollInterval: time.Second,
	}
}

// SetPollInterval overrides the task polling interval. Used by tests.
func (e *RemoteExecutor) SetPollInterval(d time.Duration) {
	e.pollInterval = d
}

// Upload accounts for 0-90; the remaining 10 covers server-side work.
const uploadProgressCeiling = 90

// Execute uploads the input and interprets the conversion response.
func (e *RemoteExecutor) Execute(ctx context.Context, in Input, targetFormat string, opts Options, onProgress ProgressFunc) (*models.ConversionResult, error) {
	start := time.Now()

	resp, err := e.upload(ctx, in, targetFormat, opts, onProgress)
	if err != nil {
		return nil, Normalize(err)
	}

	// Async endpoints answer "processing" with a task id to poll.
	if resp.Status == "processing" {
		resp, err = e.pollTask(ctx, resp.TaskID, onProgress)
		if err != nil {
			return nil, Normalize(err)
		}
	}

	if resp.Status != "success" {
		msg := resp.ErrorMessage
		if msg == "" {
			msg = fmt.Sprintf("conversion endpoint returned status %q", resp.Status)
		}
		return nil, &ConversionError{
			Code:    models.CodeConversionFailed,
			Message: msg,
		}
	}

	result := &models.ConversionResult{
		OutputRef:       resp.ResultURL,
		OutputFormat:    targetFormat,
		DurationSeconds: resp.ProcessingTime,
		Metadata:        stringifyMetadata(resp.Metadata),
	}
	if result.DurationSeconds == 0 {
		result.DurationSeconds = time.Since(start).Seconds()
	}
	if sizeStr, ok := result.Metadata["output_size"]; ok {
		if size, err := strconv.ParseInt(sizeStr, 10, 64); err == nil {
			result.OutputSize = size
		}
	}

	notify(onProgress, 100)
	return result, nil
}

func (e *RemoteExecutor) upload(ctx context.Context, in Input, targetFormat string, opts Options, onProgress ProgressFunc) (*conversionResponse, error) {
	f, err := os.Open(in.Path)
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeMultipart(mw, f, in, targetFormat, opts, onProgress)
		mw.Close()
		pw.CloseWithError(err)
	}()

	endpoint := in.Endpoint
	if endpoint == "" {
		endpoint = "/convert/" + in.ToolID
	}
	url := e.baseURL + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	httpResp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("posting to conversion endpoint: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 500 {
		return nil, fmt.Errorf("conversion endpoint returned %d", httpResp.StatusCode)
	}

	var resp conversionResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding conversion response: %w", err)
	}
	return &resp, nil
}

func writeMultipart(mw *multipart.Writer, f *os.File, in Input, targetFormat string, opts Options, onProgress ProgressFunc) error {
	fields := map[string]string{
		"output_format": targetFormat,
	}
	if opts.Quality > 0 {
		fields["quality"] = strconv.Itoa(opts.Quality)
	}
	for k, v := range opts.Extra {
		fields[k] = v
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("writing field %s: %w", k, err)
		}
	}

	part, err := mw.CreateFormFile("file", in.Name)
	if err != nil {
		return fmt.Errorf("creating form file: %w", err)
	}

	counter := &progressWriter{total: in.Size, onProgress: onProgress}
	if _, err := io.Copy(io.MultiWriter(part, counter), f); err != nil {
		return fmt.Errorf("streaming file: %w", err)
	}
	return nil
}

func (e *RemoteExecutor) pollTask(ctx context.Context, taskID string, onProgress ProgressFunc) (*conversionResponse, error) {
	if taskID == "" {
		return nil, fmt.Errorf("processing response without task_id")
	}

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		url := fmt.Sprintf("%s/tasks/%s", e.baseURL, taskID)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}

		httpResp, err := e.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("polling task %s: %w", taskID, err)
		}

		var resp conversionResponse
		decodeErr := json.NewDecoder(httpResp.Body).Decode(&resp)
		httpResp.Body.Close()
		if decodeErr != nil {
			return nil, fmt.Errorf("decoding task status: %w", decodeErr)
		}

		switch resp.Status {
		case "processing":
			if resp.Progress > 0 {
				// Server-side progress occupies the band above upload.
				p := uploadProgressCeiling + int(resp.Progress*float64(100-uploadProgressCeiling)/100)
				if p > 99 {
					p = 99
				}
				notify(onProgress, p)
			}
		default:
			return &resp, nil
		}
	}
}

// progressWriter maps bytes written to upload progress in [0, 90].
type progressWriter struct {
	total      int64
	written    int64
	last       int
	onProgress ProgressFunc
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.written += int64(len(p))
	if w.total > 0 {
		percent := int(w.written * uploadProgressCeiling / w.total)
		if percent > uploadProgressCeiling {
			percent = uploadProgressCeiling
		}
		if percent > w.last {
			w.last = percent
			notify(w.onProgress, percent)
		}
	}
	return len(p), nil
}

func stringifyMetadata(in map[string]interface{}) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = fmt.Sprint(v)
	}
	return out
}
