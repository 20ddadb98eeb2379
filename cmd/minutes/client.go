package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// readTimeout bounds the non-upload API calls. Uploads stream arbitrarily
// large recordings and rely on the command context instead.
const readTimeout = 30 * time.Second

type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
}

type uploadResult struct {
	JobID     string `json:"job_id"`
	StatusURL string `json:"status_url"`
}

func (c *apiClient) getJSON(ctx context.Context, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return wrapConnectError(err, c.baseURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// upload streams filePath to the daemon as a multipart POST without
// buffering the recording in memory.
func (c *apiClient) upload(ctx context.Context, filePath string) (*uploadResult, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(filePath)))
		header.Set("Content-Type", uploadContentType(filePath))
		part, err := writer.CreatePart(header)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(writer.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/uploads", pr)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, wrapConnectError(err, c.baseURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return nil, decodeAPIError(resp)
	}
	var result uploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	return &result, nil
}

// uploadContentTypes maps recording extensions the daemon accepts to their
// media types. The stdlib mime table lacks several of these, .mp4 included.
var uploadContentTypes = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".webm": "video/webm",
}

func uploadContentType(path string) string {
	if contentType, ok := uploadContentTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return contentType
	}
	return "application/octet-stream"
}

func decodeAPIError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		return fmt.Errorf("%s (status %d)", payload.Error, resp.StatusCode)
	}
	return fmt.Errorf("daemon returned status %d", resp.StatusCode)
}

func wrapConnectError(err error, baseURL string) error {
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to daemon: %s refused the connection; start the daemon with `minutesd`", baseURL)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("connect to daemon: %s did not respond in time", baseURL)
	default:
		return fmt.Errorf("connect to daemon: %w", err)
	}
}
