package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// internalSecretHeader authenticates engine-to-platform calls.
const internalSecretHeader = "x-internal-secret"

// HTTPLogFetcher pulls recent transcript logs from the hosting platform's
// internal logs endpoint.
type HTTPLogFetcher struct {
	baseURL    string
	secret     string
	httpClient *http.Client
}

// NewHTTPLogFetcher creates a fetcher against the platform at baseURL. The
// secret authenticates the engine to the internal endpoint.
func NewHTTPLogFetcher(baseURL, secret string) *HTTPLogFetcher {
	return &HTTPLogFetcher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secret:     secret,
		httpClient: &http.Client{Timeout: logFetchTimeout},
	}
}

// FetchLogs returns the recent raw transcript for one instance. The response
// body carries either a list of log lines or a single blob; both are
// normalized to one newline-joined string.
func (f *HTTPLogFetcher) FetchLogs(ctx context.Context, instanceID string) (string, error) {
	endpoint := fmt.Sprintf("%s/api/instance/logs?instanceId=%s", f.baseURL, url.QueryEscape(instanceID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build logs request: %w", err)
	}
	req.Header.Set(internalSecretHeader, f.secret)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch logs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("logs endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		Logs json.RawMessage `json:"logs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode logs response: %w", err)
	}
	return normalizeLogs(payload.Logs), nil
}

func normalizeLogs(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var lines []string
	if err := json.Unmarshal(raw, &lines); err == nil {
		return strings.Join(lines, "\n")
	}
	var blob string
	if err := json.Unmarshal(raw, &blob); err == nil {
		return blob
	}
	return ""
}
