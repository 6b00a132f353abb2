package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/rentroll-worker/internal/logging"
)

func TestNewAnalysisClientRequiresKey(t *testing.T) {
	_, err := NewAnalysisClient(AnalysisConfig{})
	assert.Error(t, err)
}

func TestAnalyze(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  2 units, 1 vacant. \n"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c, err := NewAnalysisClient(AnalysisConfig{URL: srv.URL, APIKey: "sk-test"})
	require.NoError(t, err)

	summary, err := c.Analyze(context.Background(), "<table></table>")
	require.NoError(t, err)
	assert.Equal(t, "2 units, 1 vacant.", summary)

	assert.Equal(t, "gpt-3.5-turbo", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Contains(t, got.Messages[0].Content, "rent roll")
	assert.True(t, strings.HasSuffix(got.Messages[1].Content, "<table></table>"))
}

func TestAnalyzeErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"http error", http.StatusTooManyRequests, `{"error":{"message":"rate limited"}}`, "status 429"},
		{"api error body", http.StatusOK, `{"error":{"message":"model not found"}}`, "model not found"},
		{"no choices", http.StatusOK, `{"choices":[]}`, "no completion choices"},
		{"bad json", http.StatusOK, `not json`, "failed to parse response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, err := NewAnalysisClient(AnalysisConfig{URL: srv.URL, APIKey: "k"})
			require.NoError(t, err)

			_, err = c.Analyze(context.Background(), "<table/>")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAnalyzeHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c, err := NewAnalysisClient(AnalysisConfig{URL: srv.URL, APIKey: "k"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Analyze(ctx, "<table/>")
	assert.ErrorIs(t, err, context.Canceled)
}

// captureLogs routes the default logger into a buffer for one test
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	require.NoError(t, logging.SetupWriter(&buf, "debug", "json"))
	return &buf
}

func TestAnalyzeLogsRequestAndOutcome(t *testing.T) {
	logs := captureLogs(t)

	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"fine"}}]}`))
	}))
	defer ok.Close()
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()

	c, err := NewAnalysisClient(AnalysisConfig{URL: ok.URL, APIKey: "sk-secret"})
	require.NoError(t, err)
	_, err = c.Analyze(context.Background(), "<table></table>")
	require.NoError(t, err)

	c, err = NewAnalysisClient(AnalysisConfig{URL: failing.URL, APIKey: "sk-secret"})
	require.NoError(t, err)
	_, err = c.Analyze(context.Background(), "<table></table>")
	require.Error(t, err)

	raw := logs.String()
	assert.NotContains(t, raw, "sk-secret")

	var entries []map[string]interface{}
	dec := json.NewDecoder(strings.NewReader(raw))
	for dec.More() {
		var e map[string]interface{}
		require.NoError(t, dec.Decode(&e))
		entries = append(entries, e)
	}

	require.Len(t, entries, 4)
	for _, e := range entries {
		assert.Equal(t, "AnalysisClient", e["component"])
	}
	assert.Equal(t, "Requesting rent-roll analysis", entries[0]["msg"])
	assert.Equal(t, float64(len("<table></table>")), entries[0]["tableSize"])
	assert.Contains(t, entries[0], "requestSize")

	assert.Equal(t, "Analysis complete", entries[1]["msg"])
	assert.Equal(t, float64(http.StatusOK), entries[1]["statusCode"])
	assert.Contains(t, entries[1], "duration")

	assert.Equal(t, "ERROR", entries[3]["level"])
	assert.Equal(t, float64(http.StatusBadGateway), entries[3]["statusCode"])
	assert.Contains(t, entries[3], "duration")
}
