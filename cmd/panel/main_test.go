package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/andrearcaina/uofthacks-2026/internal/config"
)

type recorded struct {
	path string
	auth string
	body map[string]any
}

// fakePanel answers every route with status and reply and records requests.
func fakePanel(t *testing.T, status int, reply string) (*httptest.Server, chan recorded, *atomic.Int32) {
	t.Helper()
	requests := make(chan recorded, 8)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		requests <- recorded{path: r.URL.Path, auth: r.Header.Get("Authorization"), body: body}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, requests, &calls
}

func execute(t *testing.T, panelURL string, args ...string) (string, error) {
	t.Helper()
	cfg := config.Config{
		PanelURL:          panelURL,
		PanelSessionToken: "session-token",
		RetryAttempts:     1,
		RetryBackoff:      time.Millisecond,
	}
	root := newRootCmd(cfg, zap.NewNop())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestAnalyzeJSON(t *testing.T) {
	srv, requests, _ := fakePanel(t, http.StatusOK, `{"status":"success","data":{"analysis":"# Brand fit"}}`)

	out, err := execute(t, srv.URL, "analyze", "--url", "https://demo.example.com/v", "--prompt", "tone", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"analysis":"# Brand fit"}`, out)

	req := <-requests
	assert.Equal(t, "/api/analyze", req.path)
	assert.Equal(t, "Bearer session-token", req.auth)
	assert.Equal(t, map[string]any{"url": "https://demo.example.com/v", "prompt": "tone"}, req.body)
}

func TestManifestoRendersMarkdown(t *testing.T) {
	srv, requests, _ := fakePanel(t, http.StatusOK, `{"status":"success","manifesto":{"manifesto":"# Our Brand\n\nWe make **bold** things."}}`)

	out, err := execute(t, srv.URL, "manifesto", "--style", "notty")
	require.NoError(t, err)
	assert.Contains(t, out, "Our Brand")
	assert.Contains(t, out, "bold")
	assert.NotContains(t, out, `"manifesto"`)
	assert.Equal(t, "/api/scan_store", (<-requests).path)
}

func TestCampaignDraftPrintsJSON(t *testing.T) {
	srv, requests, _ := fakePanel(t, http.StatusOK, `{"status":"success","campaign_data":{"subject":"Fall drop"}}`)

	out, err := execute(t, srv.URL, "campaign", "draft", "--goal", "launch", "--channels", "email, blog")
	require.NoError(t, err)
	assert.JSONEq(t, `{"campaign_data":{"subject":"Fall drop"}}`, out)

	req := <-requests
	assert.Equal(t, "/api/campaign/draft", req.path)
	assert.Equal(t, []any{"EMAIL", "BLOG"}, req.body["channels"])
}

func TestCampaignPublishFromDraftFile(t *testing.T) {
	srv, requests, _ := fakePanel(t, http.StatusOK, `{"status":"success","event_id":"evt_1","event":{}}`)
	path := filepath.Join(t.TempDir(), "draft.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"campaign_data":{"subject":"Fall drop"}}`), 0o600))

	out, err := execute(t, srv.URL, "campaign", "publish", "--data", "@"+path)
	require.NoError(t, err)
	assert.Contains(t, out, "evt_1")
	assert.Equal(t, map[string]any{"campaign_data": map[string]any{"subject": "Fall drop"}}, (<-requests).body)
}

func TestFailureBecomesError(t *testing.T) {
	srv, _, calls := fakePanel(t, http.StatusInternalServerError, `{"status":"error","code":"upstream_unavailable","message":"Inference service offline"}`)

	_, err := execute(t, srv.URL, "manifesto", "--attempts", "3")
	require.Error(t, err)
	assert.Equal(t, "manifesto failed: Inference service offline", err.Error())
	assert.Equal(t, int32(3), calls.Load())
}

func TestPublishIsNotRetried(t *testing.T) {
	srv, _, calls := fakePanel(t, http.StatusInternalServerError, `{"status":"error","message":"Inference service offline"}`)

	_, err := execute(t, srv.URL, "campaign", "publish", "--data", `{"subject":"x"}`, "--attempts", "3")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTokenRequired(t *testing.T) {
	root := newRootCmd(config.Config{PanelURL: "http://127.0.0.1:1"}, nil)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"manifesto"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session token required")
}

func TestReadCampaignData(t *testing.T) {
	inline, err := readCampaignData(`{"subject":"x"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"subject":"x"}`, string(inline))

	unwrapped, err := readCampaignData(`{"campaign_data":{"subject":"x"}}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"subject":"x"}`, string(unwrapped))

	_, err = readCampaignData(`[1,2]`)
	assert.Error(t, err)
	_, err = readCampaignData("@" + filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
