package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topolens/internal/models"
)

func TestClientNodeProperties(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/networks/prod/snapshots/demo/nodes", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"rows": []NodeRow{{Hostname: "router1", ConfigFormat: "CISCO_IOS"}},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	rows, err := client.NodeProperties(context.Background(), "prod", "demo")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "router1", rows[0].Hostname)
}

func TestClientSubmitConfigs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/networks/prod/snapshots/demo", r.URL.Path)
		var body struct {
			Files []models.ConfigFile `json:"files"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body.Files, 2)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"parseStatus": []ParseStatusRow{
				{FileName: "a.cfg", Status: "PASSED"},
				{FileName: "b.cfg", Status: "FAILED", Message: "syntax"},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	rows, err := client.SubmitConfigs(context.Background(), "prod", "demo", []models.ConfigFile{
		{Name: "a.cfg", Content: []byte("hostname a")},
		{Name: "b.cfg", Content: []byte("???")},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Passed())
	assert.False(t, rows[1].Passed())
}

func TestClientRunVerification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Kind   string            `json:"kind"`
			Params map[string]string `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "REACHABILITY", body.Kind)
		assert.Equal(t, "10.0.0.1", body.Params["srcIp"])
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"rows": []map[string]string{{"flow": "f", "outcome": "SUCCESS"}},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	rows, err := client.RunVerification(context.Background(), "prod", "demo",
		models.QueryReachability, map[string]string{"srcIp": "10.0.0.1"})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestClientClassifiesServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	_, err := client.Layer3Edges(context.Background(), "prod", "demo")
	assert.ErrorIs(t, err, ErrEngineUnavailable)
}

func TestClientClassifiesQueryRejections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unknown snapshot"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	_, err := client.InterfaceProperties(context.Background(), "prod", "demo", "")
	var qerr *QueryError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, http.StatusBadRequest, qerr.Status)
	assert.Contains(t, qerr.Message, "unknown snapshot")
	assert.NotErrorIs(t, err, ErrEngineUnavailable)
}

func TestClientConnectionRefused(t *testing.T) {
	// a closed server looks like a transient connectivity failure
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewClient(srv.URL, time.Second)
	err := client.Status(context.Background())
	assert.ErrorIs(t, err, ErrEngineUnavailable)
}

func TestClientHonorsTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer func() {
		close(block)
		srv.Close()
	}()

	client := NewClient(srv.URL, 100*time.Millisecond)
	start := time.Now()
	err := client.Status(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), time.Second)
}

func TestClientHonorsCallerCancellation(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer func() {
		close(block)
		srv.Close()
	}()

	client := NewClient(srv.URL, 10*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	err := client.Status(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}
