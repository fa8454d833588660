package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/iburn/mediacache/internal/api/handlers"
	"github.com/iburn/mediacache/internal/media"
	"github.com/iburn/mediacache/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

type fakeDownloader struct {
	id       string
	stats    media.Stats
	err      error
	scans    atomic.Int32
	statsHit atomic.Int32
}

func (f *fakeDownloader) Identifier() string { return f.id }

func (f *fakeDownloader) Stats(ctx context.Context) (media.Stats, error) {
	f.statsHit.Add(1)
	return f.stats, f.err
}

func (f *fakeDownloader) DownloadUncachedMedia() { f.scans.Add(1) }

func newTestServer(t *testing.T, downloaders ...*fakeDownloader) *httptest.Server {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	var list []handlers.Downloader
	for _, d := range downloaders {
		list = append(list, d)
	}

	reg := prometheus.NewRegistry()
	media.NewMetrics(reg)
	up := prometheus.NewGauge(prometheus.GaugeOpts{Name: "mediacache_up"})
	reg.MustRegister(up)
	up.Set(1)

	server := httptest.NewServer(NewServer("0", list, reg, logger).Handler())
	t.Cleanup(server.Close)
	return server
}

func TestHealth(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/health")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}

	resp, err = http.Post(server.URL+"/health", "application/json", nil)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", resp.StatusCode)
	}
}

func getStatus(t *testing.T, url string) handlers.StatusResponse {
	t.Helper()
	resp, err := http.Get(url + "/status")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var status handlers.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("Failed to decode status: %v", err)
	}
	return status
}

func TestStatusIsCached(t *testing.T) {
	audio := &fakeDownloader{id: "audio", stats: media.Stats{Kind: "audio", Records: 3, Cached: 1, Pending: 2}}
	server := newTestServer(t, audio)

	status := getStatus(t, server.URL)
	if !status.Ready || len(status.Downloaders) != 1 {
		t.Fatalf("Unexpected status %+v", status)
	}
	if status.Downloaders[0].Pending != 2 {
		t.Errorf("Expected 2 pending, got %d", status.Downloaders[0].Pending)
	}

	getStatus(t, server.URL)
	if n := audio.statsHit.Load(); n != 1 {
		t.Errorf("Expected cached second response, stats collected %d times", n)
	}
}

func TestStatusBeforeViewRegistration(t *testing.T) {
	audio := &fakeDownloader{id: "audio", err: models.ErrViewNotRegistered}
	server := newTestServer(t, audio)

	status := getStatus(t, server.URL)
	if status.Ready {
		t.Error("Expected not ready")
	}

	getStatus(t, server.URL)
	if n := audio.statsHit.Load(); n != 2 {
		t.Errorf("Expected unsettled status to skip the cache, got %d collections", n)
	}
}

func TestRefreshTriggersScans(t *testing.T) {
	audio := &fakeDownloader{id: "audio"}
	image := &fakeDownloader{id: "image"}
	server := newTestServer(t, audio, image)

	resp, err := http.Post(server.URL+"/api/media/refresh", "application/json", nil)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("Expected 202, got %d", resp.StatusCode)
	}
	if audio.scans.Load() != 1 || image.scans.Load() != 1 {
		t.Errorf("Expected one scan each, got audio=%d image=%d", audio.scans.Load(), image.scans.Load())
	}

	resp, err = http.Get(server.URL + "/api/media/refresh")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "mediacache_up 1") {
		t.Errorf("Expected registry contents in exposition, got %s", body)
	}
}
