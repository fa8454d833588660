package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/iburn/mediacache/internal/media"
	"github.com/iburn/mediacache/internal/models"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

const statusCacheKey = "status"

// Downloader is the part of a media downloader the API uses
type Downloader interface {
	Identifier() string
	Stats(ctx context.Context) (media.Stats, error)
	DownloadUncachedMedia()
}

// StatusHandler handles status requests
type StatusHandler struct {
	downloaders []Downloader
	cache       *cache.Cache
	logger      *logrus.Logger
}

// NewStatusHandler creates a new status handler. Responses are cached for ttl.
func NewStatusHandler(downloaders []Downloader, ttl time.Duration, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{
		downloaders: downloaders,
		cache:       cache.New(ttl, 2*ttl),
		logger:      logger,
	}
}

// StatusResponse represents the status response
type StatusResponse struct {
	Ready       bool          `json:"ready"`
	Downloaders []media.Stats `json:"downloaders"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// ServeHTTP handles the status endpoint
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if cached, ok := h.cache.Get(statusCacheKey); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	response := StatusResponse{
		Ready:       true,
		Downloaders: make([]media.Stats, 0, len(h.downloaders)),
		GeneratedAt: time.Now().UTC(),
	}

	for _, d := range h.downloaders {
		stats, err := d.Stats(r.Context())
		if errors.Is(err, models.ErrViewNotRegistered) {
			response.Ready = false
			continue
		}
		if err != nil {
			h.logger.WithError(err).WithField("session", d.Identifier()).Error("Failed to collect media stats")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		response.Downloaders = append(response.Downloaders, stats)
	}

	// Only settled answers are cached so readiness shows up immediately
	if response.Ready {
		h.cache.SetDefault(statusCacheKey, response)
	}
	writeJSON(w, http.StatusOK, response)
}

// Invalidate drops the cached status
func (h *StatusHandler) Invalidate() {
	h.cache.Delete(statusCacheKey)
}
