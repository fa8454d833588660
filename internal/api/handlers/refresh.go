package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"
)

// RefreshHandler triggers an immediate scan on every downloader
type RefreshHandler struct {
	downloaders []Downloader
	status      *StatusHandler
	logger      *logrus.Logger
}

// NewRefreshHandler creates a new refresh handler
func NewRefreshHandler(downloaders []Downloader, status *StatusHandler, logger *logrus.Logger) *RefreshHandler {
	return &RefreshHandler{
		downloaders: downloaders,
		status:      status,
		logger:      logger,
	}
}

// ServeHTTP handles the refresh endpoint
func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessions := make([]string, 0, len(h.downloaders))
	for _, d := range h.downloaders {
		d.DownloadUncachedMedia()
		sessions = append(sessions, d.Identifier())
	}
	if h.status != nil {
		h.status.Invalidate()
	}

	h.logger.WithField("sessions", sessions).Info("Media refresh requested")
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":   "scheduled",
		"sessions": sessions,
	})
}
