// Package media downloads remote media referenced by catalog records into a
// local cache that survives suspension of the process.
package media

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/iburn/mediacache/internal/events"
	"github.com/iburn/mediacache/internal/grant"
	"github.com/iburn/mediacache/internal/models"
	"github.com/iburn/mediacache/internal/transfer"
	"github.com/sirupsen/logrus"
)

// Options configures a Downloader
type Options struct {
	Catalog   Catalog
	Hub       *events.Hub
	ViewName  string
	Kind      models.MediaKind
	MediaRoot string // documents directory; files land in <MediaRoot>/MediaFiles
	Grantor   grant.Grantor
	Excluder  BackupExcluder // defaults to XattrExcluder
	Transfer  transfer.Config
	Metrics   *Metrics
}

// Downloader caches one kind of media for the records of one view
type Downloader struct {
	catalog    Catalog
	viewName   string
	kind       models.MediaKind
	mediaRoot  string
	identifier string
	excluder   BackupExcluder
	metrics    *Metrics
	logger     *logrus.Logger

	session      *transfer.Session
	grant        *grant.Cell
	subscription *events.Subscription

	mu                   sync.Mutex
	backgroundCompletion func()
	closed               bool
}

// SessionIdentifier returns the transfer session identity for a view and kind
func SessionIdentifier(viewName string, kind models.MediaKind) string {
	return "MediaDownloaderSession-" + viewName + "-" + kind.String()
}

// NewDownloader acquires an execution grant, opens the transfer session and
// subscribes to registration of the view. Every registration triggers a scan.
func NewDownloader(opts Options, logger *logrus.Logger) (*Downloader, error) {
	if opts.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if opts.ViewName == "" {
		return nil, fmt.Errorf("view name is required")
	}
	if opts.Grantor == nil {
		return nil, fmt.Errorf("grantor is required")
	}
	if opts.Excluder == nil {
		opts.Excluder = XattrExcluder{}
	}

	identifier := SessionIdentifier(opts.ViewName, opts.Kind)
	d := &Downloader{
		catalog:    opts.Catalog,
		viewName:   opts.ViewName,
		kind:       opts.Kind,
		mediaRoot:  opts.MediaRoot,
		identifier: identifier,
		excluder:   opts.Excluder,
		metrics:    opts.Metrics,
		logger:     logger,
		grant:      grant.NewCell(opts.Grantor),
	}

	d.acquireGrant()

	cfg := opts.Transfer
	cfg.Identifier = identifier
	session, err := transfer.NewSession(cfg, d, logger)
	if err != nil {
		d.grant.Release()
		return nil, fmt.Errorf("failed to create transfer session: %w", err)
	}
	d.session = session

	if opts.Hub != nil {
		d.subscription = opts.Hub.Subscribe(events.ExtensionRegistered, opts.ViewName, func(e events.Event) {
			d.logger.WithField("view", e.Key).Info("Database view registered")
			d.DownloadUncachedMedia()
		})
	}

	return d, nil
}

func (d *Downloader) acquireGrant() {
	d.grant.Acquire(d.identifier, func() {
		d.logger.WithField("session", d.identifier).Warn("Execution grant expired before transfers settled")
		d.grant.Release()
	})
}

// Kind returns the media kind this downloader caches
func (d *Downloader) Kind() models.MediaKind {
	return d.kind
}

// Identifier returns the transfer session identity
func (d *Downloader) Identifier() string {
	return d.identifier
}

// ActiveTransfers returns the number of transfers the session still runs
func (d *Downloader) ActiveTransfers() int {
	return len(d.session.Tasks())
}

// GrantHeld reports whether the execution grant is currently held
func (d *Downloader) GrantHeld() bool {
	return d.grant.Held()
}

// DownloadUncachedMedia runs a scan and reconcile cycle in the background
func (d *Downloader) DownloadUncachedMedia() {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return
	}

	go func() {
		if _, err := d.RunCycle(context.Background()); err != nil {
			if errors.Is(err, models.ErrViewNotRegistered) {
				d.logger.WithField("view", d.viewName).Debug("View not registered yet, skipping scan")
				return
			}
			d.logger.WithError(err).WithField("session", d.identifier).Error("Media scan failed")
		}
	}()
}

// RunCycle scans and reconciles synchronously and returns the number of issued transfers
func (d *Downloader) RunCycle(ctx context.Context) (int, error) {
	pending, err := d.Scan(ctx)
	if err != nil {
		return 0, err
	}
	if len(pending) > 0 {
		d.acquireGrant()
	}
	issued := d.ReconcileAndStart(pending)

	// No completion will arrive to release a grant held from an earlier cycle
	if issued == 0 && len(d.session.Tasks()) == 0 && d.grant.Release() {
		d.logger.WithField("session", d.identifier).Info("No media transfers issued, execution grant released")
	}
	return issued, nil
}

// SetBackgroundCompletion registers a one-shot callback run when the session
// has delivered all pending events
func (d *Downloader) SetBackgroundCompletion(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.backgroundCompletion = fn
}

// DidFinishEvents invokes and clears the background completion callback
func (d *Downloader) DidFinishEvents(session *transfer.Session) {
	d.mu.Lock()
	fn := d.backgroundCompletion
	d.backgroundCompletion = nil
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Close unsubscribes from registration events, invalidates the session and
// releases the grant. It is safe to call more than once.
func (d *Downloader) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	if d.subscription != nil {
		d.subscription.Close()
	}
	d.session.Invalidate()
	d.grant.Release()
}
