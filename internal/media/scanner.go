package media

import (
	"context"
	"fmt"
	"net/url"
	"sort"

	"github.com/iburn/mediacache/internal/models"
	"github.com/sirupsen/logrus"
)

// Catalog is the read side of the persistence layer
type Catalog interface {
	AsyncRead(block func(tx *models.ReadTransaction), done func(error))
}

// PendingAsset is a record whose media still has to be fetched
type PendingAsset struct {
	RemoteURL *url.URL
	Record    Record
}

type scanResult struct {
	pending []PendingAsset
	err     error
}

// Scan reads every record of the downloader's view and returns those with a
// remote URL and no cached copy, one entry per distinct remote URL. It returns
// models.ErrViewNotRegistered while the view is not queryable yet.
func (d *Downloader) Scan(ctx context.Context) ([]PendingAsset, error) {
	result := make(chan scanResult, 1)
	var pending []PendingAsset
	var scanErr error

	d.catalog.AsyncRead(func(tx *models.ReadTransaction) {
		view, ok := tx.Ext(d.viewName)
		if !ok {
			scanErr = models.ErrViewNotRegistered
			return
		}
		pending = d.collect(view)
	}, func(err error) {
		if err == nil {
			err = scanErr
		}
		result <- scanResult{pending: pending, err: err}
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-result:
		if res.err != nil {
			return nil, fmt.Errorf("failed to scan view %s: %w", d.viewName, res.err)
		}
		return res.pending, nil
	}
}

// collect walks the view in index order, keyed by remote URL so the last
// record wins when several share a source
func (d *Downloader) collect(view *models.ViewTransaction) []PendingAsset {
	byURL := make(map[string]PendingAsset)

	view.EnumerateGroups(func(group string) bool {
		view.EnumerateKeysAndObjects(group, func(key string, art *models.ArtObject, index int) bool {
			remote, local := Resolve(art, d.kind)
			if !NeedsDownload(remote, local) {
				return true
			}
			d.logger.WithFields(logrus.Fields{
				"uid":  key,
				"url":  remote.String(),
				"kind": d.kind.String(),
			}).Debug("Media needs download")
			byURL[remote.String()] = PendingAsset{RemoteURL: remote, Record: art}
			return true
		})
		return true
	})

	pending := make([]PendingAsset, 0, len(byURL))
	for _, asset := range byURL {
		pending = append(pending, asset)
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].RemoteURL.String() < pending[j].RemoteURL.String()
	})
	return pending
}
