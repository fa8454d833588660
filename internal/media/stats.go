package media

import (
	"context"
	"fmt"

	"github.com/iburn/mediacache/internal/models"
)

// Stats summarizes the cache state of one downloader's view
type Stats struct {
	Kind            string `json:"kind"`
	Records         int    `json:"records"`
	WithMedia       int    `json:"with_media"`
	Cached          int    `json:"cached"`
	Pending         int    `json:"pending"`
	ActiveTransfers int    `json:"active_transfers"`
	GrantHeld       bool   `json:"grant_held"`
}

// Stats counts records, cached files and pending downloads in the view
func (d *Downloader) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Kind: d.kind.String()}
	result := make(chan error, 1)
	var scanErr error

	d.catalog.AsyncRead(func(tx *models.ReadTransaction) {
		view, ok := tx.Ext(d.viewName)
		if !ok {
			scanErr = models.ErrViewNotRegistered
			return
		}
		view.EnumerateGroups(func(group string) bool {
			view.EnumerateKeysAndObjects(group, func(key string, art *models.ArtObject, index int) bool {
				stats.Records++
				remote, local := Resolve(art, d.kind)
				if remote != nil || local != nil {
					stats.WithMedia++
				}
				if local != nil {
					stats.Cached++
				} else if remote != nil {
					stats.Pending++
				}
				return true
			})
			return true
		})
	}, func(err error) {
		if err == nil {
			err = scanErr
		}
		result <- err
	})

	select {
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	case err := <-result:
		if err != nil {
			return Stats{}, fmt.Errorf("failed to read view %s: %w", d.viewName, err)
		}
	}

	stats.ActiveTransfers = d.ActiveTransfers()
	stats.GrantHeld = d.GrantHeld()
	return stats, nil
}
