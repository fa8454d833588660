package media

import (
	"github.com/sirupsen/logrus"
)

// ReconcileAndStart cancels every active transfer of the session, then issues
// one transfer per pending asset tagged with its cache file name. A fresh scan
// supersedes all in-flight work, so no per-asset diffing is done. It returns
// the number of issued transfers.
func (d *Downloader) ReconcileAndStart(pending []PendingAsset) int {
	for _, task := range d.session.Tasks() {
		d.logger.WithFields(logrus.Fields{
			"task_id":   task.ID(),
			"file_name": task.Description(),
			"url":       task.URL().String(),
		}).Warn("Canceling existing download")
		task.Cancel()
		d.metrics.cancelled(d.kind)
	}

	issued := 0
	for _, asset := range pending {
		remote := RemoteURL(asset.Record, d.kind)
		if remote == nil {
			d.logger.WithFields(logrus.Fields{
				"uid":  asset.Record.UniqueID(),
				"kind": d.kind.String(),
			}).Error("No remote URL for pending media")
			continue
		}

		task, err := d.session.DownloadTask(remote)
		if err != nil {
			d.logger.WithError(err).WithField("url", remote.String()).Error("Failed to create download task")
			continue
		}
		fileName := FileName(asset.Record, d.kind)
		task.SetDescription(fileName)

		d.logger.WithFields(logrus.Fields{
			"url":       remote.String(),
			"file_name": fileName,
		}).Info("Downloading file")
		task.Resume()
		d.metrics.issued(d.kind)
		issued++
	}

	d.logger.WithFields(logrus.Fields{
		"session": d.identifier,
		"issued":  issued,
	}).Info("Media transfers issued")
	return issued
}
