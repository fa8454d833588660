package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/iburn/mediacache/internal/models"
	"github.com/iburn/mediacache/internal/transfer"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// ErrMissingFileName is logged when a finished transfer carries no file name tag
var ErrMissingFileName = errors.New("transfer has no file name")

// BackupExcluder flags a file so device backups skip it
type BackupExcluder interface {
	Exclude(path string) error
}

// backupExcludeAttr is the extended attribute backup tools check to skip an item
const backupExcludeAttr = "user.com.apple.metadata:com_apple_backup_excludeItem"

// XattrExcluder marks files with the backup exclusion extended attribute
type XattrExcluder struct{}

// Exclude sets the attribute on path
func (XattrExcluder) Exclude(path string) error {
	if err := unix.Setxattr(path, backupExcludeAttr, []byte("com.apple.backupd"), 0); err != nil {
		return fmt.Errorf("failed to set backup exclusion on %s: %w", path, err)
	}
	return nil
}

// DidFinishDownloading moves a finished transfer into the cache, flags it as
// excluded from backup and releases the execution grant once no transfers remain.
// It runs on the session's serial callback queue.
func (d *Downloader) DidFinishDownloading(session *transfer.Session, task *transfer.Task, location string) {
	fileName := task.Description()
	if fileName == "" {
		d.logger.WithError(ErrMissingFileName).WithField("task_id", task.ID()).Error("Failed to cache media file")
		d.metrics.failed(d.kind, "missing_file_name")
		return
	}

	dest := models.LocalMediaPath(d.mediaRoot, fileName)
	if err := moveFile(location, dest); err != nil {
		d.logger.WithError(err).WithFields(logrus.Fields{
			"file_name": fileName,
			"location":  location,
		}).Error("Error moving file")
		d.metrics.failed(d.kind, "move")
		return
	}
	if err := d.excluder.Exclude(dest); err != nil {
		d.logger.WithError(err).WithField("file_name", fileName).Error("Error excluding file from backup")
		d.metrics.failed(d.kind, "backup_exclusion")
		return
	}

	d.logger.WithField("path", dest).Info("Media file cached")
	d.metrics.cached(d.kind)

	if otherActive(session, task) == 0 && d.grant.Release() {
		d.logger.WithField("session", d.identifier).Info("All media transfers settled, execution grant released")
	}
}

// otherActive counts the session's active tasks besides task, which stays
// listed until this callback returns
func otherActive(session *transfer.Session, task *transfer.Task) int {
	n := 0
	for _, other := range session.Tasks() {
		if other.ID() != task.ID() {
			n++
		}
	}
	return n
}

// renameFile performs the first move attempt
var renameFile = os.Rename

// moveFile renames src to dest, falling back to copy and rename when they
// live on different filesystems
func moveFile(src, dest string) error {
	if err := renameFile(src, dest); err == nil {
		return nil
	} else if !errors.Is(err, unix.EXDEV) {
		return fmt.Errorf("failed to rename %s: %w", src, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".incoming-*")
	if err != nil {
		return fmt.Errorf("failed to create staging file: %w", err)
	}
	defer os.Remove(tmp.Name())

	in, err := os.Open(src)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close staging file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("failed to rename staging file: %w", err)
	}
	_ = os.Remove(src)
	return nil
}
