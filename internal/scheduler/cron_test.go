package scheduler

import (
	"io"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
)

type countingRescanner struct {
	id    string
	calls atomic.Int32
}

func (r *countingRescanner) Identifier() string { return r.id }

func (r *countingRescanner) DownloadUncachedMedia() { r.calls.Add(1) }

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestRunRescanTriggersEveryDownloader(t *testing.T) {
	audio := &countingRescanner{id: "audio"}
	image := &countingRescanner{id: "image"}
	s := NewScheduler("0 */6 * * *", []Rescanner{audio, image}, quietLogger())

	s.RunRescan()

	if audio.calls.Load() != 1 || image.calls.Load() != 1 {
		t.Errorf("Expected one scan per downloader, got audio=%d image=%d", audio.calls.Load(), image.calls.Load())
	}
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	s := NewScheduler("not a cron expression", nil, quietLogger())
	if err := s.Start(); err == nil {
		t.Error("Expected error for invalid schedule")
	}
}

func TestStartWithEmptyScheduleIsDisabled(t *testing.T) {
	s := NewScheduler("", nil, quietLogger())
	if err := s.Start(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(s.cron.Entries()) != 0 {
		t.Errorf("Expected no jobs, got %d", len(s.cron.Entries()))
	}
	s.Stop()
}

func TestStartRegistersJob(t *testing.T) {
	s := NewScheduler("@every 1h", nil, quietLogger())
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	if len(s.cron.Entries()) != 1 {
		t.Errorf("Expected one job, got %d", len(s.cron.Entries()))
	}
}
