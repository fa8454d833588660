package grant

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type countingGrantor struct {
	begun int
	ended []ID
}

func (g *countingGrantor) Begin(name string, expiration func()) ID {
	g.begun++
	return ID(g.begun)
}

func (g *countingGrantor) End(id ID) {
	g.ended = append(g.ended, id)
}

func TestCellReleaseIsIdempotent(t *testing.T) {
	grantor := &countingGrantor{}
	cell := NewCell(grantor)

	if !cell.Acquire("session", nil) {
		t.Fatal("Expected first acquire to succeed")
	}
	if cell.Acquire("session", nil) {
		t.Error("Expected second acquire to be refused while held")
	}

	if !cell.Release() {
		t.Error("Expected first release to report a held grant")
	}
	if cell.Release() {
		t.Error("Expected second release to be a no-op")
	}

	if grantor.begun != 1 {
		t.Errorf("Expected 1 Begin, got %d", grantor.begun)
	}
	if len(grantor.ended) != 1 || grantor.ended[0] != 1 {
		t.Errorf("Expected End(1) exactly once, got %v", grantor.ended)
	}
	if cell.Held() {
		t.Error("Expected cell to be empty after release")
	}
}

func TestProcessGrantorExpiration(t *testing.T) {
	grantor := NewProcessGrantor(20*time.Millisecond, quietLogger())

	expired := make(chan struct{})
	grantor.Begin("short", func() { close(expired) })

	select {
	case <-expired:
	case <-time.After(time.Second):
		t.Fatal("Expected expiration handler to run")
	}

	deadline := time.Now().Add(time.Second)
	for grantor.Active() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if grantor.Active() != 0 {
		t.Errorf("Expected expired grant to end, %d still active", grantor.Active())
	}
}

func TestProcessGrantorEnd(t *testing.T) {
	grantor := NewProcessGrantor(time.Hour, quietLogger())

	id := grantor.Begin("long", nil)
	if grantor.Active() != 1 {
		t.Fatalf("Expected 1 active grant, got %d", grantor.Active())
	}

	grantor.End(id)
	grantor.End(id)
	grantor.End(Invalid)

	if grantor.Active() != 0 {
		t.Errorf("Expected 0 active grants, got %d", grantor.Active())
	}
}
