package models

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iburn/mediacache/internal/events"
	"github.com/iburn/mediacache/internal/transfer"
)

func openTestDatabase(t *testing.T, hub *events.Hub) *Database {
	t.Helper()
	db, err := NewDatabase(filepath.Join(t.TempDir(), "test.db"), hub)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

const catalog = `[
  {"uid": "b1", "name": "Bamboo", "audio_url": "https://x/b1.mp3"},
  {"uid": "a1", "name": "Arch", "thumbnail_url": "https://x/a1.jpg"},
  {"uid": "a2", "name": "Anvil"},
  {"name": "no uid"}
]`

func TestImportArt(t *testing.T) {
	db := openTestDatabase(t, nil)

	count, err := db.ImportArt(strings.NewReader(catalog))
	if err != nil {
		t.Fatalf("ImportArt failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 imported objects, got %d", count)
	}

	art, err := db.GetArt("b1")
	if err != nil {
		t.Fatalf("GetArt failed: %v", err)
	}
	if art.Name != "Bamboo" || art.RemoteAudioURL() == nil {
		t.Errorf("Unexpected art object: %+v", art)
	}
	if art.RemoteThumbnailURL() != nil {
		t.Error("Expected no thumbnail URL")
	}
}

func TestViewNotRegistered(t *testing.T) {
	db := openTestDatabase(t, nil)

	err := db.Read(func(tx *ReadTransaction) {
		if _, ok := tx.Ext("missing"); ok {
			t.Error("Expected unregistered view to be absent")
		}
	})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
}

func TestRegisterViewPublishesAndEnumerates(t *testing.T) {
	hub := events.NewHub()
	db := openTestDatabase(t, hub)
	if _, err := db.ImportArt(strings.NewReader(catalog)); err != nil {
		t.Fatalf("ImportArt failed: %v", err)
	}

	registered := make(chan string, 1)
	sub := hub.Subscribe(events.ExtensionRegistered, "artByName", func(e events.Event) {
		registered <- e.Key
	})
	defer sub.Close()

	db.RegisterView("artByName", ArtByNameView())

	select {
	case key := <-registered:
		if key != "artByName" {
			t.Errorf("Unexpected key %s", key)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected registration event")
	}

	var order []string
	err := db.Read(func(tx *ReadTransaction) {
		view, ok := tx.Ext("artByName")
		if !ok {
			t.Fatal("Expected view to be registered")
		}
		view.EnumerateGroups(func(group string) bool {
			view.EnumerateKeysAndObjects(group, func(key string, art *ArtObject, index int) bool {
				order = append(order, key)
				return true
			})
			return true
		})
	})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	want := []string{"a2", "a1", "b1"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("Expected order %v, got %v", want, order)
	}
}

func TestLocalURLReflectsFilesystem(t *testing.T) {
	db := openTestDatabase(t, nil)
	root := t.TempDir()
	db.AttachMediaRoot(root)

	if err := db.UpsertArt(&ArtObject{UID: "abc", Name: "Temple", RemoteAudio: "https://x/a.mp3"}); err != nil {
		t.Fatalf("UpsertArt failed: %v", err)
	}

	art, err := db.GetArt("abc")
	if err != nil {
		t.Fatalf("GetArt failed: %v", err)
	}
	if art.LocalAudioURL() != nil {
		t.Error("Expected no local audio before caching")
	}

	path := filepath.Join(root, "MediaFiles", "abc.mp3")
	if err := os.WriteFile(path, []byte("mp3"), 0644); err != nil {
		t.Fatalf("Failed to write cache file: %v", err)
	}

	local := art.LocalAudioURL()
	if local == nil || local.Path != path {
		t.Errorf("Expected local audio %s, got %v", path, local)
	}
	if art.LocalThumbnailURL() != nil {
		t.Error("Expected no local thumbnail")
	}
}

func TestTransferJournal(t *testing.T) {
	db := openTestDatabase(t, nil)
	journal := db.TransferJournal()

	entries := []transfer.Entry{
		{ID: "1", Identifier: "s1", URL: "https://x/1", Description: "1.mp3"},
		{ID: "2", Identifier: "s1", URL: "https://x/2", Description: "2.mp3"},
		{ID: "3", Identifier: "s2", URL: "https://x/3", Description: "3.jpg"},
	}
	for _, entry := range entries {
		if err := journal.Save(entry); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	if err := journal.Delete("1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := journal.Delete("1"); err != nil {
		t.Errorf("Expected deleting a missing entry to succeed, got %v", err)
	}

	got, err := journal.List("s1")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "2" || got[0].Description != "2.mp3" {
		t.Errorf("Unexpected entries: %+v", got)
	}
}

func TestMediaFileName(t *testing.T) {
	if got := MediaFileName("abc", MediaKindAudio); got != "abc.mp3" {
		t.Errorf("Expected abc.mp3, got %s", got)
	}
	if got := MediaFileName("abc", MediaKindImage); got != "abc.jpg" {
		t.Errorf("Expected abc.jpg, got %s", got)
	}
	if got := MediaFileName("abc", MediaKindUnknown); got != "abc" {
		t.Errorf("Expected abc, got %s", got)
	}
}

func TestImportSkipsUnsafeUIDs(t *testing.T) {
	db := openTestDatabase(t, nil)

	count, err := db.ImportArt(strings.NewReader(`[
  {"uid": "../../escape", "name": "Up"},
  {"uid": "nested/uid", "name": "Nested"},
  {"uid": "back\\slash", "name": "Back"},
  {"uid": "..", "name": "Dots"},
  {"uid": "safe-1", "name": "Safe"}
]`))
	if err != nil {
		t.Fatalf("ImportArt failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected only the safe object to be imported, got %d", count)
	}

	arts, err := db.GetAllArt()
	if err != nil {
		t.Fatalf("GetAllArt failed: %v", err)
	}
	if len(arts) != 1 || arts[0].UID != "safe-1" {
		t.Errorf("Unexpected stored objects: %+v", arts)
	}
}

func TestUpsertRejectsUnsafeUID(t *testing.T) {
	db := openTestDatabase(t, nil)

	for _, uid := range []string{"", "../x", "a/b", "."} {
		if err := db.UpsertArt(&ArtObject{UID: uid, Name: "bad"}); !errors.Is(err, ErrInvalidUID) {
			t.Errorf("Expected ErrInvalidUID for %q, got %v", uid, err)
		}
	}
	if err := db.UpsertArt(&ArtObject{UID: "ok", Name: "good"}); err != nil {
		t.Errorf("Expected valid uid to be stored, got %v", err)
	}
}
