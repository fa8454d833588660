package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/iburn/mediacache/internal/events"
	"github.com/timshannon/bolthold"
	"go.etcd.io/bbolt"
)

// ErrViewNotRegistered is returned when a view is queried before registration completes
var ErrViewNotRegistered = errors.New("view not registered")

// ErrInvalidUID is returned for uids that cannot name a cache file
var ErrInvalidUID = errors.New("invalid uid")

// ValidateUID rejects uids that are empty or could escape the media directory
func ValidateUID(uid string) error {
	if uid == "" || uid == "." || strings.Contains(uid, "..") || strings.ContainsAny(uid, "/\\\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidUID, uid)
	}
	return nil
}

// Database wraps the bolthold store
type Database struct {
	store *bolthold.Store
	hub   *events.Hub

	mu        sync.RWMutex
	views     map[string]*View
	mediaRoot string
}

// NewDatabase creates a new database connection. Registration events are published on hub.
func NewDatabase(path string, hub *events.Hub) (*Database, error) {
	store, err := bolthold.Open(path, 0600, &bolthold.Options{
		Options: &bbolt.Options{
			Timeout: 1 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Database{
		store: store,
		hub:   hub,
		views: make(map[string]*View),
	}, nil
}

// Close closes the database connection
func (db *Database) Close() error {
	return db.store.Close()
}

// AttachMediaRoot sets the documents directory used to resolve local media of loaded objects
func (db *Database) AttachMediaRoot(root string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.mediaRoot = root
}

func (db *Database) bind(art *ArtObject) *ArtObject {
	db.mu.RLock()
	art.mediaRoot = db.mediaRoot
	db.mu.RUnlock()
	return art
}

// Art operations

// UpsertArt inserts or replaces an art object
func (db *Database) UpsertArt(art *ArtObject) error {
	if err := ValidateUID(art.UID); err != nil {
		return err
	}
	art.UpdatedAt = time.Now()
	return db.store.Upsert(art.UID, art)
}

// GetArt retrieves an art object by uid
func (db *Database) GetArt(uid string) (*ArtObject, error) {
	var art ArtObject
	if err := db.store.Get(uid, &art); err != nil {
		return nil, err
	}
	art.UID = uid
	return db.bind(&art), nil
}

// GetAllArt retrieves every art object
func (db *Database) GetAllArt() ([]*ArtObject, error) {
	var arts []*ArtObject
	if err := db.store.Find(&arts, nil); err != nil {
		return nil, err
	}
	for _, art := range arts {
		db.bind(art)
	}
	return arts, nil
}

// DeleteArt deletes an art object by uid
func (db *Database) DeleteArt(uid string) error {
	return db.store.Delete(uid, &ArtObject{})
}

// ImportArt upserts every object of a JSON array and returns how many were stored.
// Objects with an invalid uid are skipped.
func (db *Database) ImportArt(r io.Reader) (int, error) {
	var arts []*ArtObject
	if err := json.NewDecoder(r).Decode(&arts); err != nil {
		return 0, fmt.Errorf("failed to decode art catalog: %w", err)
	}

	count := 0
	err := db.store.Bolt().Update(func(tx *bbolt.Tx) error {
		for _, art := range arts {
			if ValidateUID(art.UID) != nil {
				continue
			}
			art.UpdatedAt = time.Now()
			if err := db.store.TxUpsert(tx, art.UID, art); err != nil {
				return fmt.Errorf("failed to store art %s: %w", art.UID, err)
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Reads

// ReadTransaction is a read-only view of the store for one Read block
type ReadTransaction struct {
	db *Database
	tx *bbolt.Tx
}

// Read runs block inside a read-only transaction
func (db *Database) Read(block func(tx *ReadTransaction)) error {
	return db.store.Bolt().View(func(tx *bbolt.Tx) error {
		block(&ReadTransaction{db: db, tx: tx})
		return nil
	})
}

// AsyncRead runs block inside a read-only transaction on its own goroutine.
// done, when non-nil, receives the transaction error after block returns.
func (db *Database) AsyncRead(block func(tx *ReadTransaction), done func(error)) {
	go func() {
		err := db.Read(block)
		if done != nil {
			done(err)
		}
	}()
}

// AllArt returns every art object visible in the transaction
func (t *ReadTransaction) AllArt() ([]*ArtObject, error) {
	var arts []*ArtObject
	if err := t.db.store.TxFind(t.tx, &arts, nil); err != nil {
		return nil, err
	}
	for _, art := range arts {
		t.db.bind(art)
	}
	return arts, nil
}

// Ext returns the named view, or false when it is not registered yet
func (t *ReadTransaction) Ext(name string) (*ViewTransaction, bool) {
	t.db.mu.RLock()
	view, ok := t.db.views[name]
	t.db.mu.RUnlock()
	if !ok || !view.isReady() {
		return nil, false
	}

	arts, err := t.AllArt()
	if err != nil {
		return nil, false
	}
	return newViewTransaction(view, arts), true
}
