package models

import (
	"time"

	"github.com/iburn/mediacache/internal/transfer"
	"github.com/timshannon/bolthold"
)

// TransferRecord is a journalled in-flight transfer
type TransferRecord struct {
	ID          string `boltholdKey:"ID"`
	SessionID   string `boltholdIndex:"SessionID"`
	URL         string
	Description string
	CreatedAt   time.Time
}

// TransferJournal stores transfer session journals in the database
type TransferJournal struct {
	db *Database
}

// TransferJournal returns the journal backed by this database
func (db *Database) TransferJournal() *TransferJournal {
	return &TransferJournal{db: db}
}

// Save upserts an entry
func (j *TransferJournal) Save(entry transfer.Entry) error {
	return j.db.store.Upsert(entry.ID, &TransferRecord{
		ID:          entry.ID,
		SessionID:   entry.Identifier,
		URL:         entry.URL,
		Description: entry.Description,
		CreatedAt:   entry.CreatedAt,
	})
}

// Delete removes an entry; missing entries are ignored
func (j *TransferJournal) Delete(id string) error {
	err := j.db.store.Delete(id, &TransferRecord{})
	if err == bolthold.ErrNotFound {
		return nil
	}
	return err
}

// List returns the entries of one session
func (j *TransferJournal) List(identifier string) ([]transfer.Entry, error) {
	var records []*TransferRecord
	if err := j.db.store.Find(&records, bolthold.Where("SessionID").Eq(identifier)); err != nil {
		return nil, err
	}

	entries := make([]transfer.Entry, 0, len(records))
	for _, record := range records {
		entries = append(entries, transfer.Entry{
			ID:          record.ID,
			Identifier:  record.SessionID,
			URL:         record.URL,
			Description: record.Description,
			CreatedAt:   record.CreatedAt,
		})
	}
	return entries, nil
}
