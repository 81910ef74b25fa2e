package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	badger "github.com/dgraph-io/badger/v3"

	"github.com/julianstephens/routined/internal/models"
)

var requestKeyPrefix = []byte("request/")

// BadgerStore keeps requests in an embedded badger directory.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (creating if needed) the request store at dir.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create requests directory: %w", err)
	}
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open request store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// OpenMemoryStore returns a badger store that lives only in memory.
func OpenMemoryStore() (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory request store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func requestKey(id string) []byte {
	return append(append([]byte{}, requestKeyPrefix...), id...)
}

func (s *BadgerStore) Put(_ context.Context, req models.NotificationRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(requestKey(req.ID), data)
	})
}

func (s *BadgerStore) Get(_ context.Context, id string) (models.NotificationRequest, bool, error) {
	var req models.NotificationRequest
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(requestKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &req)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return models.NotificationRequest{}, false, nil
	}
	if err != nil {
		return models.NotificationRequest{}, false, err
	}
	return req, true, nil
}

func (s *BadgerStore) Delete(_ context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(requestKey(id))
	})
}

func (s *BadgerStore) List(_ context.Context) ([]models.NotificationRequest, error) {
	var out []models.NotificationRequest
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(requestKeyPrefix); it.ValidForPrefix(requestKeyPrefix); it.Next() {
			var req models.NotificationRequest
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &req)
			}); err != nil {
				return err
			}
			out = append(out, req)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortRequests(out)
	return out, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// sortRequests orders by fire time, then ID.
func sortRequests(reqs []models.NotificationRequest) {
	sort.SliceStable(reqs, func(i, j int) bool {
		if !reqs[i].ScheduledTime.Equal(reqs[j].ScheduledTime) {
			return reqs[i].ScheduledTime.Before(reqs[j].ScheduledTime)
		}
		return reqs[i].ID < reqs[j].ID
	})
}
