package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"casebrief-backend/models"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const maxTxnRetries = 5

var (
	casePrefix = []byte("case:")
	jobPrefix  = []byte("job:")
	favPrefix  = []byte("fav:")
	filePrefix = []byte("file:")
)

// BadgerStore is an embedded Store. Each partial write runs in its own
// transaction, so concurrent writers to different fields of one case never
// lose each other's updates.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens a store at path, or an in-memory store when path is empty
func OpenBadger(path string) (*BadgerStore, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", path, err)
		}
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	slog.Info("Badger store opened", "path", path, "in_memory", path == "")
	return &BadgerStore{db: db}, nil
}

// Close closes the database
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func key(prefix []byte, parts ...string) []byte {
	k := append([]byte{}, prefix...)
	for i, p := range parts {
		if i > 0 {
			k = append(k, '/')
		}
		k = append(k, p...)
	}
	return k
}

func getJSON(txn *badger.Txn, k []byte, v any) error {
	item, err := txn.Get(k)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return unmarshal(val, v)
	})
}

// unmarshal decodes a value that is only valid inside its transaction
func unmarshal(val []byte, v any) error {
	return json.Unmarshal(val, v)
}

func setJSON(txn *badger.Txn, k []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(k, data)
}

func isDomainErr(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrStaleRevision) || errors.Is(err, ErrStoreUnavailable)
}

// update runs fn in a read-write transaction, retrying on write conflicts
func (s *BadgerStore) update(ctx context.Context, op string, fn func(txn *badger.Txn) error) error {
	for i := 0; i < maxTxnRetries; i++ {
		if err := ctx.Err(); err != nil {
			return unavailable(op, err)
		}
		err := s.db.Update(fn)
		if errors.Is(err, badger.ErrConflict) {
			slog.Debug("badger write conflict, retrying", "op", op, "attempt", i+1)
			continue
		}
		if err != nil && !isDomainErr(err) {
			return unavailable(op, err)
		}
		return err
	}
	return unavailable(op, badger.ErrConflict)
}

func (s *BadgerStore) view(ctx context.Context, op string, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return unavailable(op, err)
	}
	err := s.db.View(fn)
	if err != nil && !isDomainErr(err) {
		return unavailable(op, err)
	}
	return err
}

func loadCase(txn *badger.Txn, id uuid.UUID) (*models.CaseRecord, error) {
	c := &models.CaseRecord{}
	err := getJSON(txn, key(casePrefix, id.String()), c)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, notFound("case", id)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// patchCase loads, mutates and stores one case inside a single transaction
func (s *BadgerStore) patchCase(ctx context.Context, op string, id uuid.UUID, mutate func(c *models.CaseRecord) error) error {
	return s.update(ctx, op, func(txn *badger.Txn) error {
		c, err := loadCase(txn, id)
		if err != nil {
			return err
		}
		if err := mutate(c); err != nil {
			return err
		}
		c.UpdatedAt = now()
		return setJSON(txn, key(casePrefix, id.String()), c)
	})
}

// CreateCase stores a new case without summaries
func (s *BadgerStore) CreateCase(ctx context.Context, fields models.CaseFields) (*models.CaseRecord, error) {
	t := now()
	c := &models.CaseRecord{
		ID:           uuid.New(),
		Title:        fields.Title,
		DecisionDate: fields.DecisionDate,
		Citation:     fields.Citation,
		Jurisdiction: fields.Jurisdiction,
		Content:      fields.Content,
		CreatedAt:    t,
		UpdatedAt:    t,
	}
	err := s.update(ctx, "create case", func(txn *badger.Txn) error {
		return setJSON(txn, key(casePrefix, c.ID.String()), c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetCase retrieves a case by ID
func (s *BadgerStore) GetCase(ctx context.Context, id uuid.UUID) (*models.CaseRecord, error) {
	var c *models.CaseRecord
	err := s.view(ctx, "get case", func(txn *badger.Txn) error {
		var err error
		c, err = loadCase(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *BadgerStore) scanCases(ctx context.Context, op string, keep func(*models.CaseRecord) bool) ([]*models.CaseRecord, error) {
	var cases []*models.CaseRecord
	err := s.view(ctx, op, func(txn *badger.Txn) error {
		return iteratePrefix(txn, casePrefix, func(val []byte) error {
			c := &models.CaseRecord{}
			if err := unmarshal(val, c); err != nil {
				return err
			}
			if keep(c) {
				cases = append(cases, c)
			}
			return nil
		})
	})
	return cases, err
}

// ListCases returns cases, newest first
func (s *BadgerStore) ListCases(ctx context.Context, limit, offset int) ([]*models.CaseRecord, error) {
	cases, err := s.scanCases(ctx, "list cases", func(*models.CaseRecord) bool { return true })
	if err != nil {
		return nil, err
	}
	sort.Slice(cases, func(i, j int) bool {
		return cases[i].CreatedAt.After(cases[j].CreatedAt)
	})
	return page(cases, limit, offset), nil
}

// ListUnverified returns cases whose slot holds an unverified summary, oldest update first
func (s *BadgerStore) ListUnverified(ctx context.Context, slot models.Slot, limit int) ([]*models.CaseRecord, error) {
	cases, err := s.scanCases(ctx, "list unverified", func(c *models.CaseRecord) bool {
		sum := c.Summary(slot)
		return sum != nil && !sum.Verified
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(cases, func(i, j int) bool {
		return cases[i].UpdatedAt.Before(cases[j].UpdatedAt)
	})
	return page(cases, limit, 0), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// PatchSummary replaces one slot. The sibling slot and metadata are untouched.
func (s *BadgerStore) PatchSummary(ctx context.Context, id uuid.UUID, slot models.Slot, summary models.BriefSummary) (models.BriefSummary, error) {
	stored := prepareSummary(summary)
	err := s.patchCase(ctx, "patch summary", id, func(c *models.CaseRecord) error {
		v := stored
		c.SetSummary(slot, &v)
		return nil
	})
	if err != nil {
		return models.BriefSummary{}, err
	}
	return stored, nil
}

// PatchVerified sets only <slot>.verified, guarded by the stored revision
func (s *BadgerStore) PatchVerified(ctx context.Context, id uuid.UUID, slot models.Slot, revision string, verified bool) error {
	return s.patchCase(ctx, "patch verified", id, func(c *models.CaseRecord) error {
		cur := c.Summary(slot)
		if cur == nil {
			return notFound(slot.Field()+" of case", id)
		}
		if cur.Revision != revision {
			return fmt.Errorf("%s of case %s: %w", slot.Field(), id, ErrStaleRevision)
		}
		v := cur.WithVerified(verified)
		c.SetSummary(slot, &v)
		return nil
	})
}

// PatchMetadataField updates one metadata field
func (s *BadgerStore) PatchMetadataField(ctx context.Context, id uuid.UUID, field models.MetadataField, value string) error {
	if !field.Valid() {
		return fmt.Errorf("unknown metadata field %q", field)
	}
	return s.patchCase(ctx, "patch metadata", id, func(c *models.CaseRecord) error {
		field.Apply(c, value)
		return nil
	})
}
