package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/miradorstack/mirador-recall/internal/models"
)

const (
	collectionPrefix = "col:"
	pointPrefix      = "pt:"
)

// BadgerStore is an embedded Store that scans a collection prefix and ranks
// by cosine similarity. Suitable for single-node and development use.
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger
}

type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

type storedPoint struct {
	Vector  []float32      `json:"vector"`
	Payload models.Payload `json:"payload"`
}

// OpenBadgerStore opens (or creates) a database at path. inMemory ignores path.
func OpenBadgerStore(path string, inMemory bool, logger *slog.Logger) (*BadgerStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if path == "" {
			return nil, errors.New("badger path is required unless running in memory")
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("create badger dir: %w", err)
		}
		opts = badger.DefaultOptions(path)
	}
	opts.Logger = &badgerLoggerAdapter{logger: logger.With(slog.String("component", "badger"))}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db, logger: logger}, nil
}

// EnsureCollection records the collection dimension; an existing collection
// with a different dimension is an error.
func (s *BadgerStore) EnsureCollection(_ context.Context, name string, dim int) error {
	key := []byte(collectionPrefix + name)
	return s.db.Update(func(tx *badger.Txn) error {
		item, err := tx.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			s.logger.Info("creating collection", slog.String("collection", name), slog.Int("dim", dim))
			return tx.Set(key, []byte(strconv.Itoa(dim)))
		case err != nil:
			return err
		}
		return item.Value(func(val []byte) error {
			existing, err := strconv.Atoi(string(val))
			if err != nil {
				return fmt.Errorf("corrupt collection metadata for %s: %w", name, err)
			}
			if existing != dim {
				return fmt.Errorf("collection %s has dimension %d, expected %d", name, existing, dim)
			}
			return nil
		})
	})
}

// Upsert overwrites the point at id.
func (s *BadgerStore) Upsert(_ context.Context, collection string, point Point) error {
	dim, err := s.dimension(collection)
	if err != nil {
		return err
	}
	if len(point.Vector) != dim {
		return fmt.Errorf("vector width %d does not match collection %s dimension %d", len(point.Vector), collection, dim)
	}
	data, err := json.Marshal(storedPoint{Vector: point.Vector, Payload: point.Payload})
	if err != nil {
		return fmt.Errorf("marshal point: %w", err)
	}
	return s.db.Update(func(tx *badger.Txn) error {
		return tx.Set(pointKey(collection, point.ID), data)
	})
}

// Fetch returns the point at id or models.ErrNotFound.
func (s *BadgerStore) Fetch(_ context.Context, collection, id string) (Point, error) {
	var stored storedPoint
	err := s.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get(pointKey(collection, id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Point{}, models.ErrNotFound
	}
	if err != nil {
		return Point{}, err
	}
	return Point{ID: id, Vector: stored.Vector, Payload: stored.Payload}, nil
}

// NearestNeighbors scans the collection and returns the top limit hits.
func (s *BadgerStore) NearestNeighbors(ctx context.Context, collection string, vector []float32, limit int) ([]Hit, error) {
	var hits []Hit
	prefix := []byte(pointPrefix + collection + "/")

	err := s.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := iter.Item()
			id := string(item.Key()[len(prefix):])
			var stored storedPoint
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &stored)
			}); err != nil {
				return fmt.Errorf("decode point %s: %w", id, err)
			}
			if len(stored.Vector) == 0 {
				continue
			}
			hits = append(hits, Hit{ID: id, Score: cosine(vector, stored.Vector), Payload: stored.Payload})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortHits(hits)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Ping reports whether the database is open.
func (s *BadgerStore) Ping(context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger database is closed")
	}
	return nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) dimension(collection string) (int, error) {
	var dim int
	err := s.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(collectionPrefix + collection))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			dim, err = strconv.Atoi(string(val))
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, fmt.Errorf("collection %s does not exist", collection)
	}
	return dim, err
}

func pointKey(collection, id string) []byte {
	return []byte(pointPrefix + collection + "/" + id)
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
