package db

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"

	"fairplay/config"
	"fairplay/fairness"
	"fairplay/replay"
	"fairplay/verdict"
)

// BoltStore keeps sessions and game records in a single bbolt file.
//
// Records are keyed by id; a second bucket indexes them by an 8-byte
// sequence so listings come out newest first without a scan-and-sort.
type BoltStore struct {
	db *bolt.DB
}

const boltRecordIndexBucket = "records_by_seq"

// OpenBolt opens (or creates) the database at path and ensures buckets exist.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "Failed to open bolt database")
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{config.BoltSessionsBucket, config.BoltRecordsBucket, boltRecordIndexBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return errors.Wrapf(err, "Cannot create %s bucket", name)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	log.WithField("path", path).Info("Bolt database opened")
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	log.Info("Bolt database closed")
	return s.db.Close()
}

/* =========================
   SESSIONS
========================= */

func (s *BoltStore) CreateSession(_ context.Context, sess *fairness.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return errors.Wrap(err, "Unable to encode session")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(config.BoltSessionsBucket))
		if b.Get([]byte(sess.ID)) != nil {
			return verdict.New(verdict.KindStructuralError, "session %s already exists", sess.ID)
		}
		return b.Put([]byte(sess.ID), data)
	})
}

func (s *BoltStore) LoadSession(_ context.Context, id string) (*fairness.Session, error) {
	var sess fairness.Session
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(config.BoltSessionsBucket)).Get([]byte(id))
		if data == nil {
			return verdict.New(verdict.KindSessionNotFound, "session %s", id)
		}
		return errors.Wrap(json.Unmarshal(data, &sess), "Unable to decode session")
	})
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// UpdateSession runs fn inside one read-write transaction; bbolt allows a
// single writer, so concurrent updates serialize.
func (s *BoltStore) UpdateSession(_ context.Context, id string, fn func(*fairness.Session) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(config.BoltSessionsBucket))
		data := b.Get([]byte(id))
		if data == nil {
			return verdict.New(verdict.KindSessionNotFound, "session %s", id)
		}

		var sess fairness.Session
		if err := json.Unmarshal(data, &sess); err != nil {
			return errors.Wrap(err, "Unable to decode session")
		}
		if err := fn(&sess); err != nil {
			return err
		}
		sess.ID = id

		out, err := json.Marshal(&sess)
		if err != nil {
			return errors.Wrap(err, "Unable to encode session")
		}
		return b.Put([]byte(id), out)
	})
}

/* =========================
   GAME RECORDS
========================= */

func (s *BoltStore) SaveRecord(_ context.Context, r *replay.GameRecord) error {
	data, err := json.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "Unable to encode game record")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		records := tx.Bucket([]byte(config.BoltRecordsBucket))
		index := tx.Bucket([]byte(boltRecordIndexBucket))

		if records.Get([]byte(r.ID)) == nil {
			seq, err := index.NextSequence()
			if err != nil {
				return errors.Wrap(err, "Cannot allocate record sequence")
			}
			if err := index.Put(itob(seq), []byte(r.ID)); err != nil {
				return err
			}
		}
		return records.Put([]byte(r.ID), data)
	})
}

func (s *BoltStore) LoadRecord(_ context.Context, id string) (*replay.GameRecord, error) {
	var r replay.GameRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(config.BoltRecordsBucket)).Get([]byte(id))
		if data == nil {
			return replay.ErrRecordNotFound
		}
		return errors.Wrap(json.Unmarshal(data, &r), "Unable to decode game record")
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *BoltStore) ListRecords(_ context.Context, game string, limit int) ([]*replay.GameRecord, error) {
	var out []*replay.GameRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		records := tx.Bucket([]byte(config.BoltRecordsBucket))
		c := tx.Bucket([]byte(boltRecordIndexBucket)).Cursor()
		for k, id := c.Last(); k != nil; k, id = c.Prev() {
			data := records.Get(id)
			if data == nil {
				continue
			}
			var r replay.GameRecord
			if err := json.Unmarshal(data, &r); err != nil {
				return errors.Wrapf(err, "Unable to decode game record %s", id)
			}
			if game != "" && r.Game != game {
				continue
			}
			out = append(out, &r)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, err
}

// itob returns an 8-byte big endian representation of v.
func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
