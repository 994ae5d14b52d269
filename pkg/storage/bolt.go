package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.etcd.io/bbolt"
)

const DBFile = "exchange-service.db"

type BoltDB struct {
	db   *bbolt.DB
	path string
}

func newBoltDB(options []Option) (*BoltDB, error) {
	path, ok := findOption(options, BoltDBFilePathOption)
	if !ok || path == "" {
		path = DBFile
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening bolt db at %s", path)
	}
	return &BoltDB{db: db, path: path}, nil
}

func (b *BoltDB) Type() Type {
	return Bolt
}

func (b *BoltDB) URI() string {
	return b.path
}

func (b *BoltDB) IsOpen() bool {
	return b.db != nil && b.db.Path() != ""
}

func (b *BoltDB) Close() error {
	return b.db.Close()
}

func (b *BoltDB) Write(_ context.Context, namespace, key string, value []byte) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(namespace))
		if err != nil {
			return err
		}
		return bucket.Put([]byte(key), value)
	})
}

func (b *BoltDB) Read(_ context.Context, namespace, key string) ([]byte, error) {
	var result []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(namespace))
		if bucket == nil {
			logrus.Debugf("namespace<%s> does not exist", namespace)
			return nil
		}
		if v := bucket.Get([]byte(key)); v != nil {
			result = make([]byte, len(v))
			copy(result, v)
		}
		return nil
	})
	return result, err
}

func (b *BoltDB) Exists(ctx context.Context, namespace, key string) (bool, error) {
	v, err := b.Read(ctx, namespace, key)
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

func (b *BoltDB) ReadAll(_ context.Context, namespace string) (map[string][]byte, error) {
	result := make(map[string][]byte)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(namespace))
		if bucket == nil {
			logrus.Debugf("namespace<%s> does not exist", namespace)
			return nil
		}
		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			value := make([]byte, len(v))
			copy(value, v)
			result[string(k)] = value
		}
		return nil
	})
	return result, err
}

// Update is atomic: the read, validation, and write all happen within a single
// bolt transaction, so concurrent updaters serialize on the database lock.
func (b *BoltDB) Update(_ context.Context, namespace, key string, updater Updater) ([]byte, error) {
	var updated []byte
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(namespace))
		if err != nil {
			return err
		}
		v := bucket.Get([]byte(key))
		if err = updater.Validate(v); err != nil {
			return err
		}
		if updated, err = updater.Update(v); err != nil {
			return err
		}
		return bucket.Put([]byte(key), updated)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (b *BoltDB) Delete(_ context.Context, namespace, key string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(namespace))
		if bucket == nil {
			return errors.Errorf("namespace<%s> does not exist", namespace)
		}
		return bucket.Delete([]byte(key))
	})
}

func (b *BoltDB) DeleteNamespace(_ context.Context, namespace string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(namespace)); err != nil {
			return errors.Wrapf(err, "could not delete namespace<%s>", namespace)
		}
		return nil
	})
}
