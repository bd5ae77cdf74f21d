package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type Queue interface {
	// Put writes job and keeps the due index in sync with its status
	Put(ctx context.Context, job Job) (err error)
	Get(ctx context.Context, id uuid.UUID) (job Job, err error)
	// Due returns the jobs to attempt at now
	Due(ctx context.Context, now time.Time) (jobs []Job, err error)
	// All iterates every stored job
	All(ctx context.Context, fn func(job Job) (err error)) (err error)
	Delete(ctx context.Context, id uuid.UUID) (err error)
}

// BadgerQueue stores jobs under /jobs/<id>. Jobs with attempts left are also
// indexed under /jobs-due/<id> so the sweep never scans finished work
type BadgerQueue struct {
	db *badger.DB
}

var _ Queue = (*BadgerQueue)(nil)

func NewBadgerQueue(db *badger.DB) (q *BadgerQueue) {
	return &BadgerQueue{db: db}
}

func (q *BadgerQueue) Put(ctx context.Context, job Job) (err error) {
	err = q.db.Update(func(txn *badger.Txn) (err error) {
		err = txn.Set(JobKey(job.Id), job.Bytes())
		if err != nil {
			return fmt.Errorf("failed to set job: %w", err)
		}

		if job.Status == JobDelivered || job.Exhausted() {
			err = txn.Delete(DueKey(job.Id))
		} else {
			err = txn.Set(DueKey(job.Id), nil)
		}
		if err != nil {
			return fmt.Errorf("failed to index job: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to put job: %w", err)
	}
	return nil
}

func getJob(txn *badger.Txn, id uuid.UUID) (job Job, err error) {
	item, err := txn.Get(JobKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return job, fmt.Errorf("%w: %s", ErrJobNotFound, id)
		}
		return job, fmt.Errorf("failed to get job: %w", err)
	}
	err = item.Value(job.FromBytes)
	if err != nil {
		return job, fmt.Errorf("failed to decode job: %w", err)
	}
	return job, nil
}

func (q *BadgerQueue) Get(ctx context.Context, id uuid.UUID) (job Job, err error) {
	err = q.db.View(func(txn *badger.Txn) (err error) {
		job, err = getJob(txn, id)
		return err
	})
	return job, err
}

func (q *BadgerQueue) Due(ctx context.Context, now time.Time) (jobs []Job, err error) {
	prefix := []byte("/jobs-due/")
	err = q.db.View(func(txn *badger.Txn) (err error) {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		iter := txn.NewIterator(options)
		defer iter.Close()

		for iter.Seek(prefix); iter.ValidForPrefix(prefix); iter.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			key := iter.Item().Key()
			id, err := uuid.ParseBytes(key[len(prefix):])
			if err != nil {
				return fmt.Errorf("failed to parse due key %q: %w", key, err)
			}

			job, err := getJob(txn, id)
			if err != nil {
				return err
			}
			if job.Due(now) {
				jobs = append(jobs, job)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list due jobs: %w", err)
	}
	return jobs, nil
}

func (q *BadgerQueue) All(ctx context.Context, fn func(job Job) (err error)) (err error) {
	prefix := []byte("/jobs/")
	return q.db.View(func(txn *badger.Txn) (err error) {
		iter := txn.NewIterator(badger.DefaultIteratorOptions)
		defer iter.Close()

		for iter.Seek(prefix); iter.ValidForPrefix(prefix); iter.Next() {
			var job Job
			err = iter.Item().Value(job.FromBytes)
			if err != nil {
				return fmt.Errorf("failed to decode job: %w", err)
			}
			err = fn(job)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (q *BadgerQueue) Delete(ctx context.Context, id uuid.UUID) (err error) {
	err = q.db.Update(func(txn *badger.Txn) (err error) {
		err = txn.Delete(JobKey(id))
		if err != nil {
			return err
		}
		return txn.Delete(DueKey(id))
	})
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}
