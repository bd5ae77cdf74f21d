package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RogueTeam/remit/rails"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("transaction not found")
	ErrExists         = errors.New("transaction already exists")
	ErrStatusConflict = errors.New("transaction status changed concurrently")
)

// Attempts made when concurrent writers conflict on the same transaction
const MaxConflictRetries = 5

var refSteps = []rails.Step{rails.StepPayment, rails.StepTransfer, rails.StepPayout}

type (
	// Compare and write of a transaction status
	Update struct {
		Id uuid.UUID
		// Status the caller observed. The write fails with ErrStatusConflict otherwise
		From Status
		To   Status
		// Merged into the write once provider references
		Refs          rails.ProviderRef
		FailureReason string
		At            time.Time
	}
	Store interface {
		// Fails with ErrExists when the id is taken
		Create(ctx context.Context, t Transaction) (err error)
		Get(ctx context.Context, id uuid.UUID) (t Transaction, err error)
		// Looks up the transaction whose step reference equals id
		GetByProviderRef(ctx context.Context, step rails.Step, id string) (t Transaction, err error)
		UpdateStatus(ctx context.Context, update Update) (t Transaction, err error)
	}
)

// BadgerStore keeps transactions under /transactions/<id> and one index key
// per provider reference under /refs/<step>/<provider id>
type BadgerStore struct {
	db *badger.DB
}

var _ Store = (*BadgerStore)(nil)

func NewBadgerStore(db *badger.DB) (s *BadgerStore) {
	return &BadgerStore{db: db}
}

func setRefs(txn *badger.Txn, t *Transaction, refs rails.ProviderRef) (err error) {
	for _, step := range refSteps {
		id := refs.Get(step)
		if id == "" {
			continue
		}
		err = txn.Set(RefKey(step, id), []byte(t.Id.String()))
		if err != nil {
			return fmt.Errorf("failed to index %s reference: %w", step, err)
		}
	}
	return nil
}

func getTransaction(txn *badger.Txn, id uuid.UUID) (t Transaction, err error) {
	item, err := txn.Get(TransactionKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return t, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return t, fmt.Errorf("failed to get transaction: %w", err)
	}
	err = item.Value(t.FromBytes)
	if err != nil {
		return t, fmt.Errorf("failed to decode transaction: %w", err)
	}
	return t, nil
}

func (s *BadgerStore) Create(ctx context.Context, t Transaction) (err error) {
	err = s.db.Update(func(txn *badger.Txn) (err error) {
		_, err = txn.Get(TransactionKey(t.Id))
		switch {
		case err == nil:
			return fmt.Errorf("%w: %s", ErrExists, t.Id)
		case !errors.Is(err, badger.ErrKeyNotFound):
			return fmt.Errorf("failed to check transaction: %w", err)
		}

		err = txn.Set(TransactionKey(t.Id), t.Bytes())
		if err != nil {
			return fmt.Errorf("failed to set transaction: %w", err)
		}
		// A live transfer must not react to the abandoned rail, a failed one has nothing left to move
		if t.Status == StatusFailed {
			err = setRefs(txn, &t, t.Routing.AbandonedRef)
			if err != nil {
				return err
			}
		}
		return setRefs(txn, &t, t.ProviderRef)
	})
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (s *BadgerStore) Get(ctx context.Context, id uuid.UUID) (t Transaction, err error) {
	err = s.db.View(func(txn *badger.Txn) (err error) {
		t, err = getTransaction(txn, id)
		return err
	})
	return t, err
}

func (s *BadgerStore) GetByProviderRef(ctx context.Context, step rails.Step, id string) (t Transaction, err error) {
	err = s.db.View(func(txn *badger.Txn) (err error) {
		item, err := txn.Get(RefKey(step, id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s %s", ErrNotFound, step, id)
			}
			return fmt.Errorf("failed to get reference: %w", err)
		}

		var txId uuid.UUID
		err = item.Value(func(val []byte) (err error) {
			txId, err = uuid.ParseBytes(val)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to decode reference: %w", err)
		}

		t, err = getTransaction(txn, txId)
		return err
	})
	return t, err
}

func (s *BadgerStore) updateStatus(update Update) (t Transaction, err error) {
	err = s.db.Update(func(txn *badger.Txn) (err error) {
		t, err = getTransaction(txn, update.Id)
		if err != nil {
			return err
		}
		if t.Status != update.From {
			return fmt.Errorf("%w: expecting %s, found %s", ErrStatusConflict, update.From, t.Status)
		}

		previous := t.ProviderRef
		t.ProviderRef = previous.Merge(update.Refs)
		t.Status = update.To
		t.UpdatedAt = update.At
		if update.FailureReason != "" {
			t.FailureReason = update.FailureReason
		}

		err = txn.Set(TransactionKey(t.Id), t.Bytes())
		if err != nil {
			return fmt.Errorf("failed to set transaction: %w", err)
		}

		var added rails.ProviderRef
		for _, step := range refSteps {
			if previous.Get(step) == "" {
				added = added.With(step, t.ProviderRef.Get(step))
			}
		}
		return setRefs(txn, &t, added)
	})
	return t, err
}

func (s *BadgerStore) UpdateStatus(ctx context.Context, update Update) (t Transaction, err error) {
	for range MaxConflictRetries {
		t, err = s.updateStatus(update)
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	if err != nil {
		return t, fmt.Errorf("failed to update transaction status: %w", err)
	}
	return t, nil
}
