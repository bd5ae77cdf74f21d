package testsuite

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/RogueTeam/remit/cache"
	"github.com/RogueTeam/remit/random"
	"github.com/RogueTeam/remit/utils"
	"github.com/stretchr/testify/assert"
)

// Elapse moves the store's notion of time forward by at least d
type Elapse func(d time.Duration)

var errAbort = errors.New("abort")

// Test runs the contract every cache.Store implementation must satisfy
func Test(t *testing.T, store cache.Store, elapse Elapse) {
	key := func(prefix string) string {
		return prefix + random.String(random.CryptoRand(), random.CharsetAlphaNumeric, 12)
	}

	t.Run("SetGetDelete", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		k := key("/set/")
		err := store.Set(ctx, k, []byte("value"), 0)
		assertions.Nil(err, "failed to set")

		value, err := store.Get(ctx, k)
		assertions.Nil(err, "failed to get")
		assertions.Equal([]byte("value"), value)

		err = store.Delete(ctx, k)
		assertions.Nil(err, "failed to delete")

		_, err = store.Get(ctx, k)
		assertions.ErrorIs(err, cache.ErrNotFound)
	})
	t.Run("Update", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		k := key("/update/")
		err := store.Update(ctx, k, func(current []byte) ([]byte, error) { return current, nil })
		assertions.ErrorIs(err, cache.ErrNotFound)

		err = store.Set(ctx, k, []byte("a"), time.Hour)
		assertions.Nil(err, "failed to set")

		err = store.Update(ctx, k, func(current []byte) ([]byte, error) {
			return append(current, 'b'), nil
		})
		assertions.Nil(err, "failed to update")

		err = store.Update(ctx, k, func(current []byte) ([]byte, error) {
			return nil, errAbort
		})
		assertions.ErrorIs(err, errAbort)

		value, err := store.Get(ctx, k)
		assertions.Nil(err, "failed to get")
		assertions.Equal([]byte("ab"), value)
	})
	t.Run("ConcurrentUpdate", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		k := key("/claim/")
		err := store.Set(ctx, k, []byte("free"), time.Hour)
		assertions.Nil(err, "failed to set")

		var (
			mu      sync.Mutex
			winners int
			wg      sync.WaitGroup
		)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := store.Update(ctx, k, func(current []byte) ([]byte, error) {
					if string(current) != "free" {
						return nil, errAbort
					}
					return []byte("taken"), nil
				})
				if err == nil {
					mu.Lock()
					winners++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assertions.Equal(1, winners, "exactly one claim must succeed")
	})
	t.Run("Expiration", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		prefix := key("/ttl/") + "/"
		short, long := prefix+"short", prefix+"long"

		err := store.Set(ctx, short, []byte("x"), time.Second)
		assertions.Nil(err, "failed to set short")
		err = store.Set(ctx, long, []byte("y"), time.Hour)
		assertions.Nil(err, "failed to set long")

		elapse(2 * time.Second)

		_, err = store.Get(ctx, short)
		assertions.ErrorIs(err, cache.ErrNotFound)

		value, err := store.Get(ctx, long)
		assertions.Nil(err, "failed to get long")
		assertions.Equal([]byte("y"), value)

		_, err = store.Purge(ctx, prefix)
		assertions.Nil(err, "failed to purge")

		_, err = store.Get(ctx, long)
		assertions.Nil(err, "purge removed a live key")
	})
}
