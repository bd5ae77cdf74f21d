package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/RogueTeam/remit/cache/memory"
	"github.com/RogueTeam/remit/cache/testsuite"
	"github.com/RogueTeam/remit/utils"
	"github.com/stretchr/testify/assert"
)

func Test_Memory(t *testing.T) {
	clock := utils.NewFakeClock(time.Now())
	store := memory.New(clock)
	testsuite.Test(t, store, clock.Advance)
}

func Test_Purge(t *testing.T) {
	assertions := assert.New(t)

	ctx := context.TODO()
	clock := utils.NewFakeClock(time.Now())
	store := memory.New(clock)

	for _, key := range []string{"lock/a", "lock/b", "quote/c"} {
		err := store.Set(ctx, key, []byte(key), time.Minute)
		assertions.Nil(err, "failed to set")
	}
	err := store.Set(ctx, "lock/forever", []byte("x"), 0)
	assertions.Nil(err, "failed to set")

	clock.Advance(time.Minute)

	purged, err := store.Purge(ctx, "lock/")
	assertions.Nil(err, "failed to purge")
	assertions.Equal(2, purged)

	purged, err = store.Purge(ctx, "")
	assertions.Nil(err, "failed to purge")
	assertions.Equal(1, purged)

	_, err = store.Get(ctx, "lock/forever")
	assertions.Nil(err, "entries without ttl never expire")
}
