package badgerstore_test

import (
	"testing"
	"time"

	"github.com/RogueTeam/remit/cache/badgerstore"
	"github.com/RogueTeam/remit/cache/testsuite"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
)

func Test_Badger(t *testing.T) {
	assertions := assert.New(t)

	options := badger.
		DefaultOptions("").
		WithInMemory(true).
		WithLogger(nil)
	db, err := badger.Open(options)
	if !assertions.Nil(err, "failed to open database") {
		return
	}
	defer db.Close()

	// badger expirations have second granularity
	elapse := func(d time.Duration) { time.Sleep(d + time.Second) }

	testsuite.Test(t, badgerstore.New(db), elapse)
}
