package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/RogueTeam/remit/logging"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func Test_New(t *testing.T) {
	t.Run("JSON", func(t *testing.T) {
		assertions := assert.New(t)

		var out bytes.Buffer
		logger, err := logging.New(logging.Config{Level: "debug", Format: logging.FormatJSON, Output: &out})
		if !assertions.Nil(err, "failed to build logger") {
			return
		}
		assertions.Equal(logrus.DebugLevel, logger.GetLevel())

		logger.WithField("transaction_id", "tx-1").Debug("hello")
		var entry map[string]any
		assertions.Nil(json.Unmarshal(out.Bytes(), &entry))
		assertions.Equal("tx-1", entry["transaction_id"])
		assertions.Equal("hello", entry["msg"])
	})
	t.Run("Defaults", func(t *testing.T) {
		assertions := assert.New(t)

		logger, err := logging.New(logging.Config{})
		assertions.Nil(err)
		assertions.Equal(logrus.InfoLevel, logger.GetLevel())
	})
	t.Run("Invalid", func(t *testing.T) {
		assertions := assert.New(t)

		_, err := logging.New(logging.Config{Level: "loud"})
		assertions.NotNil(err)
		_, err = logging.New(logging.Config{Format: "xml"})
		assertions.NotNil(err)
	})
}
