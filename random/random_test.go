package random_test

import (
	"strings"
	"testing"

	"github.com/RogueTeam/remit/random"
	"github.com/stretchr/testify/assert"
)

func Test_Id(t *testing.T) {
	assertions := assert.New(t)

	seen := map[string]struct{}{}
	for range 100 {
		id := random.Id("rl", 24)
		assertions.True(strings.HasPrefix(id, "rl_"))
		assertions.Len(id, 27)

		_, duplicated := seen[id]
		assertions.False(duplicated, "duplicated id")
		seen[id] = struct{}{}
	}
}

func Test_String(t *testing.T) {
	assertions := assert.New(t)

	s := random.String(random.PseudoRand, random.CharsetDigits, 16)
	assertions.Len(s, 16)
	assertions.Empty(strings.Trim(s, random.CharsetDigits))
}
