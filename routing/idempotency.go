package routing

import (
	"fmt"

	"github.com/RogueTeam/remit/rails"
	"github.com/google/uuid"
)

// Namespace of the provider idempotency tokens
var idempotencyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/RogueTeam/remit/idempotency"))

// IdempotencyKey identifies one logical provider call. Retries with the same
// parameters share the key; a parameter change bumps generation
func IdempotencyKey(transactionId uuid.UUID, rail rails.Rail, step rails.Step, generation int) (key string) {
	name := fmt.Sprintf("%s/%s/%s/%d", transactionId, rail, step, generation)
	return uuid.NewSHA1(idempotencyNamespace, []byte(name)).String()
}
