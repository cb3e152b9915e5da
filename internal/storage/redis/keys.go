package redis

import (
	"fmt"

	"github.com/emberhollow/sessiond/internal/model"
)

// Key prefix for all session data
const keyPrefix = "sessiond"

// sessionKey returns the Redis key for a player's session record
func sessionKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:session:%s", keyPrefix, id)
}
