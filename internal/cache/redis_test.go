package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimelineMemberUniqueAtSameInstant(t *testing.T) {
	// A burst of appends sharing one timestamp must produce distinct
	// sorted-set members, or the counter undercounts the burst.
	at := time.Now()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		member := timelineMember(at)
		assert.False(t, seen[member], "duplicate member %s", member)
		seen[member] = true
	}
}
