package integration

import (
	"fmt"
	"time"
)

// TestUser returns credentials unique to this run. The suffix names the
// scenario so a leaked row in a shared database points back to its test.
func TestUser(suffix string) (email, password string) {
	email = fmt.Sprintf("reader-%d-%s@ishaazi.test", time.Now().UnixNano(), suffix)
	return email, "TestPassword123!"
}
