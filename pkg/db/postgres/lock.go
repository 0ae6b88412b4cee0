package postgres

import (
	"context"
	"fmt"
	"math"

	"github.com/uptrace/bun"
)

// Advisory lock namespaces. The first key of the two-key form.
const (
	LockNamespaceUnit int32 = 0x5742
)

// LockUnit takes the transaction-scoped advisory lock serializing writers on
// one unit's calendar. It is released at commit or rollback and waits at most
// the transaction's lock_timeout.
func LockUnit(ctx context.Context, db bun.IDB, unitID int64) error {
	key := int32(unitID % math.MaxInt32)
	if _, err := db.ExecContext(ctx, "SELECT pg_advisory_xact_lock(?, ?)", LockNamespaceUnit, key); err != nil {
		return fmt.Errorf("failed to lock unit %d: %w", unitID, err)
	}
	return nil
}
