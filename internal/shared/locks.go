package shared

import (
	"fmt"

	"github.com/google/uuid"
)

// ReconcileLockKey builds the redis key serialising reconciliation runs per shop.
// Runs without a shop share a single key.
func ReconcileLockKey(shopID *uuid.UUID) string {
	if shopID == nil {
		return "reconcile:shop:unassigned:lock"
	}
	return fmt.Sprintf("reconcile:shop:%s:lock", shopID.String())
}
