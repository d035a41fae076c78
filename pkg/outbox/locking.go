package outbox

import "gorm.io/gorm/clause"

func forUpdateSkipLocked() clause.Locking {
	return clause.Locking{Strength: clause.LockingStrengthUpdate, Options: clause.LockingOptionsSkipLocked}
}
