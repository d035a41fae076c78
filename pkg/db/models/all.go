package models

// All lists every persisted model, in dependency order, for SQLite
// auto-migration in tests and local runs.
func All() []any {
	return []any{
		&Product{},
		&ProductVariant{},
		&InventoryBatch{},
		&InventorySale{},
		&StockReservation{},
		&Order{},
		&User{},
		&PointsEntry{},
		&Coupon{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
