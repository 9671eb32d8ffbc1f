package topics

const (
	// Ordens
	OrderPlaced         = "order_placed"
	OrderCanceled       = "order_canceled"
	OrderCounterUpdated = "order_counter_updated"

	// Book
	BookSnapshots = "book_snapshots"

	// DLQs
	OrderAuditDLQ = "order_audit_dlq"
)

// All lista os tópicos criados no ambiente local
var All = []string{OrderPlaced, OrderCanceled, OrderCounterUpdated, BookSnapshots, OrderAuditDLQ}
