package orders

const (
	TopicOrderCreated    = "order.created"
	TopicStatusChanged   = "order.status.changed"
	TopicCancelRequested = "order.cancel.requested"
	TopicCancelResolved  = "order.cancel.resolved"
)

// Topics lists every lifecycle topic, for consumers that want all of them.
var Topics = []string{
	TopicOrderCreated,
	TopicStatusChanged,
	TopicCancelRequested,
	TopicCancelResolved,
}

// Partition key = order_id, supaya semua event 1 order maintain urutan.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
