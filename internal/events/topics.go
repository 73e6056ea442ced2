package events

const (
	TopicOrderPlaced        = "order.placed"
	TopicOrderStatusChanged = "order.status.changed"
	TopicProductDeleted     = "catalog.product.deleted"
)

var topicByType = map[string]string{
	EventOrderPlaced:        TopicOrderPlaced,
	EventOrderStatusChanged: TopicOrderStatusChanged,
	EventProductDeleted:     TopicProductDeleted,
}

// TopicFor returns the topic an event type is published on.
func TopicFor(eventType string) (string, bool) {
	t, ok := topicByType[eventType]
	return t, ok
}

// Partition key = aggregate id, so every event of one order (or product)
// lands on the same partition and keeps its order.
func PartitionKey(id string) []byte { return []byte(id) }
