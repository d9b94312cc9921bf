package event

// Topic and consumer-group names shared across services.
const (
	TopicOrderCreated   = "order-created"
	TopicProductUpdated = "product-updated"

	GroupProductService = "product-service-group"
	GroupUserService    = "user-service"

	// DeadLetterSuffix is appended to a topic name to form its dead-letter topic.
	DeadLetterSuffix = ".dlq"
)

// OrderCreated is published by the order service once per accepted order,
// keyed by ProductID so all orders for a product land on one partition.
type OrderCreated struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	UserID    string `json:"userId"`
}

// ProductUpdated is published after a successful stock decrement. OrderID is
// the correlation id minted for the order; downstream consumers dedup on it.
type ProductUpdated struct {
	Email   string `json:"email"`
	OrderID string `json:"order_id"`
}

// DeadLetterTopic returns the dead-letter topic for topic.
func DeadLetterTopic(topic string) string {
	return topic + DeadLetterSuffix
}
