package orders

// TopicOrderCreated is the single well-known topic (Kafka) or queue (RabbitMQ)
// carrying OrderCreated events.
const TopicOrderCreated = "order_created"

// PartitionKey keeps every event of one SKU on the same partition and worker.
func PartitionKey(sku string) []byte { return []byte(sku) }
