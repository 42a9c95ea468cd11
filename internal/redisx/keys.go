package redisx

import (
	"fmt"
	"time"
)

// KeyOrder caches a persisted order: order:{id} -> JSON order.
const KeyOrder = "order:%d"

// Orders are immutable once stored, so the TTL only bounds memory.
var TTLOrderCache = 5 * time.Minute

func OrderKey(id int64) string { return fmt.Sprintf(KeyOrder, id) }
