package orders

import (
	"strconv"
	"time"
)

type Order struct {
	ID         int64
	SKU        string
	ProductRef int
	Quantity   int
	CreatedAt  time.Time
}

type PlaceOrderRequest struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// ReduceOutcome is what the ledger answered to a reduce call. StatusCode is 0
// when no response was received.
type ReduceOutcome struct {
	Success    bool
	StatusCode int
}

// Result is the terminal state of one placement.
type Result struct {
	State     Status
	OrderID   int64
	Available int
}

// ProductRefFromSKU parses the run of trailing digits of sku, scanning from the
// end until the first non-digit. It returns 0 when there is no such run or it
// does not fit an int.
func ProductRefFromSKU(sku string) int {
	i := len(sku)
	for i > 0 && sku[i-1] >= '0' && sku[i-1] <= '9' {
		i--
	}
	if i == len(sku) {
		return 0
	}
	n, err := strconv.Atoi(sku[i:])
	if err != nil {
		return 0
	}
	return n
}
