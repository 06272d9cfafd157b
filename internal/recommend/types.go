// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package recommend

// Transaction is one raw purchase line.
type Transaction struct {
	// CustomerID identifies the buyer.
	CustomerID string `json:"customer_id"`

	// ProductID identifies the purchased product.
	ProductID string `json:"product_id"`

	// Quantity is the number of units on the line.
	Quantity float64 `json:"quantity"`

	// Refund marks lines that were refunded. Refunded lines carry no signal.
	Refund bool `json:"refund_flag"`
}

// Interaction is one aggregated (customer, product) pair. It is also the row
// shape of the persisted interaction table.
type Interaction struct {
	CustomerID string  `json:"customer_id"`
	ProductID  string  `json:"product_id"`
	Strength   float64 `json:"strength"`
}

// CooccurrenceRow is one row of the persisted co-occurrence table.
type CooccurrenceRow struct {
	Item    string `json:"item"`
	ItemRec string `json:"item_rec"`
	Score   int    `json:"score"`
}

// RecItem is one entry in a recommendation list.
type RecItem struct {
	ItemID string  `json:"product_id"`
	Score  float64 `json:"score"`
}

// Prediction is the result of a single Predict call.
//
// ColdStart is set when the user has no history in the backing model. It is
// a normal outcome, not an error, and Items is empty.
type Prediction struct {
	Items     []RecItem
	ColdStart bool
}

// Backend names the model family behind a Recommender.
type Backend string

// Supported backends.
const (
	BackendALS          Backend = "als"
	BackendCooccurrence Backend = "cooccurrence"
)

// Valid reports whether b is a known backend.
func (b Backend) Valid() bool {
	return b == BackendALS || b == BackendCooccurrence
}

// Recommender is implemented by every backend. Implementations are
// immutable after construction and safe for concurrent Predict calls.
type Recommender interface {
	// Predict returns at most k items for userID, best first. k < 0 fails
	// with ErrInvalidArgument; k == 0 yields an empty list.
	Predict(userID string, k int) (Prediction, error)

	// Backend reports which model family serves the predictions.
	Backend() Backend
}
