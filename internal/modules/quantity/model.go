package quantity

// AdjustRequest sets one item's quantity.
type AdjustRequest struct {
	Quantity int `json:"quantity"`
}

// AggregateRequest sets the total of every item sold under one service name.
type AggregateRequest struct {
	Service string `json:"service"`
	Total   int    `json:"total"`
}
