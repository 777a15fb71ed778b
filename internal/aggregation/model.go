package aggregation

import "encoding/json"

// EventTypeTaskEnded is the event type that marks a fetch task as finished
const EventTypeTaskEnded = "TaskEnded"

// Event represents a single event record of a fetch task
type Event struct {
	Type string `json:"type"`
}

// Account represents an account of a user as returned by the resource API.
// The optional fields are only present if the granted scopes allow them.
type Account struct {
	ID            string      `json:"id"`
	Balance       json.Number `json:"balance"`
	Type          string      `json:"type,omitempty"`
	Subtype       string      `json:"subtype,omitempty"`
	RoutingNumber string      `json:"routingNumber,omitempty"`
}

// Transaction represents a single transaction of an account
type Transaction struct {
	ID        string      `json:"id"`
	AccountID string      `json:"accountId"`
	Amount    json.Number `json:"amount"`
	Memo      string      `json:"memo"`
}

type fetchResponse struct {
	TaskID string `json:"taskId"`
}

type taskResponse struct {
	Events []*Event `json:"events"`
}

type accountsResponse struct {
	Accounts []*Account `json:"accounts"`
}

type transactionsResponse struct {
	Transactions []*Transaction `json:"transactions"`
}
