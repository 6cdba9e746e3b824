package hydra

import "time"

// Wire shapes of the node REST API. Amounts are lovelace.

type CommitRequest struct {
	Parties []string `json:"parties"`
	UTxO    struct {
		Amount int64 `json:"amount"`
	} `json:"utxo"`
}

type CommitResponse struct {
	Success bool       `json:"success"`
	HeadID  string     `json:"headId"`
	Status  HeadStatus `json:"status"`
	Message string     `json:"message,omitempty"`
}

type HeadResponse struct {
	Success          bool       `json:"success"`
	HeadID           string     `json:"headId"`
	Status           HeadStatus `json:"status"`
	Balance          int64      `json:"balance"`
	TransactionCount int        `json:"transactionCount"`
	CreatedAt        time.Time  `json:"createdAt"`
	OpenedAt         *time.Time `json:"openedAt,omitempty"`
	Parties          []string   `json:"parties"`
}

type SubmitRequest struct {
	Transaction Tx `json:"transaction"`
}

type SubmitResponse struct {
	Success          bool      `json:"success"`
	TransactionID    string    `json:"transactionId"`
	ConfirmedAt      time.Time `json:"confirmedAt"`
	ProcessingTimeMs int64     `json:"processingTimeMs"`
}

type CloseResponse struct {
	Success          bool   `json:"success"`
	TransactionID    string `json:"transactionId"`
	FinalBalance     int64  `json:"finalBalance"`
	TransactionCount int    `json:"transactionCount"`
	Message          string `json:"message,omitempty"`
}

// Transaction is a confirmed in-head transfer as the node records it.
type Transaction struct {
	TransactionID    string     `json:"transactionId"`
	HeadID           string     `json:"headId"`
	From             string     `json:"from"`
	To               string     `json:"to"`
	Amount           int64      `json:"amount"`
	Metadata         TxMetadata `json:"metadata"`
	ConfirmedAt      time.Time  `json:"confirmedAt"`
	ProcessingTimeMs int64      `json:"processingTimeMs"`
}

type TransactionResponse struct {
	Success     bool        `json:"success"`
	Transaction Transaction `json:"transaction"`
}

type HealthResponse struct {
	Status            string  `json:"status"`
	UptimeSeconds     float64 `json:"uptime"`
	ActiveHeads       int     `json:"activeHeads"`
	TotalTransactions int     `json:"totalTransactions"`
}

// ErrorResponse is returned with any non-2xx status.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	NotOpen bool   `json:"notOpen,omitempty"`
}

const HealthyStatus = "healthy"
