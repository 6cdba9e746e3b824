package hydra

import "time"

type EventTag string

const (
	TagHeadIsOpen   EventTag = "HeadIsOpen"
	TagTxValid      EventTag = "TxValid"
	TagHeadIsClosed EventTag = "HeadIsClosed"
)

// HeadEvent is pushed by the node. Only the fields relevant to Tag are set.
type HeadEvent struct {
	Tag                  EventTag  `json:"tag"`
	HeadID               string    `json:"headId"`
	TxHash               string    `json:"txHash,omitempty"`
	AmountLovelace       int64     `json:"amount,omitempty"`
	FinalBalanceLovelace int64     `json:"finalBalance,omitempty"`
	Timestamp            time.Time `json:"timestamp"`
}

func (t EventTag) Known() bool {
	switch t {
	case TagHeadIsOpen, TagTxValid, TagHeadIsClosed:
		return true
	}
	return false
}
