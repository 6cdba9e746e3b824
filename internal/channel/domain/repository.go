package domain

// Repository is the channel store. Lookups report absence with ok=false.
type Repository interface {
	FindActiveByUser(userID string) (*Channel, bool)
	FindAnyByUser(userID string) (*Channel, bool)
	FindByHead(headID string) (*Channel, bool)
	FindPayment(paymentID string) (Payment, bool)
	Put(channel *Channel) error
	Remove(headID string)
	Stats() Stats
}
