package models

import "time"

// User represents a registered marketplace participant
type User struct {
	UserID       string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AuctionItem represents an item listed for timed bidding
type AuctionItem struct {
	ItemID      string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartingBid float64   `json:"startingBid"`
	EndDate     time.Time `json:"endDate"`
	Image       string    `json:"image,omitempty"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// HasEnded reports whether bidding on the item is closed at the given instant.
// Closure is never stored; it is evaluated against the clock on every read.
func (a AuctionItem) HasEnded(now time.Time) bool {
	return !now.Before(a.EndDate)
}

// Bid represents a user's bid on an auction item
type Bid struct {
	BidID         string    `json:"id"`
	AuctionItemID string    `json:"auctionItemId"`
	UserID        string    `json:"userId"`
	BidAmount     float64   `json:"bidAmount"`
	CreatedAt     time.Time `json:"createdAt"`
}

// WonAuction summarizes an ended auction whose highest bid belongs to a user
type WonAuction struct {
	AuctionID   string    `json:"auctionId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Image       string    `json:"image"`
	WinningBid  float64   `json:"winningBid"`
	EndDate     time.Time `json:"endDate"`
}

// Winner is the outcome of resolving an ended auction. User is nil when
// the auction closed without bids.
type Winner struct {
	User       *User `json:"winner"`
	WinningBid *Bid  `json:"winningBid,omitempty"`
}
