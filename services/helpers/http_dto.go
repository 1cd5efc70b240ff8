package helpers

import (
	"time"

	"auction-marketplace/internal/models"
)

// Request/Response DTOs
type PlaceBidRequest struct {
	AuctionItemID string  `json:"auctionItemId" binding:"required"`
	BidAmount     float64 `json:"bidAmount" binding:"required,gt=0"`
}

type BidResponse struct {
	BidID         string  `json:"id"`
	AuctionItemID string  `json:"auctionItemId"`
	UserID        string  `json:"userId"`
	BidAmount     float64 `json:"bidAmount"`
	CreatedAt     string  `json:"createdAt"`
}

// NewBidResponse formats a bid for the wire
func NewBidResponse(bid models.Bid) BidResponse {
	return BidResponse{
		BidID:         bid.BidID,
		AuctionItemID: bid.AuctionItemID,
		UserID:        bid.UserID,
		BidAmount:     bid.BidAmount,
		CreatedAt:     bid.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// NewBidResponses formats a list of bids, never returning nil
func NewBidResponses(bids []models.Bid) []BidResponse {
	out := make([]BidResponse, 0, len(bids))
	for _, b := range bids {
		out = append(out, NewBidResponse(b))
	}
	return out
}

type BidsResponse struct {
	Bids []BidResponse `json:"bids"`
}

// AuctionForm is the multipart form used to create or update an auction.
// The image travels as the "image" file part.
type AuctionForm struct {
	Title       string `form:"title"`
	Description string `form:"description"`
	StartingBid string `form:"startingBid"`
	EndDate     string `form:"endDate"`
}

type AuctionItemsResponse struct {
	AuctionItems []models.AuctionItem `json:"auctionItems"`
}

type WonAuctionsResponse struct {
	WonAuctions []models.WonAuction `json:"wonAuctions"`
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}
