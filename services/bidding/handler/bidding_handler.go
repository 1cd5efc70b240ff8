package handler

//go:generate mockgen -source=bidding_handler.go -destination=mock_bidding_service.go -package=handler

import (
	"context"
	"net/http"

	model "auction-marketplace/internal/models"
	"auction-marketplace/services/helpers"
	"auction-marketplace/utils"

	"github.com/gin-gonic/gin"
)

type BiddingServiceInterface interface {
	PlaceBid(ctx context.Context, itemID, userID string, amount float64) (model.Bid, error)
	GetBidsForItem(ctx context.Context, itemID string) ([]model.Bid, error)
	GetWinningBid(ctx context.Context, itemID string) (model.Bid, error)
	GetBidsByUser(ctx context.Context, userID string) ([]model.Bid, error)
}

type BiddingHandler struct {
	service BiddingServiceInterface
}

func NewBiddingHandler(service BiddingServiceInterface) *BiddingHandler {
	return &BiddingHandler{service: service}
}

// RecordBidHandler handles POST /bids
func (h *BiddingHandler) RecordBidHandler(c *gin.Context) {
	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "RecordBidHandler", err)
		return
	}

	userID := helpers.UserID(c)
	bid, err := h.service.PlaceBid(c.Request.Context(), req.AuctionItemID, userID, req.BidAmount)
	if err != nil {
		helpers.RespondError(c, "RecordBidHandler", err, map[string]any{
			"auctionItemId": req.AuctionItemID,
			"userId":        userID,
			"bidAmount":     req.BidAmount,
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.NewBidResponse(bid), "bid recorded successfully")
	helpers.LogSuccess("RecordBidHandler", "bid recorded successfully", map[string]any{
		"bidId":         bid.BidID,
		"auctionItemId": bid.AuctionItemID,
		"userId":        userID,
		"bidAmount":     bid.BidAmount,
	})
}

// GetBidsByItemHandler handles GET /bids/:id
func (h *BiddingHandler) GetBidsByItemHandler(c *gin.Context) {
	itemID := c.Param("id")
	bids, err := h.service.GetBidsForItem(c.Request.Context(), itemID)
	if err != nil {
		helpers.RespondError(c, "GetBidsByItemHandler", err, map[string]any{"auctionItemId": itemID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewBidResponses(bids), "bids retrieved successfully")
	helpers.LogSuccess("GetBidsByItemHandler", "bids retrieved successfully", map[string]any{
		"auctionItemId": itemID,
		"count":         len(bids),
	})
}

// GetHighestBidHandler handles GET /bids/:id/highest
func (h *BiddingHandler) GetHighestBidHandler(c *gin.Context) {
	itemID := c.Param("id")
	bid, err := h.service.GetWinningBid(c.Request.Context(), itemID)
	if err != nil {
		helpers.RespondError(c, "GetHighestBidHandler", err, map[string]any{"auctionItemId": itemID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewBidResponse(bid), "highest bid retrieved successfully")
	helpers.LogSuccess("GetHighestBidHandler", "highest bid retrieved successfully", map[string]any{
		"bidId":         bid.BidID,
		"auctionItemId": bid.AuctionItemID,
		"userId":        bid.UserID,
		"bidAmount":     bid.BidAmount,
	})
}

// GetBidsByUserHandler handles GET and POST /bids/user
func (h *BiddingHandler) GetBidsByUserHandler(c *gin.Context) {
	userID := helpers.UserID(c)
	bids, err := h.service.GetBidsByUser(c.Request.Context(), userID)
	if err != nil {
		helpers.RespondError(c, "GetBidsByUserHandler", err, map[string]any{"userId": userID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.BidsResponse{Bids: helpers.NewBidResponses(bids)}, "bids retrieved successfully")
	helpers.LogSuccess("GetBidsByUserHandler", "bids retrieved successfully", map[string]any{
		"userId": userID,
		"count":  len(bids),
	})
}
