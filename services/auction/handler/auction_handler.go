package handler

//go:generate mockgen -source=auction_handler.go -destination=mock_auction_service.go -package=handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	auction "auction-marketplace/internal/auctionService"
	"auction-marketplace/internal/biddingerrors"
	model "auction-marketplace/internal/models"
	"auction-marketplace/services/helpers"
	"auction-marketplace/utils"

	"github.com/gin-gonic/gin"
)

// endDateLayouts lists the accepted endDate encodings, most specific first.
// The second one is what an HTML datetime-local input submits.
var endDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

type AuctionServiceInterface interface {
	CreateAuction(ctx context.Context, ownerID string, in auction.CreateInput) (model.AuctionItem, error)
	GetAuction(ctx context.Context, itemID string) (model.AuctionItem, error)
	ListAuctions(ctx context.Context) ([]model.AuctionItem, error)
	ListAuctionsByOwner(ctx context.Context, ownerID string) ([]model.AuctionItem, error)
	UpdateAuction(ctx context.Context, itemID, userID string, in auction.UpdateInput) (model.AuctionItem, error)
	DeleteAuction(ctx context.Context, itemID, userID string) error
	GetWinner(ctx context.Context, itemID string) (model.Winner, error)
	GetAuctionsWonByUser(ctx context.Context, userID string) ([]model.WonAuction, error)
}

type AuctionHandler struct {
	service        AuctionServiceInterface
	maxUploadBytes int64
}

// NewAuctionHandler creates a handler; maxUploadBytes bounds the whole multipart request
func NewAuctionHandler(service AuctionServiceInterface, maxUploadBytes int64) *AuctionHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = auction.DefaultMaxImageBytes
	}
	return &AuctionHandler{service: service, maxUploadBytes: maxUploadBytes}
}

// CreateAuctionHandler handles POST /auctions
func (h *AuctionHandler) CreateAuctionHandler(c *gin.Context) {
	h.limitBody(c)

	var form helpers.AuctionForm
	if err := c.ShouldBind(&form); err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", err)
		return
	}

	image, closeImage, err := formImage(c)
	if err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", err)
		return
	}
	if image == nil {
		utils.JSONError(c, http.StatusBadRequest, biddingerrors.ErrInvalidInput, "Image is required.")
		utils.Warn("CreateAuctionHandler: missing image", nil)
		return
	}
	defer closeImage()

	startingBid, err := parseStartingBid(form.StartingBid)
	if err != nil {
		helpers.RespondError(c, "CreateAuctionHandler", err, nil)
		return
	}
	endDate, err := parseEndDate(form.EndDate)
	if err != nil {
		helpers.RespondError(c, "CreateAuctionHandler", err, nil)
		return
	}

	ownerID := helpers.UserID(c)
	item, err := h.service.CreateAuction(c.Request.Context(), ownerID, auction.CreateInput{
		Title:       form.Title,
		Description: form.Description,
		StartingBid: startingBid,
		EndDate:     endDate,
		Image:       image,
	})
	if err != nil {
		helpers.RespondError(c, "CreateAuctionHandler", err, map[string]any{"ownerId": ownerID})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, item, "auction created successfully")
	helpers.LogSuccess("CreateAuctionHandler", "auction created successfully", map[string]any{
		"auctionId": item.ItemID,
		"ownerId":   ownerID,
	})
}

// GetAuctionHandler handles GET /auctions/:id
func (h *AuctionHandler) GetAuctionHandler(c *gin.Context) {
	itemID := c.Param("id")
	item, err := h.service.GetAuction(c.Request.Context(), itemID)
	if err != nil {
		helpers.RespondError(c, "GetAuctionHandler", err, map[string]any{"auctionId": itemID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, item, "auction retrieved successfully")
}

// ListAuctionsHandler handles GET /auctions
func (h *AuctionHandler) ListAuctionsHandler(c *gin.Context) {
	items, err := h.service.ListAuctions(c.Request.Context())
	if err != nil {
		helpers.RespondError(c, "ListAuctionsHandler", err, nil)
		return
	}
	if items == nil {
		items = []model.AuctionItem{}
	}

	utils.JSONResponse(c, http.StatusOK, items, "auctions retrieved successfully")
	helpers.LogSuccess("ListAuctionsHandler", "auctions retrieved successfully", map[string]any{"count": len(items)})
}

// ListOwnAuctionsHandler handles GET and POST /auctions/user
func (h *AuctionHandler) ListOwnAuctionsHandler(c *gin.Context) {
	ownerID := helpers.UserID(c)
	items, err := h.service.ListAuctionsByOwner(c.Request.Context(), ownerID)
	if err != nil {
		helpers.RespondError(c, "ListOwnAuctionsHandler", err, map[string]any{"ownerId": ownerID})
		return
	}
	if items == nil {
		items = []model.AuctionItem{}
	}

	utils.JSONResponse(c, http.StatusOK, helpers.AuctionItemsResponse{AuctionItems: items}, "auctions retrieved successfully")
}

// UpdateAuctionHandler handles PUT /auctions/:id
func (h *AuctionHandler) UpdateAuctionHandler(c *gin.Context) {
	h.limitBody(c)
	itemID := c.Param("id")

	var form helpers.AuctionForm
	if err := c.ShouldBind(&form); err != nil {
		helpers.HandleBindError(c, "UpdateAuctionHandler", err)
		return
	}

	image, closeImage, err := formImage(c)
	if err != nil {
		helpers.HandleBindError(c, "UpdateAuctionHandler", err)
		return
	}
	if image != nil {
		defer closeImage()
	}

	in := auction.UpdateInput{Image: image}
	if form.Title != "" {
		in.Title = &form.Title
	}
	if form.Description != "" {
		in.Description = &form.Description
	}
	if form.StartingBid != "" {
		v, err := parseStartingBid(form.StartingBid)
		if err != nil {
			helpers.RespondError(c, "UpdateAuctionHandler", err, map[string]any{"auctionId": itemID})
			return
		}
		in.StartingBid = &v
	}
	if form.EndDate != "" {
		v, err := parseEndDate(form.EndDate)
		if err != nil {
			helpers.RespondError(c, "UpdateAuctionHandler", err, map[string]any{"auctionId": itemID})
			return
		}
		in.EndDate = &v
	}

	userID := helpers.UserID(c)
	item, err := h.service.UpdateAuction(c.Request.Context(), itemID, userID, in)
	if err != nil {
		helpers.RespondError(c, "UpdateAuctionHandler", err, map[string]any{"auctionId": itemID, "userId": userID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, item, "auction updated successfully")
	helpers.LogSuccess("UpdateAuctionHandler", "auction updated successfully", map[string]any{"auctionId": itemID})
}

// DeleteAuctionHandler handles DELETE /auctions/:id
func (h *AuctionHandler) DeleteAuctionHandler(c *gin.Context) {
	itemID := c.Param("id")
	userID := helpers.UserID(c)

	if err := h.service.DeleteAuction(c.Request.Context(), itemID, userID); err != nil {
		helpers.RespondError(c, "DeleteAuctionHandler", err, map[string]any{"auctionId": itemID, "userId": userID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, gin.H{"id": itemID}, "auction item and associated bids deleted successfully")
	helpers.LogSuccess("DeleteAuctionHandler", "auction deleted", map[string]any{"auctionId": itemID, "userId": userID})
}

// GetWinnerHandler handles GET /auctions/winner/:id
func (h *AuctionHandler) GetWinnerHandler(c *gin.Context) {
	itemID := c.Param("id")
	winner, err := h.service.GetWinner(c.Request.Context(), itemID)
	if err != nil {
		helpers.RespondError(c, "GetWinnerHandler", err, map[string]any{"auctionId": itemID})
		return
	}

	if winner.User == nil {
		utils.JSONResponse(c, http.StatusOK, winner, "no winner")
		return
	}
	utils.JSONResponse(c, http.StatusOK, winner, "winner retrieved successfully")
	helpers.LogSuccess("GetWinnerHandler", "winner resolved", map[string]any{
		"auctionId": itemID,
		"userId":    winner.User.UserID,
	})
}

// GetWonAuctionsHandler handles GET and POST /auctions/won
func (h *AuctionHandler) GetWonAuctionsHandler(c *gin.Context) {
	userID := helpers.UserID(c)
	won, err := h.service.GetAuctionsWonByUser(c.Request.Context(), userID)
	if err != nil {
		helpers.RespondError(c, "GetWonAuctionsHandler", err, map[string]any{"userId": userID})
		return
	}
	if won == nil {
		won = []model.WonAuction{}
	}

	utils.JSONResponse(c, http.StatusOK, helpers.WonAuctionsResponse{WonAuctions: won}, "won auctions retrieved successfully")
}

func (h *AuctionHandler) limitBody(c *gin.Context) {
	// leave room for the text fields and multipart framing around the image
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+1<<20)
}

// formImage opens the optional "image" file part; a nil reader means none was sent
func formImage(c *gin.Context) (io.Reader, func(), error) {
	header, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, nil, err
	}
	f, err := header.Open()
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

func parseStartingBid(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, fmt.Errorf("handler: %w - startingBid must be a non-negative number", biddingerrors.ErrInvalidInput)
	}
	return v, nil
}

func parseEndDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range endDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("handler: %w - endDate %q is not a valid date", biddingerrors.ErrInvalidInput, raw)
}
