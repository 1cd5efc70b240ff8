package bidding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"auction-marketplace/internal/biddingerrors"
	"auction-marketplace/internal/events"
	"auction-marketplace/internal/models"
	"auction-marketplace/internal/repository"
	"auction-marketplace/utils"
)

// BiddingService defines the business logic for auction bidding
type BiddingService struct {
	repo      repository.AuctionDB
	publisher events.Publisher
	now       func() time.Time
}

// NewBiddingService creates a new BiddingService instance
func NewBiddingService(repo repository.AuctionDB, publisher events.Publisher) *BiddingService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &BiddingService{
		repo:      repo,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source used for end-date checks
func (s *BiddingService) WithClock(now func() time.Time) *BiddingService {
	s.now = now
	return s
}

// PlaceBid validates and records a user's bid for an item
func (s *BiddingService) PlaceBid(ctx context.Context, itemID, userID string, amount float64) (models.Bid, error) {
	if err := validateBid(itemID, userID, amount); err != nil {
		return models.Bid{}, err
	}

	item, err := s.repo.GetAuction(ctx, itemID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to load auction %s: %w", itemID, err)
	}
	if item.CreatedBy == userID {
		return models.Bid{}, fmt.Errorf("service: %w - owners cannot bid on their own auction", biddingerrors.ErrForbidden)
	}

	now := s.now()
	if item.HasEnded(now) {
		return models.Bid{}, fmt.Errorf("service: %w - auction %s ended at %s", biddingerrors.ErrAuctionClosed, itemID, item.EndDate.Format(time.RFC3339))
	}

	bid := models.Bid{
		BidID:         utils.GenerateID(),
		AuctionItemID: itemID,
		UserID:        userID,
		BidAmount:     amount,
		CreatedAt:     now,
	}

	// the store re-checks closing time and the current maximum atomically
	if err := s.repo.RecordBidForItem(ctx, bid, now); err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to record bid for item %s by user %s: %w", itemID, userID, err)
	}

	s.publish(ctx, events.Event{
		Type:      events.TypeBidPlaced,
		AuctionID: itemID,
		UserID:    userID,
		Amount:    amount,
		Timestamp: now,
	})

	return bid, nil
}

// validateBid checks input validity before touching the store
func validateBid(itemID, userID string, amount float64) error {
	if itemID == "" || userID == "" {
		return fmt.Errorf("service: %w - missing itemID or userID", biddingerrors.ErrInvalidBid)
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fmt.Errorf("service: %w - bid amount is not a finite number", biddingerrors.ErrInvalidBid)
	}
	if amount <= 0 {
		return fmt.Errorf("service: %w - non-positive bid amount", biddingerrors.ErrInvalidBid)
	}
	return nil
}

// GetBidsForItem returns all bids for an existing item, highest first
func (s *BiddingService) GetBidsForItem(ctx context.Context, itemID string) ([]models.Bid, error) {
	if itemID == "" {
		return nil, fmt.Errorf("service: %w - empty item ID", biddingerrors.ErrInvalidBid)
	}
	if _, err := s.repo.GetAuction(ctx, itemID); err != nil {
		return nil, fmt.Errorf("service: failed to load auction %s: %w", itemID, err)
	}

	bids, err := s.repo.GetBidsByItem(ctx, itemID)
	if errors.Is(err, biddingerrors.ErrNoBids) {
		return []models.Bid{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for item %s: %w", itemID, err)
	}

	return bids, nil
}

// GetWinningBid returns the highest bid for a specific item
func (s *BiddingService) GetWinningBid(ctx context.Context, itemID string) (models.Bid, error) {
	if itemID == "" {
		return models.Bid{}, fmt.Errorf("service: %w - empty item ID", biddingerrors.ErrInvalidBid)
	}

	winningBid, err := s.repo.GetWinningBid(ctx, itemID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to get winning bid for item %s: %w", itemID, err)
	}

	return winningBid, nil
}

// GetBidsByUser returns every bid a user has placed, highest first
func (s *BiddingService) GetBidsByUser(ctx context.Context, userID string) ([]models.Bid, error) {
	if userID == "" {
		return nil, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidBid)
	}

	bids, err := s.repo.GetBidsByUser(ctx, userID)
	if errors.Is(err, biddingerrors.ErrUserNoBids) {
		return []models.Bid{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for user %s: %w", userID, err)
	}

	return bids, nil
}

func (s *BiddingService) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		utils.Warn("Failed to publish auction event", map[string]any{
			"type":      event.Type,
			"auctionID": event.AuctionID,
			"error":     err.Error(),
		})
	}
}
