package auction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"auction-marketplace/internal/biddingerrors"
	"auction-marketplace/internal/blobstore"
	"auction-marketplace/internal/events"
	"auction-marketplace/internal/imaging"
	"auction-marketplace/internal/models"
	"auction-marketplace/internal/repository"
	"auction-marketplace/utils"
)

// DefaultMaxImageBytes caps an uploaded image when no limit is configured
const DefaultMaxImageBytes int64 = 10 << 20

// CreateInput carries the fields of a new auction. Image is nil when the
// client did not upload one.
type CreateInput struct {
	Title       string
	Description string
	StartingBid float64
	EndDate     time.Time
	Image       io.Reader
}

// UpdateInput carries a partial update; nil fields are left untouched
type UpdateInput struct {
	Title       *string
	Description *string
	StartingBid *float64
	EndDate     *time.Time
	Image       io.Reader
}

// AuctionService implements the auction lifecycle: listing, editing,
// removal and winner resolution
type AuctionService struct {
	repo          repository.AuctionDB
	blobs         blobstore.Store
	publisher     events.Publisher
	maxImageBytes int64
	now           func() time.Time
}

// NewAuctionService creates a new AuctionService instance
func NewAuctionService(repo repository.AuctionDB, blobs blobstore.Store, publisher events.Publisher, maxImageBytes int64) *AuctionService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if maxImageBytes <= 0 {
		maxImageBytes = DefaultMaxImageBytes
	}
	return &AuctionService{
		repo:          repo,
		blobs:         blobs,
		publisher:     publisher,
		maxImageBytes: maxImageBytes,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source used for lifecycle checks
func (s *AuctionService) WithClock(now func() time.Time) *AuctionService {
	s.now = now
	return s
}

// CreateAuction stores a new auction owned by ownerID
func (s *AuctionService) CreateAuction(ctx context.Context, ownerID string, in CreateInput) (models.AuctionItem, error) {
	if ownerID == "" {
		return models.AuctionItem{}, fmt.Errorf("service: %w - missing owner", biddingerrors.ErrUnauthorized)
	}
	if in.Image == nil {
		return models.AuctionItem{}, fmt.Errorf("service: %w - image is required", biddingerrors.ErrInvalidInput)
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return models.AuctionItem{}, fmt.Errorf("service: %w - title is required", biddingerrors.ErrInvalidInput)
	}
	if err := validateStartingBid(in.StartingBid); err != nil {
		return models.AuctionItem{}, err
	}
	if in.EndDate.IsZero() {
		return models.AuctionItem{}, fmt.Errorf("service: %w - end date is required", biddingerrors.ErrInvalidInput)
	}

	ref, err := s.storeImage(ctx, in.Image)
	if err != nil {
		return models.AuctionItem{}, err
	}

	now := s.now()
	item := models.AuctionItem{
		ItemID:      utils.GenerateID(),
		Title:       in.Title,
		Description: in.Description,
		StartingBid: in.StartingBid,
		EndDate:     in.EndDate.UTC(),
		Image:       ref,
		CreatedBy:   ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.CreateAuction(ctx, item); err != nil {
		s.deleteImage(ctx, ref)
		return models.AuctionItem{}, fmt.Errorf("service: failed to create auction: %w", err)
	}

	return item, nil
}

// GetAuction returns a single auction
func (s *AuctionService) GetAuction(ctx context.Context, itemID string) (models.AuctionItem, error) {
	if itemID == "" {
		return models.AuctionItem{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidInput)
	}
	item, err := s.repo.GetAuction(ctx, itemID)
	if err != nil {
		return models.AuctionItem{}, fmt.Errorf("service: failed to get auction %s: %w", itemID, err)
	}
	return item, nil
}

// ListAuctions returns every auction
func (s *AuctionService) ListAuctions(ctx context.Context) ([]models.AuctionItem, error) {
	items, err := s.repo.ListAuctions(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list auctions: %w", err)
	}
	return items, nil
}

// ListAuctionsByOwner returns the auctions created by ownerID
func (s *AuctionService) ListAuctionsByOwner(ctx context.Context, ownerID string) ([]models.AuctionItem, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("service: %w - missing owner", biddingerrors.ErrUnauthorized)
	}
	items, err := s.repo.ListAuctionsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list auctions of %s: %w", ownerID, err)
	}
	return items, nil
}

// UpdateAuction applies a partial update on behalf of the owner
func (s *AuctionService) UpdateAuction(ctx context.Context, itemID, userID string, in UpdateInput) (models.AuctionItem, error) {
	item, err := s.ownedAuction(ctx, itemID, userID)
	if err != nil {
		return models.AuctionItem{}, err
	}

	if in.Title != nil && strings.TrimSpace(*in.Title) != "" {
		item.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil && *in.Description != "" {
		item.Description = *in.Description
	}
	if in.StartingBid != nil {
		if err := validateStartingBid(*in.StartingBid); err != nil {
			return models.AuctionItem{}, err
		}
		item.StartingBid = *in.StartingBid
	}
	if in.EndDate != nil && !in.EndDate.IsZero() {
		item.EndDate = in.EndDate.UTC()
	}

	oldImage := ""
	if in.Image != nil {
		ref, err := s.storeImage(ctx, in.Image)
		if err != nil {
			return models.AuctionItem{}, err
		}
		oldImage = item.Image
		item.Image = ref
	}
	item.UpdatedAt = s.now()

	if err := s.repo.UpdateAuction(ctx, item); err != nil {
		if in.Image != nil {
			s.deleteImage(ctx, item.Image)
		}
		return models.AuctionItem{}, fmt.Errorf("service: failed to update auction %s: %w", itemID, err)
	}
	if oldImage != "" {
		s.deleteImage(ctx, oldImage)
	}

	return item, nil
}

// DeleteAuction removes the image, every bid and then the auction itself
func (s *AuctionService) DeleteAuction(ctx context.Context, itemID, userID string) error {
	item, err := s.ownedAuction(ctx, itemID, userID)
	if err != nil {
		return err
	}

	if item.Image != "" {
		s.deleteImage(ctx, item.Image)
	}

	removed, err := s.repo.DeleteAuctionWithBids(ctx, itemID)
	if err != nil {
		return fmt.Errorf("service: failed to delete auction %s: %w", itemID, err)
	}

	utils.Info("Auction deleted", map[string]any{"auctionID": itemID, "bidsRemoved": removed})
	s.publish(ctx, events.Event{
		Type:      events.TypeAuctionDeleted,
		AuctionID: itemID,
		UserID:    userID,
		Timestamp: s.now(),
	})
	return nil
}

// GetWinner resolves the winner of an ended auction. The returned Winner has
// a nil User when nobody bid.
func (s *AuctionService) GetWinner(ctx context.Context, itemID string) (models.Winner, error) {
	item, err := s.GetAuction(ctx, itemID)
	if err != nil {
		return models.Winner{}, err
	}
	if !item.HasEnded(s.now()) {
		return models.Winner{}, fmt.Errorf("service: %w - auction %s ends at %s", biddingerrors.ErrAuctionNotEnded, itemID, item.EndDate.Format(time.RFC3339))
	}

	winning, err := s.repo.GetWinningBid(ctx, itemID)
	if errors.Is(err, biddingerrors.ErrNoBids) {
		return models.Winner{}, nil
	}
	if err != nil {
		return models.Winner{}, fmt.Errorf("service: failed to get winning bid for %s: %w", itemID, err)
	}

	user, err := s.repo.GetUser(ctx, winning.UserID)
	if err != nil {
		return models.Winner{}, fmt.Errorf("service: failed to load winner of %s: %w", itemID, err)
	}

	return models.Winner{User: &user, WinningBid: &winning}, nil
}

// GetAuctionsWonByUser lists the ended auctions whose highest bid belongs to userID
func (s *AuctionService) GetAuctionsWonByUser(ctx context.Context, userID string) ([]models.WonAuction, error) {
	if userID == "" {
		return nil, fmt.Errorf("service: %w - missing user", biddingerrors.ErrUnauthorized)
	}

	bids, err := s.repo.GetBidsByUser(ctx, userID)
	if errors.Is(err, biddingerrors.ErrUserNoBids) {
		return []models.WonAuction{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for user %s: %w", userID, err)
	}

	now := s.now()
	won := make([]models.WonAuction, 0)
	seen := make(map[string]bool)

	for _, bid := range bids {
		if seen[bid.AuctionItemID] {
			continue
		}
		seen[bid.AuctionItemID] = true

		item, err := s.repo.GetAuction(ctx, bid.AuctionItemID)
		if errors.Is(err, biddingerrors.ErrItemNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("service: failed to load auction %s: %w", bid.AuctionItemID, err)
		}
		if !item.HasEnded(now) {
			continue
		}

		winning, err := s.repo.GetWinningBid(ctx, item.ItemID)
		if err != nil {
			return nil, fmt.Errorf("service: failed to get winning bid for %s: %w", item.ItemID, err)
		}
		if winning.UserID != userID {
			continue
		}

		won = append(won, models.WonAuction{
			AuctionID:   item.ItemID,
			Title:       item.Title,
			Description: item.Description,
			Image:       item.Image,
			WinningBid:  winning.BidAmount,
			EndDate:     item.EndDate,
		})
	}

	return won, nil
}

func (s *AuctionService) ownedAuction(ctx context.Context, itemID, userID string) (models.AuctionItem, error) {
	item, err := s.GetAuction(ctx, itemID)
	if err != nil {
		return models.AuctionItem{}, err
	}
	if userID == "" || item.CreatedBy != userID {
		return models.AuctionItem{}, fmt.Errorf("service: %w - auction %s belongs to another user", biddingerrors.ErrForbidden, itemID)
	}
	return item, nil
}

func (s *AuctionService) storeImage(ctx context.Context, r io.Reader) (string, error) {
	processed, err := imaging.Process(r, s.maxImageBytes)
	if err != nil {
		if errors.Is(err, imaging.ErrUnsupportedFormat) || errors.Is(err, imaging.ErrTooLarge) {
			return "", fmt.Errorf("service: %w - %v", biddingerrors.ErrInvalidInput, err)
		}
		return "", fmt.Errorf("service: failed to process image: %w", err)
	}

	ref, err := s.blobs.Save(ctx, processed.Data, imaging.Extension)
	if err != nil {
		return "", fmt.Errorf("service: failed to store image: %w", err)
	}
	return ref, nil
}

// deleteImage is best-effort: failures are logged and never surfaced
func (s *AuctionService) deleteImage(ctx context.Context, ref string) {
	if err := s.blobs.Delete(ctx, ref); err != nil {
		utils.Warn("Failed to delete auction image", map[string]any{"image": ref, "error": err.Error()})
	}
}

func (s *AuctionService) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		utils.Warn("Failed to publish auction event", map[string]any{
			"type":      event.Type,
			"auctionID": event.AuctionID,
			"error":     err.Error(),
		})
	}
}

func validateStartingBid(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("service: %w - starting bid must be a non-negative number", biddingerrors.ErrInvalidInput)
	}
	return nil
}
