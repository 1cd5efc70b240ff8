package repository

//go:generate mockgen -source=repository.go -destination=mock_repository.go -package=repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"auction-marketplace/internal/biddingerrors"
	model "auction-marketplace/internal/models"
)

// AuctionStore persists auction items
type AuctionStore interface {
	CreateAuction(ctx context.Context, item model.AuctionItem) error
	GetAuction(ctx context.Context, itemID string) (model.AuctionItem, error)
	ListAuctions(ctx context.Context) ([]model.AuctionItem, error)
	ListAuctionsByOwner(ctx context.Context, ownerID string) ([]model.AuctionItem, error)
	UpdateAuction(ctx context.Context, item model.AuctionItem) error
	// DeleteAuctionWithBids removes every bid of the item first, then the item.
	DeleteAuctionWithBids(ctx context.Context, itemID string) (int, error)
}

// BidLedger is the append-only bid collection
type BidLedger interface {
	// RecordBidForItem appends the bid only if the auction exists, is still
	// open at now, and the amount beats the current highest bid (or meets the
	// starting bid when there is none). The check and the append are atomic.
	RecordBidForItem(ctx context.Context, bid model.Bid, now time.Time) error
	GetBidsByItem(ctx context.Context, itemID string) ([]model.Bid, error)
	GetWinningBid(ctx context.Context, itemID string) (model.Bid, error)
	GetBidsByUser(ctx context.Context, userID string) ([]model.Bid, error)
	DeleteOrphanBids(ctx context.Context) (int, error)
}

// UserStore persists registered users
type UserStore interface {
	CreateUser(ctx context.Context, user model.User) error
	GetUser(ctx context.Context, userID string) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
}

// AuctionDB defines the storage interface for the auction system
type AuctionDB interface {
	AuctionStore
	BidLedger
	UserStore
}

// MemoryRepo is a concurrency-safe in-memory implementation of AuctionDB
type MemoryRepo struct {
	mu     sync.RWMutex
	items  map[string]model.AuctionItem // key: itemID -> value: item
	bids   map[string][]model.Bid       // key: itemID -> value: bids in insertion order
	users  map[string]model.User        // key: userID -> value: user
	emails map[string]string            // key: lowercased email -> value: userID
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		items:  make(map[string]model.AuctionItem),
		bids:   make(map[string][]model.Bid),
		users:  make(map[string]model.User),
		emails: make(map[string]string),
	}
}

// CreateAuction stores a new auction item
func (r *MemoryRepo) CreateAuction(_ context.Context, item model.AuctionItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if item.ItemID == "" {
		return fmt.Errorf("repository: create auction: %w - empty item ID", biddingerrors.ErrInvalidInput)
	}
	r.items[item.ItemID] = item
	return nil
}

// GetAuction returns a single auction item
func (r *MemoryRepo) GetAuction(_ context.Context, itemID string) (model.AuctionItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[itemID]
	if !ok {
		return model.AuctionItem{}, fmt.Errorf("repository: get auction %s: %w", itemID, biddingerrors.ErrItemNotFound)
	}
	return item, nil
}

// ListAuctions returns every auction item ordered by creation time
func (r *MemoryRepo) ListAuctions(_ context.Context) ([]model.AuctionItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]model.AuctionItem, 0, len(r.items))
	for _, item := range r.items {
		items = append(items, item)
	}
	sortItems(items)
	return items, nil
}

// ListAuctionsByOwner returns the auction items created by ownerID
func (r *MemoryRepo) ListAuctionsByOwner(_ context.Context, ownerID string) ([]model.AuctionItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]model.AuctionItem, 0)
	for _, item := range r.items {
		if item.CreatedBy == ownerID {
			items = append(items, item)
		}
	}
	sortItems(items)
	return items, nil
}

// UpdateAuction replaces a stored auction item
func (r *MemoryRepo) UpdateAuction(_ context.Context, item model.AuctionItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[item.ItemID]; !ok {
		return fmt.Errorf("repository: update auction %s: %w", item.ItemID, biddingerrors.ErrItemNotFound)
	}
	r.items[item.ItemID] = item
	return nil
}

// DeleteAuctionWithBids removes the bids of an item and then the item under a single lock
func (r *MemoryRepo) DeleteAuctionWithBids(_ context.Context, itemID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[itemID]; !ok {
		return 0, fmt.Errorf("repository: delete auction %s: %w", itemID, biddingerrors.ErrItemNotFound)
	}
	removed := len(r.bids[itemID])
	delete(r.bids, itemID)
	delete(r.items, itemID)
	return removed, nil
}

// RecordBidForItem records a user's bid on an item if it beats the current highest bid
func (r *MemoryRepo) RecordBidForItem(_ context.Context, bid model.Bid, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[bid.AuctionItemID]
	if !ok {
		return fmt.Errorf("record bid for item %s: %w", bid.AuctionItemID, biddingerrors.ErrItemNotFound)
	}
	if item.HasEnded(now) {
		return fmt.Errorf("record bid for item %s: %w", bid.AuctionItemID, biddingerrors.ErrAuctionClosed)
	}

	existing := r.bids[bid.AuctionItemID]
	if len(existing) == 0 {
		if bid.BidAmount < item.StartingBid {
			return fmt.Errorf("record bid for item %s: %w - starting bid is %.2f", bid.AuctionItemID, biddingerrors.ErrBidTooLow, item.StartingBid)
		}
	} else if highest := highestBid(existing); bid.BidAmount <= highest.BidAmount {
		return fmt.Errorf("record bid for item %s: %w - current highest bid is %.2f", bid.AuctionItemID, biddingerrors.ErrBidTooLow, highest.BidAmount)
	}

	r.bids[bid.AuctionItemID] = append(existing, bid)
	return nil
}

// GetBidsByItem returns all bids for an item, highest first
func (r *MemoryRepo) GetBidsByItem(_ context.Context, itemID string) ([]model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bids, ok := r.bids[itemID]
	if !ok || len(bids) == 0 {
		return nil, fmt.Errorf("get bids for item %s: %w", itemID, biddingerrors.ErrNoBids)
	}
	out := append([]model.Bid(nil), bids...)
	sortBidsByAmount(out)
	return out, nil
}

// GetWinningBid returns the highest bid for an item
func (r *MemoryRepo) GetWinningBid(_ context.Context, itemID string) (model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bids, ok := r.bids[itemID]
	if !ok || len(bids) == 0 {
		return model.Bid{}, fmt.Errorf("get winning bid for item %s: %w", itemID, biddingerrors.ErrNoBids)
	}
	return highestBid(bids), nil
}

// GetBidsByUser returns every bid placed by a user, highest first
func (r *MemoryRepo) GetBidsByUser(_ context.Context, userID string) ([]model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.Bid
	for _, bids := range r.bids {
		for _, b := range bids {
			if b.UserID == userID {
				out = append(out, b)
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("get bids for user %s: %w", userID, biddingerrors.ErrUserNoBids)
	}
	// map iteration is unordered, so restore insertion order before ranking by amount
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	sortBidsByAmount(out)
	return out, nil
}

// DeleteOrphanBids drops bids whose auction item no longer exists
func (r *MemoryRepo) DeleteOrphanBids(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for itemID, bids := range r.bids {
		if _, ok := r.items[itemID]; !ok {
			removed += len(bids)
			delete(r.bids, itemID)
		}
	}
	return removed, nil
}

// CreateUser stores a new user, rejecting duplicate emails
func (r *MemoryRepo) CreateUser(_ context.Context, user model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(user.Email)
	if _, taken := r.emails[key]; taken {
		return fmt.Errorf("repository: create user %s: %w", user.Email, biddingerrors.ErrEmailTaken)
	}
	r.users[user.UserID] = user
	r.emails[key] = user.UserID
	return nil
}

// GetUser returns a user by ID
func (r *MemoryRepo) GetUser(_ context.Context, userID string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[userID]
	if !ok {
		return model.User{}, fmt.Errorf("repository: get user %s: %w", userID, biddingerrors.ErrUserNotFound)
	}
	return user, nil
}

// GetUserByEmail returns a user by email, ignoring case
func (r *MemoryRepo) GetUserByEmail(_ context.Context, email string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userID, ok := r.emails[strings.ToLower(email)]
	if !ok {
		return model.User{}, fmt.Errorf("repository: get user by email: %w", biddingerrors.ErrUserNotFound)
	}
	return r.users[userID], nil
}

// AddItem adds an item to the repository. This method is intended for tests and seeding only.
func (r *MemoryRepo) AddItem(item model.AuctionItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[item.ItemID] = item
}

// AddBid appends a bid without any validation. This method is intended for tests only.
func (r *MemoryRepo) AddBid(bid model.Bid) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bids[bid.AuctionItemID] = append(r.bids[bid.AuctionItemID], bid)
}

// highestBid picks the maximum amount; among equal amounts the earliest recorded bid wins
func highestBid(bids []model.Bid) model.Bid {
	winning := bids[0]
	for _, b := range bids[1:] {
		if b.BidAmount > winning.BidAmount {
			winning = b
		}
	}
	return winning
}

func sortBidsByAmount(bids []model.Bid) {
	sort.SliceStable(bids, func(i, j int) bool { return bids[i].BidAmount > bids[j].BidAmount })
}

func sortItems(items []model.AuctionItem) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ItemID < items[j].ItemID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}
