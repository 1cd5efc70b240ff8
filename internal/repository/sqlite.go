package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"auction-marketplace/internal/biddingerrors"
	model "auction-marketplace/internal/models"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteRepo is an AuctionDB backed by a SQLite database
type SQLiteRepo struct {
	db *sql.DB
}

// NewSQLiteRepo wraps an open, migrated database handle
func NewSQLiteRepo(db *sql.DB) *SQLiteRepo {
	return &SQLiteRepo{db: db}
}

const auctionColumns = `id, title, description, starting_bid, end_date, image, created_by, created_at, updated_at`

const bidColumns = `id, auction_item_id, user_id, bid_amount, created_at`

// CreateAuction inserts a new auction item
func (r *SQLiteRepo) CreateAuction(ctx context.Context, item model.AuctionItem) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO auction_items (`+auctionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ItemID, item.Title, item.Description, item.StartingBid, toNanos(item.EndDate),
		item.Image, item.CreatedBy, toNanos(item.CreatedAt), toNanos(item.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("repository: create auction: %w", err)
	}
	return nil
}

// GetAuction returns a single auction item
func (r *SQLiteRepo) GetAuction(ctx context.Context, itemID string) (model.AuctionItem, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+auctionColumns+` FROM auction_items WHERE id = ?`, itemID)
	item, err := scanAuction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AuctionItem{}, fmt.Errorf("repository: get auction %s: %w", itemID, biddingerrors.ErrItemNotFound)
	}
	if err != nil {
		return model.AuctionItem{}, fmt.Errorf("repository: get auction %s: %w", itemID, err)
	}
	return item, nil
}

// ListAuctions returns every auction item ordered by creation time
func (r *SQLiteRepo) ListAuctions(ctx context.Context) ([]model.AuctionItem, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+auctionColumns+` FROM auction_items ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("repository: list auctions: %w", err)
	}
	return collectAuctions(rows)
}

// ListAuctionsByOwner returns the auction items created by ownerID
func (r *SQLiteRepo) ListAuctionsByOwner(ctx context.Context, ownerID string) ([]model.AuctionItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+auctionColumns+` FROM auction_items WHERE created_by = ? ORDER BY created_at, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("repository: list auctions for owner %s: %w", ownerID, err)
	}
	return collectAuctions(rows)
}

// UpdateAuction replaces the mutable fields of an auction item
func (r *SQLiteRepo) UpdateAuction(ctx context.Context, item model.AuctionItem) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE auction_items
		 SET title = ?, description = ?, starting_bid = ?, end_date = ?, image = ?, updated_at = ?
		 WHERE id = ?`,
		item.Title, item.Description, item.StartingBid, toNanos(item.EndDate), item.Image, toNanos(item.UpdatedAt),
		item.ItemID,
	)
	if err != nil {
		return fmt.Errorf("repository: update auction %s: %w", item.ItemID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("repository: update auction %s: %w", item.ItemID, biddingerrors.ErrItemNotFound)
	}
	return nil
}

// DeleteAuctionWithBids removes the bids and then the item inside one transaction
func (r *SQLiteRepo) DeleteAuctionWithBids(ctx context.Context, itemID string) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("repository: delete auction %s: begin: %w", itemID, err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM auction_items WHERE id = ?`, itemID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("repository: delete auction %s: %w", itemID, biddingerrors.ErrItemNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("repository: delete auction %s: %w", itemID, err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM bids WHERE auction_item_id = ?`, itemID)
	if err != nil {
		return 0, fmt.Errorf("repository: delete bids of auction %s: %w", itemID, err)
	}
	removed, _ := res.RowsAffected()

	if _, err := tx.ExecContext(ctx, `DELETE FROM auction_items WHERE id = ?`, itemID); err != nil {
		return 0, fmt.Errorf("repository: delete auction %s: %w", itemID, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("repository: delete auction %s: commit: %w", itemID, err)
	}
	return int(removed), nil
}

// RecordBidForItem inserts the bid with a single conditional statement, so the
// comparison against the current highest bid and the insert cannot interleave
// with another writer.
func (r *SQLiteRepo) RecordBidForItem(ctx context.Context, bid model.Bid, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO bids (`+bidColumns+`)
		 SELECT ?, a.id, ?, ?, ?
		 FROM auction_items a
		 WHERE a.id = ?
		   AND a.end_date > ?
		   AND (
		     (NOT EXISTS (SELECT 1 FROM bids b WHERE b.auction_item_id = a.id) AND ? >= a.starting_bid)
		     OR ? > (SELECT MAX(b.bid_amount) FROM bids b WHERE b.auction_item_id = a.id)
		   )`,
		bid.BidID, bid.UserID, bid.BidAmount, toNanos(bid.CreatedAt),
		bid.AuctionItemID, toNanos(now),
		bid.BidAmount, bid.BidAmount,
	)
	if err != nil {
		return fmt.Errorf("record bid for item %s: %w", bid.AuctionItemID, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	return r.explainRejectedBid(ctx, bid, now)
}

// explainRejectedBid works out which condition of the conditional insert failed
func (r *SQLiteRepo) explainRejectedBid(ctx context.Context, bid model.Bid, now time.Time) error {
	item, err := r.GetAuction(ctx, bid.AuctionItemID)
	if err != nil {
		return fmt.Errorf("record bid for item %s: %w", bid.AuctionItemID, err)
	}
	if item.HasEnded(now) {
		return fmt.Errorf("record bid for item %s: %w", bid.AuctionItemID, biddingerrors.ErrAuctionClosed)
	}
	highest, err := r.GetWinningBid(ctx, bid.AuctionItemID)
	if errors.Is(err, biddingerrors.ErrNoBids) {
		return fmt.Errorf("record bid for item %s: %w - starting bid is %.2f", bid.AuctionItemID, biddingerrors.ErrBidTooLow, item.StartingBid)
	}
	if err != nil {
		return fmt.Errorf("record bid for item %s: %w", bid.AuctionItemID, err)
	}
	return fmt.Errorf("record bid for item %s: %w - current highest bid is %.2f", bid.AuctionItemID, biddingerrors.ErrBidTooLow, highest.BidAmount)
}

// GetBidsByItem returns all bids for an item, highest first
func (r *SQLiteRepo) GetBidsByItem(ctx context.Context, itemID string) ([]model.Bid, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bidColumns+` FROM bids WHERE auction_item_id = ? ORDER BY bid_amount DESC, rowid`, itemID)
	if err != nil {
		return nil, fmt.Errorf("get bids for item %s: %w", itemID, err)
	}
	bids, err := collectBids(rows)
	if err != nil {
		return nil, fmt.Errorf("get bids for item %s: %w", itemID, err)
	}
	if len(bids) == 0 {
		return nil, fmt.Errorf("get bids for item %s: %w", itemID, biddingerrors.ErrNoBids)
	}
	return bids, nil
}

// GetWinningBid returns the highest bid for an item
func (r *SQLiteRepo) GetWinningBid(ctx context.Context, itemID string) (model.Bid, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+bidColumns+` FROM bids WHERE auction_item_id = ? ORDER BY bid_amount DESC, rowid LIMIT 1`, itemID)
	bid, err := scanBid(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Bid{}, fmt.Errorf("get winning bid for item %s: %w", itemID, biddingerrors.ErrNoBids)
	}
	if err != nil {
		return model.Bid{}, fmt.Errorf("get winning bid for item %s: %w", itemID, err)
	}
	return bid, nil
}

// GetBidsByUser returns every bid placed by a user, highest first
func (r *SQLiteRepo) GetBidsByUser(ctx context.Context, userID string) ([]model.Bid, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bidColumns+` FROM bids WHERE user_id = ? ORDER BY bid_amount DESC, rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("get bids for user %s: %w", userID, err)
	}
	bids, err := collectBids(rows)
	if err != nil {
		return nil, fmt.Errorf("get bids for user %s: %w", userID, err)
	}
	if len(bids) == 0 {
		return nil, fmt.Errorf("get bids for user %s: %w", userID, biddingerrors.ErrUserNoBids)
	}
	return bids, nil
}

// DeleteOrphanBids drops bids whose auction item no longer exists
func (r *SQLiteRepo) DeleteOrphanBids(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM bids WHERE auction_item_id NOT IN (SELECT id FROM auction_items)`)
	if err != nil {
		return 0, fmt.Errorf("repository: delete orphan bids: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// CreateUser inserts a new user, rejecting duplicate emails
func (r *SQLiteRepo) CreateUser(ctx context.Context, user model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		user.UserID, user.Name, user.Email, user.PasswordHash, toNanos(user.CreatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("repository: create user %s: %w", user.Email, biddingerrors.ErrEmailTaken)
	}
	if err != nil {
		return fmt.Errorf("repository: create user: %w", err)
	}
	return nil
}

// GetUser returns a user by ID
func (r *SQLiteRepo) GetUser(ctx context.Context, userID string) (model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, created_at FROM users WHERE id = ?`, userID)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, fmt.Errorf("repository: get user %s: %w", userID, biddingerrors.ErrUserNotFound)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("repository: get user %s: %w", userID, err)
	}
	return user, nil
}

// GetUserByEmail returns a user by email, ignoring case
func (r *SQLiteRepo) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, created_at FROM users WHERE email = ? COLLATE NOCASE`, email)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, fmt.Errorf("repository: get user by email: %w", biddingerrors.ErrUserNotFound)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("repository: get user by email: %w", err)
	}
	return user, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAuction(s scanner) (model.AuctionItem, error) {
	var item model.AuctionItem
	var endDate, createdAt, updatedAt int64
	err := s.Scan(&item.ItemID, &item.Title, &item.Description, &item.StartingBid, &endDate,
		&item.Image, &item.CreatedBy, &createdAt, &updatedAt)
	if err != nil {
		return model.AuctionItem{}, err
	}
	item.EndDate = fromNanos(endDate)
	item.CreatedAt = fromNanos(createdAt)
	item.UpdatedAt = fromNanos(updatedAt)
	return item, nil
}

func collectAuctions(rows *sql.Rows) ([]model.AuctionItem, error) {
	defer rows.Close()

	items := make([]model.AuctionItem, 0)
	for rows.Next() {
		item, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: scanning auction: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanBid(s scanner) (model.Bid, error) {
	var bid model.Bid
	var createdAt int64
	if err := s.Scan(&bid.BidID, &bid.AuctionItemID, &bid.UserID, &bid.BidAmount, &createdAt); err != nil {
		return model.Bid{}, err
	}
	bid.CreatedAt = fromNanos(createdAt)
	return bid, nil
}

func collectBids(rows *sql.Rows) ([]model.Bid, error) {
	defer rows.Close()

	var bids []model.Bid
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning bid: %w", err)
		}
		bids = append(bids, bid)
	}
	return bids, rows.Err()
}

func scanUser(s scanner) (model.User, error) {
	var user model.User
	var createdAt int64
	if err := s.Scan(&user.UserID, &user.Name, &user.Email, &user.PasswordHash, &createdAt); err != nil {
		return model.User{}, err
	}
	user.CreatedAt = fromNanos(createdAt)
	return user, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
