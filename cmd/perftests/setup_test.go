package perftests

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	bidding "auction-marketplace/internal/biddingService"
	"auction-marketplace/internal/db"
	model "auction-marketplace/internal/models"
	"auction-marketplace/internal/repository"
	"auction-marketplace/utils"
)

func init() {
	utils.SetOutput(io.Discard)
}

const sellerID = "seller"

var ctx = context.Background()

// stores lists the backends every benchmark runs against
var stores = map[string]func(b *testing.B) repository.AuctionDB{
	"memory": func(*testing.B) repository.AuctionDB { return repository.NewMemoryRepo() },
	"sqlite": func(b *testing.B) repository.AuctionDB { return repository.NewSQLiteRepo(db.NewTestDB(b)) },
}

func benchItem(i int, startingBid float64) model.AuctionItem {
	now := time.Now().UTC()
	return model.AuctionItem{
		ItemID:      fmt.Sprintf("item_%d", i),
		Title:       fmt.Sprintf("title_%d", i),
		Description: "Load test item",
		StartingBid: startingBid,
		EndDate:     now.Add(24 * time.Hour),
		CreatedBy:   sellerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// setupStore seeds numItems open auctions and returns a bidding service over them
func setupStore(b *testing.B, newStore func(b *testing.B) repository.AuctionDB, numItems int) *bidding.BiddingService {
	b.Helper()

	repo := newStore(b)
	for i := 0; i < numItems; i++ {
		if err := repo.CreateAuction(ctx, benchItem(i, 100)); err != nil {
			b.Fatalf("failed to seed item: %v", err)
		}
	}
	return bidding.NewBiddingService(repo, nil)
}
