package auction

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"auction-marketplace/internal/biddingerrors"
	"auction-marketplace/internal/blobstore"
	"auction-marketplace/internal/events"
	model "auction-marketplace/internal/models"
	"auction-marketplace/internal/repository"
	"auction-marketplace/utils"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func init() {
	utils.SetOutput(io.Discard)
}

func pngImage(t *testing.T) io.Reader {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 32, 24))))
	return &buf
}

type fixture struct {
	svc   *AuctionService
	repo  *repository.MemoryRepo
	dir   string
	clock *time.Time
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	blobs, err := blobstore.NewDiskStore(dir)
	require.NoError(t, err)

	repo := repository.NewMemoryRepo()
	clock := now
	svc := NewAuctionService(repo, blobs, nil, 0).WithClock(func() time.Time { return clock })
	return fixture{svc: svc, repo: repo, dir: dir, clock: &clock}
}

func (f fixture) create(t *testing.T, owner string, startingBid float64) model.AuctionItem {
	t.Helper()
	item, err := f.svc.CreateAuction(context.Background(), owner, CreateInput{
		Title:       "Vintage camera",
		Description: "works",
		StartingBid: startingBid,
		EndDate:     now.Add(time.Hour),
		Image:       pngImage(t),
	})
	require.NoError(t, err)
	return item
}

func (f fixture) files(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func (f fixture) bid(t *testing.T, itemID, userID string, amount float64) {
	t.Helper()
	require.NoError(t, f.repo.RecordBidForItem(context.Background(), model.Bid{
		BidID:         utils.GenerateID(),
		AuctionItemID: itemID,
		UserID:        userID,
		BidAmount:     amount,
		CreatedAt:     *f.clock,
	}, *f.clock))
}

// Test CreateAuction
func TestAuctionService_CreateAuction(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name          string
		owner         string
		input         func(t *testing.T) CreateInput
		expectedError error
	}{
		{
			name:  "valid",
			owner: "owner1",
			input: func(t *testing.T) CreateInput {
				return CreateInput{Title: "  Lamp ", StartingBid: 0, EndDate: now.Add(time.Hour), Image: pngImage(t)}
			},
		},
		{
			name:  "end_date_in_the_past_is_accepted",
			owner: "owner1",
			input: func(t *testing.T) CreateInput {
				return CreateInput{Title: "Lamp", EndDate: now.Add(-time.Hour), Image: pngImage(t)}
			},
		},
		{
			name:  "missing_image",
			owner: "owner1",
			input: func(t *testing.T) CreateInput {
				return CreateInput{Title: "Lamp", EndDate: now.Add(time.Hour)}
			},
			expectedError: biddingerrors.ErrInvalidInput,
		},
		{
			name:  "empty_title",
			owner: "owner1",
			input: func(t *testing.T) CreateInput {
				return CreateInput{Title: "   ", EndDate: now.Add(time.Hour), Image: pngImage(t)}
			},
			expectedError: biddingerrors.ErrInvalidInput,
		},
		{
			name:  "negative_starting_bid",
			owner: "owner1",
			input: func(t *testing.T) CreateInput {
				return CreateInput{Title: "Lamp", StartingBid: -1, EndDate: now.Add(time.Hour), Image: pngImage(t)}
			},
			expectedError: biddingerrors.ErrInvalidInput,
		},
		{
			name:  "missing_end_date",
			owner: "owner1",
			input: func(t *testing.T) CreateInput {
				return CreateInput{Title: "Lamp", Image: pngImage(t)}
			},
			expectedError: biddingerrors.ErrInvalidInput,
		},
		{
			name:  "not_an_image",
			owner: "owner1",
			input: func(t *testing.T) CreateInput {
				return CreateInput{Title: "Lamp", EndDate: now.Add(time.Hour), Image: strings.NewReader("plain text")}
			},
			expectedError: biddingerrors.ErrInvalidInput,
		},
		{
			name:  "anonymous",
			owner: "",
			input: func(t *testing.T) CreateInput {
				return CreateInput{Title: "Lamp", EndDate: now.Add(time.Hour), Image: pngImage(t)}
			},
			expectedError: biddingerrors.ErrUnauthorized,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			item, err := f.svc.CreateAuction(ctx, tc.owner, tc.input(t))

			if tc.expectedError != nil {
				require.ErrorIs(t, err, tc.expectedError)
				require.Empty(t, f.files(t), "no blob should survive a rejected create")
				return
			}
			require.NoError(t, err)
			require.NotEmpty(t, item.ItemID)
			require.Equal(t, "owner1", item.CreatedBy)
			require.Equal(t, "Lamp", item.Title)
			require.Equal(t, now, item.CreatedAt)
			require.True(t, strings.HasPrefix(item.Image, blobstore.URLPrefix))
			require.FileExists(t, filepath.Join(f.dir, strings.TrimPrefix(item.Image, blobstore.URLPrefix)))

			got, err := f.svc.GetAuction(ctx, item.ItemID)
			require.NoError(t, err)
			require.Equal(t, item, got)
		})
	}
}

func TestAuctionService_CreateAuction_StoreFailureRemovesImage(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRepo := repository.NewMockAuctionDB(ctrl)
	mockRepo.EXPECT().CreateAuction(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	dir := t.TempDir()
	blobs, err := blobstore.NewDiskStore(dir)
	require.NoError(t, err)
	svc := NewAuctionService(mockRepo, blobs, nil, 0)

	_, err = svc.CreateAuction(context.Background(), "owner", CreateInput{Title: "Lamp", EndDate: now, Image: pngImage(t)})
	require.ErrorContains(t, err, "disk full")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestAuctionService_GetAuction_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetAuction(context.Background(), "missing")
	require.ErrorIs(t, err, biddingerrors.ErrItemNotFound)

	_, err = f.svc.GetAuction(context.Background(), "")
	require.ErrorIs(t, err, biddingerrors.ErrInvalidInput)
}

func TestAuctionService_ListAuctions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.create(t, "owner1", 1)
	*f.clock = now.Add(time.Second)
	b := f.create(t, "owner2", 1)

	all, err := f.svc.ListAuctions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, a.ItemID, all[0].ItemID)

	mine, err := f.svc.ListAuctionsByOwner(ctx, "owner2")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, b.ItemID, mine[0].ItemID)

	_, err = f.svc.ListAuctionsByOwner(ctx, "")
	require.ErrorIs(t, err, biddingerrors.ErrUnauthorized)
}

// Test UpdateAuction
func TestAuctionService_UpdateAuction(t *testing.T) {
	ctx := context.Background()

	t.Run("title_only_leaves_other_fields", func(t *testing.T) {
		f := newFixture(t)
		item := f.create(t, "owner", 25)
		*f.clock = now.Add(time.Minute)

		title := "Renamed"
		empty := ""
		updated, err := f.svc.UpdateAuction(ctx, item.ItemID, "owner", UpdateInput{Title: &title, Description: &empty})
		require.NoError(t, err)

		require.Equal(t, "Renamed", updated.Title)
		require.Equal(t, item.Description, updated.Description)
		require.Equal(t, item.StartingBid, updated.StartingBid)
		require.Equal(t, item.EndDate, updated.EndDate)
		require.Equal(t, item.Image, updated.Image)
		require.Equal(t, item.CreatedAt, updated.CreatedAt)
		require.Equal(t, now.Add(time.Minute), updated.UpdatedAt)

		got, err := f.svc.GetAuction(ctx, item.ItemID)
		require.NoError(t, err)
		require.Equal(t, updated, got)
	})

	t.Run("new_image_replaces_old", func(t *testing.T) {
		f := newFixture(t)
		item := f.create(t, "owner", 25)

		updated, err := f.svc.UpdateAuction(ctx, item.ItemID, "owner", UpdateInput{Image: pngImage(t)})
		require.NoError(t, err)
		require.NotEqual(t, item.Image, updated.Image)
		require.Equal(t, []string{strings.TrimPrefix(updated.Image, blobstore.URLPrefix)}, f.files(t))
	})

	t.Run("non_owner_forbidden", func(t *testing.T) {
		f := newFixture(t)
		item := f.create(t, "owner", 25)
		title := "Mine now"

		_, err := f.svc.UpdateAuction(ctx, item.ItemID, "intruder", UpdateInput{Title: &title})
		require.ErrorIs(t, err, biddingerrors.ErrForbidden)

		got, err := f.svc.GetAuction(ctx, item.ItemID)
		require.NoError(t, err)
		require.Equal(t, item.Title, got.Title)
	})

	t.Run("unknown_auction", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.UpdateAuction(ctx, "missing", "owner", UpdateInput{})
		require.ErrorIs(t, err, biddingerrors.ErrItemNotFound)
	})

	t.Run("negative_starting_bid", func(t *testing.T) {
		f := newFixture(t)
		item := f.create(t, "owner", 25)
		bad := -5.0
		_, err := f.svc.UpdateAuction(ctx, item.ItemID, "owner", UpdateInput{StartingBid: &bad})
		require.ErrorIs(t, err, biddingerrors.ErrInvalidInput)
	})
}

// Test DeleteAuction
func TestAuctionService_DeleteAuction(t *testing.T) {
	ctx := context.Background()

	t.Run("owner_deletes_item_bids_and_image", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		pub := events.NewMockPublisher(ctrl)

		f := newFixture(t)
		f.svc.publisher = pub
		item := f.create(t, "owner", 10)
		other := f.create(t, "owner", 10)
		f.bid(t, item.ItemID, "u1", 10)
		f.bid(t, item.ItemID, "u2", 20)
		f.bid(t, other.ItemID, "u1", 50)

		pub.EXPECT().Publish(gomock.Any(), events.Event{
			Type: events.TypeAuctionDeleted, AuctionID: item.ItemID, UserID: "owner", Timestamp: now,
		}).Return(errors.New("redis down"))

		require.NoError(t, f.svc.DeleteAuction(ctx, item.ItemID, "owner"))

		_, err := f.svc.GetAuction(ctx, item.ItemID)
		require.ErrorIs(t, err, biddingerrors.ErrItemNotFound)
		_, err = f.repo.GetBidsByItem(ctx, item.ItemID)
		require.ErrorIs(t, err, biddingerrors.ErrNoBids)

		bids, err := f.repo.GetBidsByUser(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, bids, 1)
		require.Equal(t, other.ItemID, bids[0].AuctionItemID)

		require.Equal(t, []string{strings.TrimPrefix(other.Image, blobstore.URLPrefix)}, f.files(t))
	})

	t.Run("non_owner_forbidden", func(t *testing.T) {
		f := newFixture(t)
		item := f.create(t, "owner", 10)

		err := f.svc.DeleteAuction(ctx, item.ItemID, "intruder")
		require.ErrorIs(t, err, biddingerrors.ErrForbidden)

		_, err = f.svc.GetAuction(ctx, item.ItemID)
		require.NoError(t, err)
	})

	t.Run("unknown_auction", func(t *testing.T) {
		f := newFixture(t)
		require.ErrorIs(t, f.svc.DeleteAuction(ctx, "missing", "owner"), biddingerrors.ErrItemNotFound)
	})

	t.Run("missing_image_file_does_not_block_delete", func(t *testing.T) {
		f := newFixture(t)
		item := f.create(t, "owner", 10)
		require.NoError(t, os.Remove(filepath.Join(f.dir, strings.TrimPrefix(item.Image, blobstore.URLPrefix))))

		require.NoError(t, f.svc.DeleteAuction(ctx, item.ItemID, "owner"))
	})
}

// Test GetWinner
func TestAuctionService_GetWinner(t *testing.T) {
	ctx := context.Background()

	t.Run("not_ended", func(t *testing.T) {
		f := newFixture(t)
		item := f.create(t, "owner", 10)
		f.bid(t, item.ItemID, "u1", 50)

		_, err := f.svc.GetWinner(ctx, item.ItemID)
		require.ErrorIs(t, err, biddingerrors.ErrAuctionNotEnded)
	})

	t.Run("unknown_auction", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.GetWinner(ctx, "missing")
		require.ErrorIs(t, err, biddingerrors.ErrItemNotFound)
	})

	t.Run("ended_without_bids", func(t *testing.T) {
		f := newFixture(t)
		item := f.create(t, "owner", 10)
		*f.clock = item.EndDate

		winner, err := f.svc.GetWinner(ctx, item.ItemID)
		require.NoError(t, err)
		require.Nil(t, winner.User)
		require.Nil(t, winner.WinningBid)
	})

	t.Run("highest_bidder_wins", func(t *testing.T) {
		f := newFixture(t)
		for _, u := range []string{"alice", "bob", "carol"} {
			require.NoError(t, f.repo.CreateUser(ctx, model.User{UserID: u, Name: u, Email: u + "@example.com"}))
		}
		item := f.create(t, "owner", 10)

		// ledger order [50, 75, 60] cannot be produced through the strict bid
		// rule, so seed it directly
		f.repo.AddBid(model.Bid{BidID: "b1", AuctionItemID: item.ItemID, UserID: "alice", BidAmount: 50})
		f.repo.AddBid(model.Bid{BidID: "b2", AuctionItemID: item.ItemID, UserID: "bob", BidAmount: 75})
		f.repo.AddBid(model.Bid{BidID: "b3", AuctionItemID: item.ItemID, UserID: "carol", BidAmount: 60})
		*f.clock = item.EndDate.Add(time.Minute)

		winner, err := f.svc.GetWinner(ctx, item.ItemID)
		require.NoError(t, err)
		require.Equal(t, "bob", winner.User.UserID)
		require.Equal(t, 75.0, winner.WinningBid.BidAmount)

		again, err := f.svc.GetWinner(ctx, item.ItemID)
		require.NoError(t, err)
		require.Equal(t, winner, again)
	})

	t.Run("winning_user_missing", func(t *testing.T) {
		f := newFixture(t)
		item := f.create(t, "owner", 10)
		f.bid(t, item.ItemID, "ghost", 20)
		*f.clock = item.EndDate

		_, err := f.svc.GetWinner(ctx, item.ItemID)
		require.ErrorIs(t, err, biddingerrors.ErrUserNotFound)
	})
}

// Test GetAuctionsWonByUser
func TestAuctionService_GetAuctionsWonByUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ended := f.create(t, "owner", 10)
	f.bid(t, ended.ItemID, "bob", 80)
	f.bid(t, ended.ItemID, "alice", 100)

	lostByAlice := f.create(t, "owner", 10)
	f.bid(t, lostByAlice.ItemID, "alice", 30)
	f.bid(t, lostByAlice.ItemID, "bob", 40)

	stillOpen := f.create(t, "owner", 10)
	stillOpen.EndDate = now.Add(48 * time.Hour)
	require.NoError(t, f.repo.UpdateAuction(ctx, stillOpen))
	f.bid(t, stillOpen.ItemID, "alice", 500)

	// bids on an auction that disappeared without its bids
	f.repo.AddBid(model.Bid{BidID: "orphan", AuctionItemID: "gone", UserID: "alice", BidAmount: 900})

	*f.clock = now.Add(2 * time.Hour)

	won, err := f.svc.GetAuctionsWonByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, won, 1)
	require.Equal(t, ended.ItemID, won[0].AuctionID)
	require.Equal(t, 100.0, won[0].WinningBid)
	require.Equal(t, ended.Title, won[0].Title)
	require.Equal(t, ended.Image, won[0].Image)

	won, err = f.svc.GetAuctionsWonByUser(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, won, 1)
	require.Equal(t, lostByAlice.ItemID, won[0].AuctionID)
	require.Equal(t, 40.0, won[0].WinningBid)

	won, err = f.svc.GetAuctionsWonByUser(ctx, "nobody")
	require.NoError(t, err)
	require.Empty(t, won)

	_, err = f.svc.GetAuctionsWonByUser(ctx, "")
	require.ErrorIs(t, err, biddingerrors.ErrUnauthorized)
}
