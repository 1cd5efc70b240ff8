package integrationtests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	auction "auction-marketplace/internal/auctionService"
	"auction-marketplace/internal/auth"
	"auction-marketplace/internal/blobstore"
	bidding "auction-marketplace/internal/biddingService"
	"auction-marketplace/internal/db"
	"auction-marketplace/internal/events"
	"auction-marketplace/internal/repository"
	"auction-marketplace/internal/server"
	users "auction-marketplace/internal/userService"
	"auction-marketplace/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	utils.SetOutput(io.Discard)
	gin.SetMode(gin.TestMode)
}

var startTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// clock is a settable time source shared by every service of a test app
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testApp struct {
	t      *testing.T
	router *gin.Engine
	clock  *clock
	repo   repository.AuctionDB
}

// stores lists the backends the API tests run against
var stores = map[string]func(t *testing.T) repository.AuctionDB{
	"memory": func(*testing.T) repository.AuctionDB { return repository.NewMemoryRepo() },
	"sqlite": func(t *testing.T) repository.AuctionDB { return repository.NewSQLiteRepo(db.NewTestDB(t)) },
}

func forEachStore(t *testing.T, fn func(t *testing.T, app *testApp)) {
	for name, newStore := range stores {
		newStore := newStore
		t.Run(name, func(t *testing.T) {
			fn(t, newTestApp(t, newStore(t)))
		})
	}
}

// newTestApp wires the full router over repo with a fake clock
func newTestApp(t *testing.T, repo repository.AuctionDB) *testApp {
	t.Helper()

	blobs, err := blobstore.NewDiskStore(t.TempDir())
	require.NoError(t, err)

	clk := &clock{now: startTime}
	tokens := auth.NewIssuer("integration-secret", time.Hour)

	router := server.SetupRouter(server.Dependencies{
		Bidding:        bidding.NewBiddingService(repo, events.NopPublisher{}).WithClock(clk.Now),
		Auctions:       auction.NewAuctionService(repo, blobs, events.NopPublisher{}, auction.DefaultMaxImageBytes).WithClock(clk.Now),
		Users:          users.NewUserService(repo, tokens).WithHashCost(bcrypt.MinCost),
		Tokens:         tokens,
		UploadsDir:     blobs.Dir(),
		MaxUploadBytes: auction.DefaultMaxImageBytes,
	})

	return &testApp{t: t, router: router, clock: clk, repo: repo}
}

// do executes a JSON request and parses the envelope
func (a *testApp) do(method, url, token string, body any) (map[string]any, *httptest.ResponseRecorder) {
	a.t.Helper()

	var reqBody io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		reqBody = bytes.NewBufferString(v)
	default:
		raw, err := json.Marshal(v)
		require.NoError(a.t, err)
		reqBody = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, url, reqBody)
	req.Header.Set("Content-Type", "application/json")
	return a.serve(req, token)
}

func (a *testApp) serve(req *http.Request, token string) (map[string]any, *httptest.ResponseRecorder) {
	a.t.Helper()

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var resp map[string]any
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return resp, w
}

// signUp registers a user, logs in and returns the user ID and session token
func (a *testApp) signUp(name, email string) (string, string) {
	a.t.Helper()

	_, w := a.do(http.MethodPost, "/users/register", "", map[string]string{
		"name": name, "email": email, "password": "secret123",
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())

	resp, w := a.do(http.MethodPost, "/users/login", "", map[string]string{
		"email": email, "password": "secret123",
	})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())

	data := resp["data"].(map[string]any)
	user := data["user"].(map[string]any)
	return user["id"].(string), data["token"].(string)
}

// createAuction posts a multipart auction form with a generated PNG
func (a *testApp) createAuction(token, title string, startingBid string, endDate time.Time) map[string]any {
	a.t.Helper()

	resp, w := a.postAuction(token, map[string]string{
		"title":       title,
		"description": title + " description",
		"startingBid": startingBid,
		"endDate":     endDate.Format(time.RFC3339),
	}, pngImage(a.t, 64, 32))
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	return resp["data"].(map[string]any)
}

func (a *testApp) postAuction(token string, fields map[string]string, img []byte) (map[string]any, *httptest.ResponseRecorder) {
	a.t.Helper()
	return a.sendForm(http.MethodPost, "/auctions", token, fields, img)
}

func (a *testApp) sendForm(method, url, token string, fields map[string]string, img []byte) (map[string]any, *httptest.ResponseRecorder) {
	a.t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(a.t, mw.WriteField(k, v))
	}
	if img != nil {
		part, err := mw.CreateFormFile("image", "photo.png")
		require.NoError(a.t, err)
		_, err = part.Write(img)
		require.NoError(a.t, err)
	}
	require.NoError(a.t, mw.Close())

	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return a.serve(req, token)
}

func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// bidRaw places a bid without touching t, so it can run on any goroutine
func (a *testApp) bidRaw(token, itemID string, amount float64) *httptest.ResponseRecorder {
	body := fmt.Sprintf(`{"auctionItemId":%q,"bidAmount":%g}`, itemID, amount)
	req := httptest.NewRequest(http.MethodPost, "/bids", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}
