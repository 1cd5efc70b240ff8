package server

import (
	"net/http"

	auction "auction-marketplace/internal/auctionService"
	"auction-marketplace/internal/auth"
	bidding "auction-marketplace/internal/biddingService"
	users "auction-marketplace/internal/userService"
	auctionhandler "auction-marketplace/services/auction/handler"
	biddinghandler "auction-marketplace/services/bidding/handler"
	usershandler "auction-marketplace/services/users/handler"
	"auction-marketplace/utils"

	"github.com/gin-gonic/gin"
)

// Dependencies carries everything the router wires into handlers
type Dependencies struct {
	Bidding  *bidding.BiddingService
	Auctions *auction.AuctionService
	Users    *users.UserService
	Tokens   *auth.Issuer

	UploadsDir     string
	MaxUploadBytes int64
	CORSOrigin     string
	SecureCookies  bool
}

// SetupRouter configures all Gin routes for the application
func SetupRouter(deps Dependencies) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestLoggerMiddleware) // custom request logging
	if deps.CORSOrigin != "" {
		router.Use(CORSMiddleware(deps.CORSOrigin))
	}

	biddingHandler := biddinghandler.NewBiddingHandler(deps.Bidding)
	auctionHandler := auctionhandler.NewAuctionHandler(deps.Auctions, deps.MaxUploadBytes)
	usersHandler := usershandler.NewUsersHandler(deps.Users, deps.Tokens.Expiry(), deps.SecureCookies)
	requireAuth := AuthMiddleware(deps.Tokens)

	router.GET("/health", func(c *gin.Context) {
		utils.JSONResponse(c, http.StatusOK, gin.H{"status": "ok"}, "service healthy")
	})
	if deps.UploadsDir != "" {
		router.Static("/uploads", deps.UploadsDir)
	}

	auctions := router.Group("/auctions")
	{
		auctions.GET("", auctionHandler.ListAuctionsHandler)
		auctions.POST("", requireAuth, auctionHandler.CreateAuctionHandler)
		auctions.GET("/user", requireAuth, auctionHandler.ListOwnAuctionsHandler)
		auctions.POST("/user", requireAuth, auctionHandler.ListOwnAuctionsHandler)
		auctions.GET("/won", requireAuth, auctionHandler.GetWonAuctionsHandler)
		auctions.POST("/won", requireAuth, auctionHandler.GetWonAuctionsHandler)
		auctions.GET("/winner/:id", auctionHandler.GetWinnerHandler)
		auctions.GET("/:id", auctionHandler.GetAuctionHandler)
		auctions.PUT("/:id", requireAuth, auctionHandler.UpdateAuctionHandler)
		auctions.DELETE("/:id", requireAuth, auctionHandler.DeleteAuctionHandler)
	}

	bids := router.Group("/bids")
	{
		bids.POST("", requireAuth, biddingHandler.RecordBidHandler)
		bids.GET("/user", requireAuth, biddingHandler.GetBidsByUserHandler)
		bids.POST("/user", requireAuth, biddingHandler.GetBidsByUserHandler)
		bids.GET("/:id", biddingHandler.GetBidsByItemHandler)
		bids.GET("/:id/highest", biddingHandler.GetHighestBidHandler)
	}

	usersGroup := router.Group("/users")
	{
		usersGroup.POST("/register", usersHandler.RegisterHandler)
		usersGroup.POST("/login", usersHandler.LoginHandler)
		usersGroup.POST("/logout", usersHandler.LogoutHandler)
		usersGroup.GET("/profile", requireAuth, usersHandler.ProfileHandler)
		usersGroup.POST("/profile", requireAuth, usersHandler.ProfileHandler)
	}

	return router
}
