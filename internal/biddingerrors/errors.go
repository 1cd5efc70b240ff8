package biddingerrors

import "errors"

// Repository-level errors
var (
	ErrItemNotFound = errors.New("auction item not found")
	ErrUserNotFound = errors.New("user not found")
	ErrNoBids       = errors.New("no bids found for auction")
	ErrUserNoBids   = errors.New("user has not placed any bids")
	ErrEmailTaken   = errors.New("email already registered")
)

// business logic errors
var (
	ErrInvalidBid         = errors.New("invalid bid")
	ErrBidTooLow          = errors.New("bid amount too low")
	ErrAuctionClosed      = errors.New("auction has ended")
	ErrAuctionNotEnded    = errors.New("auction has not ended")
	ErrInvalidInput       = errors.New("invalid input")
	ErrForbidden          = errors.New("unauthorized action")
	ErrUnauthorized       = errors.New("not authenticated")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
