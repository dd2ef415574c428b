package auth

import (
	"github.com/traveal-app/traveal-api/internal/domain"
	"github.com/traveal-app/traveal-api/internal/platform/auth/tokens"
)

// Session is a user record plus the token pair minted for it.
type Session struct {
	User   domain.User
	Tokens tokens.Pair
}

// Profile is the authenticated user's own view of their account.
type Profile struct {
	User  domain.User
	Stats ProfileStats
}

type ProfileStats struct {
	TotalTrips          int
	UnreadNotifications int
}
