package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/traveal-app/traveal-api/internal/platform/auth/tokens"
	platformclock "github.com/traveal-app/traveal-api/internal/platform/clock"
)

// Tiny dev-only token minter.
//
// It signs an access/refresh pair with the same secret the API uses, so
// handlers can be exercised with curl during local development. Note that
// refresh tokens minted here are not registered with the API's revocation
// store and will not survive a refresh call.
func main() {
	userUUID := flag.String("user", "", "user UUID to embed as the token subject (default: random)")
	accessTTL := flag.Duration("access-ttl", 15*time.Minute, "access token lifetime")
	refreshTTL := flag.Duration("refresh-ttl", 7*24*time.Hour, "refresh token lifetime")
	flag.Parse()

	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	sub := *userUUID
	if sub == "" {
		sub = uuid.NewString()
	}

	svc := tokens.NewService(tokens.Config{
		Secret:     secret,
		AccessTTL:  *accessTTL,
		RefreshTTL: *refreshTTL,
	}, platformclock.NewSystemClock())

	pair, err := svc.Issue(sub)
	if err != nil {
		log.Fatalf("issue tokens: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]any{
		"user":         sub,
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresIn":    pair.ExpiresIn,
	})
}
