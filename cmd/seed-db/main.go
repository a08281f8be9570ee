// Command seed-db prepares a local database for development: it runs the
// migrations, inserts a test user, and prints a signed bearer token for that
// user so the API can be exercised with curl.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/web3radar/billing-api/internal/domain/auth"
	"github.com/web3radar/billing-api/internal/repository"
)

const upsertUserSQL = `INSERT INTO users (id, email, first_name, last_name, email_verified)
	VALUES ($1, $2, $3, $4, TRUE)
	ON CONFLICT (email) DO UPDATE SET updated_at = NOW()
	RETURNING id`

func main() {
	var (
		databaseURL string
		userID      string
		email       string
		firstName   string
		lastName    string
		jwtSecret   string
		tokenTTL    time.Duration
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&userID, "user-id", "", "id of the seeded user (default: random)")
	flag.StringVar(&email, "email", "dev@example.com", "email of the seeded user")
	flag.StringVar(&firstName, "first-name", "Dev", "first name of the seeded user")
	flag.StringVar(&lastName, "last-name", "User", "last name of the seeded user")
	flag.StringVar(&jwtSecret, "jwt-secret", "", "HMAC secret for signing the test token (or RADAR_JWT_SECRET env)")
	flag.DurationVar(&tokenTTL, "token-ttl", 24*time.Hour, "lifetime of the printed test token")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if jwtSecret == "" {
		jwtSecret = os.Getenv("RADAR_JWT_SECRET")
	}
	if jwtSecret == "" {
		slog.Error("JWT secret is required: set --jwt-secret or RADAR_JWT_SECRET")
		os.Exit(1)
	}
	if userID == "" {
		userID = uuid.New().String()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, userID, email, firstName, lastName, jwtSecret, tokenTTL); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedID, email, firstName, lastName, jwtSecret string, tokenTTL time.Duration) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	var userID string
	err = pool.QueryRow(ctx, upsertUserSQL, seedID, email, firstName, lastName).Scan(&userID)
	if err != nil {
		return errors.Wrapf(err, "upsert user %s", email)
	}

	slog.Info("upserted user", slog.String("id", userID), slog.String("email", email))

	token, err := signToken(userID, email, jwtSecret, tokenTTL)
	if err != nil {
		return errors.Wrap(err, "sign test token")
	}

	fmt.Printf("Bearer token for %s (valid %s):\n%s\n", email, tokenTTL, token)
	return nil
}

func signToken(userID, email, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := auth.Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
