// Command useradd provisions an account. Accounts are created out of
// band: the API has no self-registration endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"

	"taskboard/internal/config"
	"taskboard/internal/models"
)

func main() {
	username := flag.String("username", "", "account username (required)")
	email := flag.String("email", "", "account email")
	password := flag.String("password", "", "account password (required)")
	role := flag.String("role", models.RoleUser, "account role")
	flag.Parse()

	if *username == "" || *password == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.NewEnvReader().Read()
	if err != nil {
		fatalf("failed to read env: %v", err)
	}

	connURL := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Postgres.Username, cfg.Postgres.Password, cfg.Postgres.Host,
		cfg.Postgres.Port, cfg.Postgres.Database, cfg.Postgres.SSLMode)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Postgres.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, connURL)
	if err != nil {
		fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	user := models.User{
		Username:  *username,
		Email:     *email,
		Role:      *role,
		CreatedAt: time.Now(),
	}

	userUUID, err := uuid.NewV7()
	if err != nil {
		fatalf("failed to generate user uuid: %v", err)
	}
	user.ID = userUUID.String()

	user.Password, err = argon2id.CreateHash(*password, argon2id.DefaultParams)
	if err != nil {
		fatalf("failed to hash password: %v", err)
	}

	const insertUserQuery = `
INSERT INTO users (id,
                   username,
                   email,
                   password,
                   role,
                   created_at)
VALUES ($1, $2, $3, $4, $5, $6)
`
	_, err = pool.Exec(
		ctx,
		insertUserQuery,
		user.ID,
		user.Username,
		user.Email,
		user.Password,
		user.Role,
		user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			fatalf("user %q already exists", user.Username)
		}
		fatalf("failed to insert user: %v", err)
	}

	fmt.Printf("created user %s (%s)\n", user.Username, user.ID)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
