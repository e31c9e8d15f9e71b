package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/breachwatch/breachwatch/internal/identity"
)

func runAdmin(args []string) int {
	if len(args) == 0 {
		printAdminUsage()
		return 2
	}

	switch args[0] {
	case "verify-domain":
		return runSetDomainVerified(args[1:], true)
	case "unverify-domain":
		return runSetDomainVerified(args[1:], false)
	case "grant-role":
		return runGrantRole(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown admin command: %s\n", args[0])
		printAdminUsage()
		return 2
	}
}

func printAdminUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  breachwatch admin verify-domain --id <domain-uuid> [--db-dsn <dsn>]")
	fmt.Fprintln(os.Stderr, "  breachwatch admin unverify-domain --id <domain-uuid> [--db-dsn <dsn>]")
	fmt.Fprintln(os.Stderr, "  breachwatch admin grant-role --email user@example.com --role ADMIN [--db-dsn <dsn>]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Notes:")
	fmt.Fprintln(os.Stderr, "  - --db-dsn defaults to BW_DB_DSN.")
}

func adminPool(ctx context.Context, dbDSN string) (*pgxpool.Pool, error) {
	if dbDSN == "" {
		dbDSN = strings.TrimSpace(os.Getenv("BW_DB_DSN"))
	}
	if dbDSN == "" {
		return nil, errors.New("--db-dsn is required (or set BW_DB_DSN)")
	}
	return pgxpool.New(ctx, dbDSN)
}

func runSetDomainVerified(args []string, verified bool) int {
	name := "verify-domain"
	if !verified {
		name = "unverify-domain"
	}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var idStr string
	var dbDSN string

	fs.StringVar(&idStr, "id", "", "Domain ID")
	fs.StringVar(&dbDSN, "db-dsn", "", "Postgres DSN (defaults to BW_DB_DSN)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	domainID, err := uuid.Parse(strings.TrimSpace(idStr))
	if err != nil {
		fmt.Fprintln(os.Stderr, "--id must be a valid domain UUID")
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := adminPool(ctx, dbDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	query := `
		UPDATE domains
		SET is_verified = TRUE, verified_at = COALESCE(verified_at, NOW()), updated_at = NOW()
		WHERE id = $1`
	if !verified {
		query = `
		UPDATE domains
		SET is_verified = FALSE, verified_at = NULL, updated_at = NOW()
		WHERE id = $1`
	}

	tag, err := pool.Exec(ctx, query, domainID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to update domain: %v\n", err)
		return 1
	}
	if tag.RowsAffected() == 0 {
		fmt.Fprintf(os.Stderr, "No domain found with ID %s\n", domainID)
		return 1
	}

	if verified {
		fmt.Fprintln(os.Stdout, "Domain verified.")
	} else {
		fmt.Fprintln(os.Stdout, "Domain unverified.")
	}
	return 0
}

func runGrantRole(args []string) int {
	fs := flag.NewFlagSet("grant-role", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var email string
	var roleStr string
	var dbDSN string

	fs.StringVar(&email, "email", "", "User email")
	fs.StringVar(&roleStr, "role", "", "Platform role (USER, ADMIN, SUPER_ADMIN)")
	fs.StringVar(&dbDSN, "db-dsn", "", "Postgres DSN (defaults to BW_DB_DSN)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		fmt.Fprintln(os.Stderr, "--email is required")
		return 2
	}

	role := identity.PlatformRole(strings.ToUpper(strings.TrimSpace(roleStr)))
	if !role.IsValid() {
		fmt.Fprintln(os.Stderr, "--role must be one of: USER, ADMIN, SUPER_ADMIN")
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := adminPool(ctx, dbDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	tag, err := pool.Exec(ctx, `UPDATE users SET platform_role = $2, updated_at = NOW() WHERE email = $1`, email, role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to update role: %v\n", err)
		return 1
	}
	if tag.RowsAffected() == 0 {
		fmt.Fprintf(os.Stderr, "No user found with email %q\n", email)
		return 1
	}

	fmt.Fprintf(os.Stdout, "Granted %s to %s.\n", role, email)
	return 0
}
