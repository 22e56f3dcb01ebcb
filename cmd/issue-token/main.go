package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/stemsi/enrollment-backend/internal/auth"
	"github.com/stemsi/enrollment-backend/internal/config"
)

func main() {
	var (
		role   string
		id     int
		expiry time.Duration
	)
	flag.StringVar(&role, "role", "student", "Token role: admin or student")
	flag.IntVar(&id, "id", 0, "Student ID (student tokens) or operator ID (admin tokens)")
	flag.DurationVar(&expiry, "expiry", 0, "Token lifetime (default: JWT_EXPIRY)")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if expiry <= 0 {
		expiry = cfg.JWTExpiry
	}
	if id < 1 {
		fmt.Fprintln(os.Stderr, "Error: -id must be a positive integer")
		os.Exit(1)
	}

	tokens := auth.NewTokenService(cfg.JWTSecret, expiry)

	var token string
	switch auth.TokenType(role) {
	case auth.TokenTypeAdmin:
		token, err = tokens.GenerateAdminToken(id)
	case auth.TokenTypeStudent:
		token, err = tokens.GenerateStudentToken(id)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown role %q (want admin or student)\n", role)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
