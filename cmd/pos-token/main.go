// Command pos-token prints a signed cashier token accepted by pos-api. It reads JWT_SECRET
// the same way the API does, from the environment or an env file.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/fjod/go_pos/internal/auth"
	"github.com/fjod/go_pos/internal/config"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("pos-token: %v", err)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("pos-token", flag.ContinueOnError)
	cashier := fs.String("cashier", "", "cashier id the token is issued for")
	ttl := fs.Duration("ttl", 12*time.Hour, "how long the token stays valid")
	envFile := fs.String("env", ".env", "env file to read JWT_SECRET from, if present")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *cashier == "" {
		return errors.New("-cashier is required")
	}
	if *ttl <= 0 {
		return fmt.Errorf("-ttl must be positive, got %s", *ttl)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}

	token, err := auth.IssueToken([]byte(cfg.JWTSecret), *cashier, *ttl)
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
