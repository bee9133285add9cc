package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"crowdfund/internal/domain"
	"crowdfund/internal/infra"
	"crowdfund/internal/middleware"
	"crowdfund/internal/store"
)

const usage = `usage: escrowctl <command> [flags]

commands:
  credit   -account <identity> -amount <n>   add funds to a ledger account
  balance  -account <identity>               print a ledger balance
  token    -sub <identity> [-ttl 24h]        mint a bearer token for an identity
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cfg, err := infra.LoadConfig()
	if err != nil {
		exitWithError(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch os.Args[1] {
	case "credit":
		err = credit(ctx, cfg, os.Args[2:])
	case "balance":
		err = balance(ctx, cfg, os.Args[2:])
	case "token":
		err = token(cfg, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		exitWithError(err)
	}
}

func credit(ctx context.Context, cfg *infra.Config, args []string) error {
	fs := flag.NewFlagSet("credit", flag.ExitOnError)
	account := fs.String("account", "", "ledger account to credit")
	amountFlag := fs.String("amount", "", "amount in base units")
	_ = fs.Parse(args)

	who := strings.TrimSpace(*account)
	if who == "" {
		return errors.New("-account is required")
	}
	amount, err := strconv.ParseUint(strings.TrimSpace(*amountFlag), 10, 64)
	if err != nil || amount == 0 {
		return fmt.Errorf("-amount must be a positive integer")
	}
	if domain.Identity(who).Reserved() {
		return fmt.Errorf("%s is an engine ledger account and cannot be credited directly", who)
	}
	if err := cfg.RequirePersistentStore("credit"); err != nil {
		return err
	}

	st, err := store.Open(ctx, cfg, zerolog.Nop())
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Credit(ctx, domain.Identity(who), amount); err != nil {
		return fmt.Errorf("credit %s: %w", who, err)
	}
	b, err := st.Balance(ctx, domain.Identity(who))
	if err != nil {
		return err
	}
	fmt.Printf("credited %d to %s, balance %d\n", amount, who, b)
	return nil
}

func balance(ctx context.Context, cfg *infra.Config, args []string) error {
	fs := flag.NewFlagSet("balance", flag.ExitOnError)
	account := fs.String("account", "", "ledger account to read")
	_ = fs.Parse(args)

	who := strings.TrimSpace(*account)
	if who == "" {
		return errors.New("-account is required")
	}
	st, err := store.Open(ctx, cfg, zerolog.Nop())
	if err != nil {
		return err
	}
	defer st.Close()

	b, err := st.Balance(ctx, domain.Identity(who))
	if err != nil {
		return err
	}
	fmt.Println(b)
	return nil
}

func token(cfg *infra.Config, args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	sub := fs.String("sub", "", "identity placed in the token subject")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime (0 for no expiry)")
	_ = fs.Parse(args)

	who := strings.TrimSpace(*sub)
	if who == "" {
		return errors.New("-sub is required")
	}
	signed, err := middleware.SignJWT(cfg.JWTSecret, domain.Identity(who), *ttl)
	if err != nil {
		return err
	}
	fmt.Println(signed)
	return nil
}

func exitWithError(err error) {
	fmt.Fprintf(os.Stderr, "escrowctl: %v\n", err)
	os.Exit(1)
}
