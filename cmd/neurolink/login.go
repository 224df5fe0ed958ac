package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"neurolink/internal/session"
	"neurolink/pkg/types"

	"github.com/urfave/cli/v2"
)

var loginCommand = &cli.Command{
	Name:  "login",
	Usage: "Sign in against the referral backend and remember the session",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "email",
			Aliases:  []string{"e"},
			Usage:    "Account email",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "password",
			Usage:   "Account password, read from stdin when omitted",
			EnvVars: []string{"NEUROLINK_PASSWORD"},
		},
	},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}

		logger := newLogger(cfg, false)
		ctx := context.Background()

		password := c.String("password")
		if password == "" {
			fmt.Fprint(os.Stderr, "Password: ")
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read password: %w", err)
			}
			password = strings.TrimRight(line, "\r\n")
		}

		store, err := sessionFile(cfg)
		if err != nil {
			return err
		}

		inspector, err := session.NewTokenInspector(ctx, cfg.JWKSURL, logger)
		if err != nil {
			return err
		}

		identity, err := session.NewClient(cfg.BackendURL, store, inspector, logger).Login(ctx, c.String("email"), password)
		if err != nil {
			if errors.Is(err, session.ErrInvalidCredentials) {
				return cli.Exit(err.Error(), 1)
			}
			return err
		}

		fmt.Printf("Signed in as %s (%s)\n", displayName(identity), identity.UserRole)
		return nil
	},
}

var logoutCommand = &cli.Command{
	Name:  "logout",
	Usage: "Forget the stored session",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}

		store, err := sessionFile(cfg)
		if err != nil {
			return err
		}

		if err := session.NewClient(cfg.BackendURL, store, nil, newLogger(cfg, false)).Logout(context.Background()); err != nil {
			return err
		}

		fmt.Println("Signed out")
		return nil
	},
}

var whoamiCommand = &cli.Command{
	Name:  "whoami",
	Usage: "Show the stored session",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}

		store, err := sessionFile(cfg)
		if err != nil {
			return err
		}

		identity, err := session.Require(context.Background(), store)
		if err != nil {
			return cli.Exit(types.ErrNoIdentity.Error(), 1)
		}

		fmt.Printf("%s\t%s\t%s\n", identity.UserID, displayName(identity), identity.UserRole)
		if !identity.ExpiresAt.IsZero() {
			fmt.Printf("expires %s\n", identity.ExpiresAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

func displayName(identity types.Identity) string {
	if identity.UserName != "" {
		return identity.UserName
	}
	return identity.UserEmail
}
