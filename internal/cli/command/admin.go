package command

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/pairmesh-go/internal/cli/connection"
	"github.com/yndnr/pairmesh-go/internal/core/service"
)

// errNoAdminKey is returned by admin commands run without a key.
var errNoAdminKey = errors.New("admin key required: pass --admin-key or set PAIRMESH_ADMIN_KEY")

// AdminCommand returns the admin subcommand group.
func AdminCommand() *cli.Command {
	return &cli.Command{
		Name:  "admin",
		Usage: "Operator administration",
		Subcommands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show token, connection and rate limiter statistics",
				Action: adminStatus,
			},
			{
				Name:  "reset-limits",
				Usage: "Clear rate limit windows of a route",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "route",
						Aliases:  []string{"r"},
						Usage:    "Rate-limited route: pairing or uploads",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "identifier",
						Aliases: []string{"i"},
						Usage:   "Client identifier (IP) to clear, all windows when empty",
					},
				},
				Action: adminResetLimits,
			},
			{
				Name:  "invalidate",
				Usage: "Invalidate every pairing and session token",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "yes",
						Aliases: []string{"y"},
						Usage:   "Confirm that all paired clients must pair again",
					},
				},
				Action: adminInvalidate,
			},
			{
				Name:  "hash-key",
				Usage: "Generate an admin key and its Argon2id hash for security.admin_key_hash",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "key",
						Usage: "Hash this key instead of generating one",
					},
				},
				Action: adminHashKey,
			},
		},
	}
}

func adminClient(c *cli.Context) (*connection.HTTPClient, *GlobalFlags, error) {
	client, flags := newClient(c)
	if flags.AdminKey == "" {
		return nil, nil, errNoAdminKey
	}
	return client, flags, nil
}

func adminStatus(c *cli.Context) error {
	client, flags, err := adminClient(c)
	if err != nil {
		return err
	}

	resp, err := client.Get(c.Context, "/admin/v1/status/summary")
	if err != nil {
		return fmt.Errorf("get status: %w", err)
	}
	var summary statusSummary
	if err := connection.ParseResponse(resp, &summary); err != nil {
		return err
	}
	return printResult(c, flags, summary)
}

func adminResetLimits(c *cli.Context) error {
	client, flags, err := adminClient(c)
	if err != nil {
		return err
	}

	resp, err := client.Post(c.Context, "/admin/v1/ratelimit/reset", resetLimitsRequest{
		Route:      c.String("route"),
		Identifier: c.String("identifier"),
	})
	if err != nil {
		return fmt.Errorf("reset limits: %w", err)
	}
	var result resetLimitsResult
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}
	return printResult(c, flags, result)
}

func adminInvalidate(c *cli.Context) error {
	if !c.Bool("yes") {
		return errors.New("refusing to invalidate all tokens without --yes")
	}
	client, flags, err := adminClient(c)
	if err != nil {
		return err
	}

	resp, err := client.Post(c.Context, "/admin/v1/tokens/invalidate", nil)
	if err != nil {
		return fmt.Errorf("invalidate tokens: %w", err)
	}
	var result invalidateResult
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}
	return printResult(c, flags, result)
}

// adminHashKey works offline: the hash goes into the server config and the
// key is handed to operators.
func adminHashKey(c *cli.Context) error {
	flags := ParseGlobalFlags(c)

	key := c.String("key")
	if key == "" {
		generated, err := service.GenerateAdminKey()
		if err != nil {
			return err
		}
		key = generated
	}

	hash, err := service.HashAdminKey(key)
	if err != nil {
		return err
	}
	return printResult(c, flags, adminKeyPair{Key: key, Hash: hash})
}
