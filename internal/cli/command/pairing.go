package command

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/pairmesh-go/internal/cli/config"
	"github.com/yndnr/pairmesh-go/internal/cli/connection"
)

// PairingURLScheme is the scheme of the URL encoded into pairing codes.
const PairingURLScheme = "pairmesh"

// PairCommand issues a one-time pairing token.
func PairCommand() *cli.Command {
	return &cli.Command{
		Name:   "pair",
		Usage:  "Issue a one-time pairing token for a new client",
		Action: pairAction,
	}
}

func pairAction(c *cli.Context) error {
	client, flags := newClient(c)

	resp, err := client.Post(c.Context, "/v1/pairing/ephemeral", nil)
	if err != nil {
		return fmt.Errorf("request pairing token: %w", err)
	}
	var code pairingCode
	if err := connection.ParseResponse(resp, &code); err != nil {
		return err
	}
	return printResult(c, flags, code)
}

// ExchangeCommand trades a pairing token for a session token.
func ExchangeCommand() *cli.Command {
	return &cli.Command{
		Name:      "exchange",
		Usage:     "Exchange a pairing token or pairing URL for a session token",
		ArgsUsage: "PAIRING_TOKEN|PAIRING_URL",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "save",
				Usage: "Store the session in the CLI config file for later commands",
			},
			&cli.BoolFlag{
				Name:  "tls",
				Usage: "Use https when the server is taken from a pairing URL",
			},
		},
		Action: exchangeAction,
	}
}

func exchangeAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("exactly one pairing token or pairing URL is required")
	}

	flags := ParseGlobalFlags(c)
	token, host, err := parsePairingArg(c.Args().First())
	if err != nil {
		return err
	}
	if host != "" && !c.IsSet("server") {
		scheme := "http://"
		if c.Bool("tls") {
			scheme = "https://"
		}
		flags.Server = scheme + host
	}

	client := connection.NewHTTPClient(flags.Server, "", "", flags.transport()...)
	resp, err := client.Post(c.Context, "/v1/pairing/exchange", exchangeRequest{EphemeralValue: token})
	if err != nil {
		return fmt.Errorf("exchange pairing token: %w", err)
	}
	var grant sessionGrant
	if err := connection.ParseResponse(resp, &grant); err != nil {
		return err
	}

	if c.Bool("save") {
		cfg := fileConfig(c)
		cfg.Session = &config.SavedSession{
			Server:    flags.Server,
			Value:     grant.SessionValue,
			PeerID:    grant.PeerID,
			ExpiresAt: grant.ExpiresAt,
		}
		if err := config.Save(cfg, flags.ConfigPath); err != nil {
			return err
		}
		fmt.Fprintf(notices(c, flags), "session saved to %s\n", flags.ConfigPath)
	}

	return printResult(c, flags, grant)
}

// parsePairingArg accepts a bare token or a pairmesh://pair URL and returns
// the token and, for URLs, the advertised host.
func parsePairingArg(arg string) (token, host string, err error) {
	if !strings.HasPrefix(arg, PairingURLScheme+"://") {
		return arg, "", nil
	}
	u, err := url.Parse(arg)
	if err != nil {
		return "", "", fmt.Errorf("invalid pairing URL: %w", err)
	}
	q := u.Query()
	token = q.Get("token")
	if token == "" {
		return "", "", errors.New("pairing URL has no token")
	}
	return token, q.Get("host"), nil
}

// SessionCommand reports whether the current session is still valid.
func SessionCommand() *cli.Command {
	return &cli.Command{
		Name:   "session",
		Usage:  "Show the status of the current session",
		Action: sessionAction,
	}
}

func sessionAction(c *cli.Context) error {
	client, flags := newClient(c)
	if flags.Session == "" {
		return ErrNoSession
	}

	resp, err := client.Get(c.Context, "/v1/pairing/session")
	if err != nil {
		return fmt.Errorf("query session: %w", err)
	}
	var status sessionStatus
	if err := connection.ParseResponse(resp, &status); err != nil {
		return err
	}
	return printResult(c, flags, status)
}
