package command

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/pairmesh-go/internal/cli/connection"
	"github.com/yndnr/pairmesh-go/internal/cli/output"
	"github.com/yndnr/pairmesh-go/internal/core/domain"
)

// DefaultHeartbeat is the default interval between heartbeat-ping events.
const DefaultHeartbeat = 15 * time.Second

// errEnough stops the listen loop once --count events were printed.
var errEnough = errors.New("event count reached")

// ListenCommand streams realtime hub events to stdout.
func ListenCommand() *cli.Command {
	return &cli.Command{
		Name:  "listen",
		Usage: "Connect to the realtime hub and print events",
		Description: "Without a session the connection is admitted as the primary. " +
			"With --session (or a saved session) it is admitted as a paired secondary.",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "primary",
				Usage: "Connect as the primary even when a session is available",
			},
			&cli.DurationFlag{
				Name:  "heartbeat",
				Value: DefaultHeartbeat,
				Usage: "Interval between heartbeat pings, 0 disables them",
			},
			&cli.BoolFlag{
				Name:  "request-state",
				Usage: "Ask for the current peer list after connecting",
			},
			&cli.BoolFlag{
				Name:  "show-heartbeat",
				Usage: "Print heartbeat-pong events",
			},
			&cli.IntFlag{
				Name:  "count",
				Usage: "Exit after printing this many events, 0 means no limit",
			},
		},
		Action: listenAction,
	}
}

func listenAction(c *cli.Context) error {
	flags := ParseGlobalFlags(c)
	session := flags.Session
	if c.Bool("primary") {
		session = ""
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	spin := output.NewSpinner(notices(c, flags), "connecting to "+flags.Server)
	spin.Start()
	rc, err := connection.DialRealtime(ctx, flags.Server, session, flags.transport()...)
	if err != nil {
		spin.Fail("connection refused")
		return err
	}
	defer rc.Close()

	accepted := rc.Accepted()
	spin.Success(fmt.Sprintf("connected as %s (%s)", accepted.Role, accepted.ConnectionID))

	if c.Bool("request-state") {
		if err := rc.Send(ctx, domain.EventRequestState); err != nil {
			return fmt.Errorf("request state: %w", err)
		}
	}

	emit := eventPrinter(c.App.Writer, flags.Output)
	limit := c.Int("count")
	printed := 0

	err = rc.Listen(ctx, c.Duration("heartbeat"), func(ev domain.Event) error {
		if ev.Type == domain.EventHeartbeatPong && !c.Bool("show-heartbeat") {
			return nil
		}
		if err := emit(ev); err != nil {
			return err
		}
		printed++
		if limit > 0 && printed >= limit {
			return errEnough
		}
		return nil
	})
	if errors.Is(err, errEnough) {
		return nil
	}
	return err
}

// eventPrinter renders one event per record. JSON output is one compact
// object per line so it can be piped into line-oriented tools.
func eventPrinter(w io.Writer, format output.Format) func(domain.Event) error {
	switch format {
	case output.FormatJSON:
		f := &output.JSONFormatter{Compact: true}
		return func(ev domain.Event) error { return f.Format(w, ev) }
	case output.FormatYAML:
		f := &output.YAMLFormatter{}
		return func(ev domain.Event) error {
			fmt.Fprintln(w, "---")
			return f.Format(w, ev)
		}
	default:
		return func(ev domain.Event) error {
			payload := "-"
			if len(ev.Payload) > 0 {
				payload = string(ev.Payload)
			}
			_, err := fmt.Fprintf(w, "%s  %-20s %s\n", time.Now().Format(output.TimeLayout), ev.Type, payload)
			return err
		}
	}
}
