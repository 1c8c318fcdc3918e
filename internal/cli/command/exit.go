package command

import (
	"context"
	"errors"
	"net/http"

	"github.com/yndnr/pairmesh-go/internal/cli/connection"
)

// Process exit codes of pairmesh-cli.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitAPI         = 2
	ExitAuth        = 3
	ExitRateLimited = 4
	ExitInterrupted = 130
)

// ExitCode maps a command error to the process exit code so scripts can
// tell a rejected credential from a throttled or failed call.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, context.Canceled) {
		return ExitInterrupted
	}
	var apiErr *connection.APIError
	if !errors.As(err, &apiErr) {
		return ExitFailure
	}
	switch apiErr.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ExitAuth
	case http.StatusTooManyRequests:
		return ExitRateLimited
	default:
		return ExitAPI
	}
}
