// Package adminctl implements the operator commands that manage the
// protected admin account outside the HTTP API.
package adminctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/signalrelay/internal/server/services"
)

const usage = `Usage: adminctl <command> [flags]

Commands:
  ensure-admin           create the admin account if it does not exist
  reset-admin-password   set a new password for the admin account
`

var errUnknownCommand = errors.New("unknown command")

type Tool struct {
	accounts *services.AccountService
	username string
	email    string
	password string
	out      io.Writer
}

// New returns a Tool. password, when non-empty, is used by ensure-admin
// instead of prompting.
func New(accounts *services.AccountService, username, email, password string, out io.Writer) *Tool {
	return &Tool{accounts: accounts, username: username, email: email, password: password, out: out}
}

// Run executes the command named in args.
func (t *Tool) Run(ctx context.Context, args []string) error {
	switch Command(args) {
	case "ensure-admin":
		return t.ensureAdmin(ctx)
	case "reset-admin-password":
		return t.resetPassword(ctx)
	case "", "help":
		fmt.Fprint(t.out, usage)
		return nil
	default:
		fmt.Fprint(t.out, usage)
		return fmt.Errorf("%w: %s", errUnknownCommand, Command(args))
	}
}

func (t *Tool) ensureAdmin(ctx context.Context) error {
	password := t.password
	if password == "" {
		var err error
		if password, err = getNewPassword(t.out); err != nil {
			return err
		}
	}

	created, err := t.accounts.EnsureAdmin(ctx, t.username, t.email, password)
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(t.out, "Admin %q created\n", t.username)
	} else {
		fmt.Fprintln(t.out, "Admin already exists, nothing to do")
	}
	return nil
}

func (t *Tool) resetPassword(ctx context.Context) error {
	password, err := getNewPassword(t.out)
	if err != nil {
		return err
	}
	if err := t.accounts.UpdateAdminPassword(ctx, password); err != nil {
		return err
	}
	fmt.Fprintln(t.out, "Admin password updated, existing sessions revoked")
	return nil
}

// Command returns the first positional argument, skipping config flags and
// their values.
func Command(args []string) string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if !strings.HasPrefix(a, "-") {
			return a
		}
		if strings.Contains(a, "=") || a == "-v" {
			continue
		}
		i++
	}
	return ""
}
