// Command cartctl drives the checkout engine from a terminal: it edits the
// persisted cart, pays for it, pays booking deposits and watches the live
// back-office dashboard.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/playfunia-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
	"github.com/angelmondragon/playfunia-backend/pkg/logger"
)

const usage = `usage: cartctl <command> [flags]

commands:
  add-ticket      add open-play tickets to the cart
  add-membership  add a membership plan to the cart
  add-deposit     add a party booking awaiting its deposit
  remove          remove one item by id
  list            print the cart
  clear           empty the cart
  checkout        pay for the tickets and memberships in the cart
  deposit         pay the deposit of a booking in the cart
  estimate        price a party package
  watch           follow the back-office dashboard (staff token required)
`

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "cartctl:", message(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, usage)
		return nil
	}
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}
	logg := logger.New(logger.Options{
		ServiceName: "cartctl",
		Level:       logger.ParseLevel(cfg.LogLevel),
		Format:      cfg.LogFormat,
		Output:      os.Stderr,
	})

	a, err := newApp(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer a.close()

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprint(stdout, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
	return cmd(ctx, a, args[1:], stdout)
}

// message prefers the user-facing text of typed errors.
func message(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Message()
	}
	return err.Error()
}
