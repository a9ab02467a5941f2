package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/playfunia-backend/internal/ledger"
	"github.com/angelmondragon/playfunia-backend/internal/livesync"
	"github.com/angelmondragon/playfunia-backend/internal/orchestrator"
	"github.com/angelmondragon/playfunia-backend/pkg/checkout"
	"github.com/angelmondragon/playfunia-backend/pkg/enums"
	"github.com/angelmondragon/playfunia-backend/pkg/types"
)

type command func(ctx context.Context, a *app, args []string, out io.Writer) error

var commands = map[string]command{
	"add-ticket":     addTicket,
	"add-membership": addMembership,
	"add-deposit":    addDeposit,
	"remove":         removeItem,
	"list":           listItems,
	"clear":          clearCart,
	"checkout":       checkoutCart,
	"deposit":        payDeposit,
	"estimate":       estimate,
	"watch":          watch,
}

func newFlags(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func addTicket(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("add-ticket", out)
	label := fs.String("label", "Open play", "ticket label")
	event := fs.String("event", "", "event id, empty for open play")
	qty := fs.Int("qty", 1, "number of tickets")
	price := fs.Float64("price", 0, "displayed unit price")
	if err := fs.Parse(args); err != nil {
		return err
	}
	item := ledger.NewTicket(uuid.NewString(), ledger.Ticket{
		EventID:   *event,
		Label:     *label,
		Quantity:  *qty,
		UnitPrice: *price,
		Total:     *price * float64(*qty),
	})
	if err := a.ledger.Add(ctx, item); err != nil {
		return err
	}
	fmt.Fprintln(out, item.ID)
	return nil
}

func addMembership(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("add-membership", out)
	plan := fs.String("plan", "", "membership plan id (required)")
	label := fs.String("label", "", "plan label")
	monthly := fs.Float64("monthly", 0, "displayed monthly price")
	months := fs.Int("months", 1, "duration in months")
	autoRenew := fs.Bool("auto-renew", false, "renew automatically")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*label) == "" {
		*label = *plan
	}
	item := ledger.NewMembership(uuid.NewString(), ledger.Membership{
		MembershipID:   *plan,
		Label:          *label,
		MonthlyPrice:   *monthly,
		DurationMonths: *months,
		AutoRenew:      *autoRenew,
		Total:          *monthly * float64(*months),
	})
	if err := a.ledger.Add(ctx, item); err != nil {
		return err
	}
	fmt.Fprintln(out, item.ID)
	return nil
}

// addDeposit loads the booking from the API so the cart carries the server's
// amounts.
func addDeposit(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("add-deposit", out)
	bookingID := fs.String("booking", "", "booking id (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *bookingID == "" {
		return errors.New("-booking is required")
	}
	if a.cfg.Token == "" {
		return errors.New("PLAYFUNIA_CLIENT_TOKEN is required to load a booking")
	}
	api, err := a.api(a.cfg.Token)
	if err != nil {
		return err
	}
	var booking types.AdminBooking
	if err := api.GetJSON(ctx, "/api/bookings/"+url.PathEscape(*bookingID), &booking); err != nil {
		return err
	}
	status := ledger.BookingAwaitingDeposit
	if booking.PaymentStatus != string(enums.BookingPaymentAwaitingDeposit) {
		status = ledger.BookingDepositPaid
	}
	item := ledger.NewBooking(uuid.NewString(), ledger.Booking{
		BookingID:        booking.ID,
		Reference:        booking.Reference,
		Location:         booking.Location,
		EventDate:        booking.EventDate,
		StartTime:        booking.StartTime,
		Total:            booking.Total,
		DepositAmount:    booking.DepositAmount,
		BalanceRemaining: booking.BalanceRemaining,
		Status:           status,
	})
	if err := a.ledger.Add(ctx, item); err != nil {
		return err
	}
	fmt.Fprintln(out, item.ID)
	return nil
}

func removeItem(ctx context.Context, a *app, args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: cartctl remove <item-id>")
	}
	return a.ledger.Remove(ctx, args[0])
}

func clearCart(ctx context.Context, a *app, _ []string, _ io.Writer) error {
	return a.ledger.Clear(ctx)
}

func listItems(_ context.Context, a *app, _ []string, out io.Writer) error {
	items := a.ledger.Items()
	if len(items) == 0 {
		fmt.Fprintln(out, "cart is empty")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tLABEL\tSTATUS\tAMOUNT\tDETAIL")
	for _, item := range items {
		var status, detail string
		var amount float64
		switch item.Kind {
		case ledger.KindTicket:
			status, amount = string(item.Ticket.Status), item.Ticket.Total
			detail = fmt.Sprintf("qty %d", item.Ticket.Quantity)
			if len(item.Ticket.Codes) > 0 {
				detail = strings.Join(item.Ticket.Codes, ",")
			}
		case ledger.KindMembership:
			status, amount = string(item.Membership.Status), item.Membership.Total
			detail = fmt.Sprintf("%d months", item.Membership.DurationMonths)
		case ledger.KindBooking:
			status, amount = string(item.Booking.Status), item.Booking.DepositAmount
			detail = fmt.Sprintf("balance %.2f", item.Booking.BalanceRemaining)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\t%s\n", item.ID, item.Kind, item.Label(), status, amount, detail)
	}
	return tw.Flush()
}

func checkoutCart(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("checkout", out)
	promo := fs.String("promo", "", "promo code")
	waiver := fs.Bool("waiver", false, "guest acknowledges the waiver")
	guest := guestFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	engine, err := a.engine(ctx, guest.value())
	if err != nil {
		return err
	}
	result, err := engine.Checkout(ctx, orchestrator.CheckoutRequest{PromoCode: *promo, WaiverAcknowledged: *waiver})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "paid %.2f via %s\n", result.Summary.Total, result.Provider)
	for _, t := range result.Tickets {
		codes := make([]string, 0, len(t.Ticket.Codes))
		for _, c := range t.Ticket.Codes {
			codes = append(codes, c.Code)
		}
		fmt.Fprintf(out, "  tickets %s: %s\n", t.ItemID, strings.Join(codes, ", "))
	}
	for _, m := range result.Memberships {
		fmt.Fprintf(out, "  membership %s: %s\n", m.ItemID, m.Membership.TierName)
	}
	if result.ReceiptURL != "" {
		fmt.Fprintln(out, "receipt:", result.ReceiptURL)
	}
	return nil
}

func payDeposit(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("deposit", out)
	bookingID := fs.String("booking", "", "booking id (required)")
	waiver := fs.Bool("waiver", false, "guest acknowledges the waiver")
	guest := guestFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *bookingID == "" {
		return errors.New("-booking is required")
	}
	engine, err := a.engine(ctx, guest.value())
	if err != nil {
		return err
	}
	confirmed, err := engine.PayDeposit(ctx, orchestrator.DepositRequest{BookingID: *bookingID, WaiverAcknowledged: *waiver})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "deposit paid for %s, balance remaining %.2f\n", confirmed.BookingID, confirmed.BalanceRemaining)
	return nil
}

func estimate(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("estimate", out)
	pkg := fs.String("package", "", "party package id (required)")
	guests := fs.Int("guests", 10, "number of guests")
	addOns := fs.String("add-ons", "", "comma separated add-on ids")
	if err := fs.Parse(args); err != nil {
		return err
	}
	api, err := a.api(a.cfg.Token)
	if err != nil {
		return err
	}
	var extras []string
	for _, id := range strings.Split(*addOns, ",") {
		if id = strings.TrimSpace(id); id != "" {
			extras = append(extras, id)
		}
	}
	total, err := orchestrator.NewAPIEstimator(api).Estimate(ctx, *pkg, *guests, extras)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "estimated total %.2f\n", total)
	return nil
}

// watch prints one line per dashboard change until interrupted.
func watch(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlags("watch", out)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if a.cfg.Token == "" {
		return errors.New("PLAYFUNIA_CLIENT_TOKEN with a staff role is required")
	}
	api, err := a.api(a.cfg.Token)
	if err != nil {
		return err
	}
	source, err := livesync.NewAPISource(api)
	if err != nil {
		return err
	}
	dash, err := livesync.NewDashboard(livesync.Options{
		Source:   source,
		Logger:   a.logger,
		Window:   a.cfg.DebounceWindow,
		OnChange: func(s livesync.State) { fmt.Fprintln(out, statusLine(s)) },
	})
	if err != nil {
		return err
	}
	defer dash.Close()

	if err := dash.Refresh(ctx, false); err != nil {
		return err
	}
	if err := dash.Connect(livesync.StreamOptions{URL: api.URL("/api/admin/events"), Token: a.cfg.Token}); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

func statusLine(s livesync.State) string {
	if s.LoadError != nil {
		return "load failed: " + message(s.LoadError)
	}
	line := fmt.Sprintf("[%s] %s bookings=%d upcoming=%d deposits_due=%d waivers=%d tickets=%d memberships=%d",
		s.Connection,
		s.RefreshedAt.Local().Format(time.TimeOnly),
		len(s.Data.Bookings),
		s.Data.Summary.UpcomingBookings,
		s.Data.Summary.PendingDeposits,
		len(s.Data.Waivers),
		len(s.Data.Tickets),
		len(s.Data.Memberships),
	)
	if s.SyncWarning != "" {
		line += " | " + s.SyncWarning
	}
	return line
}

type guestOptions struct {
	first, last, email, phone *string
}

func guestFlags(fs *flag.FlagSet) guestOptions {
	return guestOptions{
		first: fs.String("first", "", "guest first name"),
		last:  fs.String("last", "", "guest last name"),
		email: fs.String("email", "", "guest email"),
		phone: fs.String("phone", "", "guest phone"),
	}
}

// value is nil when no guest email was given.
func (g guestOptions) value() *checkout.Guest {
	if strings.TrimSpace(*g.email) == "" {
		return nil
	}
	return &checkout.Guest{FirstName: *g.first, LastName: *g.last, Email: *g.email, Phone: *g.phone}
}
