package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/HarshKochar9008/WINCE/internal/booking"
	"github.com/HarshKochar9008/WINCE/internal/callback"
)

func newBookingsCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "bookings",
		Args:  cobra.NoArgs,
		Short: "List your bookings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := rt.requireUser(); err != nil {
				return err
			}
			bookings, err := rt.app.Flow().View().Refresh(cmd.Context())
			if err != nil {
				return err
			}
			return rt.emit(bookings, func(w io.Writer) error { return writeBookings(w, bookings) })
		},
	}
}

func newBookCommand(rt *runtime) *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "book <session-id>",
		Args:  cobra.ExactArgs(1),
		Short: "Book a session and pay for it",
		Long: `Book a session. Free sessions are confirmed at once. For paid sessions the
checkout URL is printed and, with --wait, the command waits for the checkout
to redirect back to the local callback listener and verifies the payment.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "session")
			if err != nil {
				return err
			}
			if _, err := rt.requireUser(); err != nil {
				return err
			}

			ctx := cmd.Context()
			session, err := rt.app.Catalog().GetSession(ctx, id)
			if err != nil {
				return err
			}

			cb := rt.app.Callback()
			if wait {
				if err := cb.Start(); err != nil {
					return err
				}
			}

			attempt, err := rt.app.Flow().Start(ctx, session)
			if errors.Is(err, booking.ErrCannotBook) {
				return fmt.Errorf("you cannot book your own session")
			}
			if attempt == nil {
				return err
			}
			if attempt.State != booking.StatePaymentInitiated || !wait {
				if werr := rt.emitAttempt(attempt); werr != nil {
					return werr
				}
				return err
			}

			fmt.Fprintf(rt.errOut, "Waiting for checkout to return to %s%s ...\n", cb.BaseURL(), callback.PathCheckoutReturn)
			waitCtx, cancel := context.WithTimeout(ctx, rt.app.Config().CallbackWait())
			defer cancel()
			final, err := cb.WaitReturn(waitCtx)
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("no checkout return received; run `sessions return --booking-id %d --payment success` once paid", attempt.BookingID())
			}
			if final != nil {
				if werr := rt.emitAttempt(final); werr != nil {
					return werr
				}
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", true, "wait for the checkout to redirect back")

	return cmd
}

func newReturnCommand(rt *runtime) *cobra.Command {
	var (
		bookingID int64
		outcome   string
		ids       = map[string]*string{}
	)

	cmd := &cobra.Command{
		Use:   "return",
		Args:  cobra.NoArgs,
		Short: "Finish a checkout by hand",
		Long: `Finish a checkout when the browser could not reach the callback listener.
Pass the values from the return URL. Running it again for a confirmed booking
is harmless.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := rt.requireUser(); err != nil {
				return err
			}
			q := url.Values{}
			q.Set("payment", outcome)
			q.Set("booking_id", strconv.FormatInt(bookingID, 10))
			for k, v := range ids {
				if *v != "" {
					q.Set(k, *v)
				}
			}
			params, err := booking.ParseReturn(q)
			if err != nil {
				return err
			}

			attempt, err := rt.app.Flow().HandleReturn(cmd.Context(), params)
			if attempt != nil {
				if werr := rt.emitAttempt(attempt); werr != nil {
					return werr
				}
			}
			return err
		},
	}

	f := cmd.Flags()
	f.Int64Var(&bookingID, "booking-id", 0, "booking id from the return URL")
	f.StringVar(&outcome, "payment", string(booking.OutcomeSuccess), "success or cancelled")
	for flag, key := range map[string]string{
		"session-id": "session_id",
		"payment-id": "payment_id",
		"order-id":   "razorpay_order_id",
		"signature":  "razorpay_signature",
	} {
		ids[key] = f.String(flag, "", key+" from the return URL")
	}
	_ = cmd.MarkFlagRequired("booking-id")

	return cmd
}

func (rt *runtime) emitAttempt(a *booking.Attempt) error {
	return rt.emit(a, func(w io.Writer) error {
		if err := writeAttempt(w, a); err != nil {
			return err
		}
		if a.State == booking.StatePaymentInitiated && a.CheckoutURL != "" {
			_, err := fmt.Fprintf(w, "checkout: %s\n", a.CheckoutURL)
			return err
		}
		return nil
	})
}

func newDashboardCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Args:  cobra.NoArgs,
		Short: "Show your sessions and who booked them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := rt.requireUser()
			if err != nil {
				return err
			}
			if !u.IsCreator() {
				return fmt.Errorf("the dashboard is for creators; your role is %s", u.Role)
			}
			d, err := rt.app.Catalog().CreatorDashboard(cmd.Context(), u.ID)
			if err != nil {
				return err
			}
			return rt.emit(d, func(w io.Writer) error {
				fmt.Fprintf(w, "Sessions (%d)\n", len(d.Sessions))
				if err := writeSessions(w, d.Sessions); err != nil {
					return err
				}
				fmt.Fprintf(w, "\nBookings (%d)\n", len(d.Bookings))
				return writeBookings(w, d.Bookings)
			})
		},
	}
}
