// Package commands implements the sessions command tree.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/HarshKochar9008/WINCE/internal/app"
	"github.com/HarshKochar9008/WINCE/internal/booking"
	"github.com/HarshKochar9008/WINCE/internal/config"
	"github.com/HarshKochar9008/WINCE/internal/domain"
	"github.com/HarshKochar9008/WINCE/pkg/logger"
)

// annotationNoSession marks commands that do not restore the stored session.
const annotationNoSession = "no-session"

var errNotLoggedIn = errors.New("not logged in; run `sessions login` first")

// runtime carries what every command needs. The app is built lazily, once
// flags are parsed.
type runtime struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	apiURL string
	format string

	app *app.App
}

// Execute runs the command tree with args and releases everything it built.
func Execute(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	rt := &runtime{in: in, out: out, errOut: errOut}
	root := newRootCmd(rt)
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	err := root.ExecuteContext(ctx)
	if cerr := rt.close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// newRootCmd creates the root command.
func newRootCmd(rt *runtime) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "sessions",
		Short:         "Browse, book and pay for sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.setup(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&rt.apiURL, "api", "", "API base URL (overrides API_BASE_URL)")
	rootCmd.PersistentFlags().StringVarP(&rt.format, "output", "o", "text", "output format: text or json")

	rootCmd.AddCommand(
		newLoginCommand(rt),
		newRegisterCommand(rt),
		newLogoutCommand(rt),
		newWhoamiCommand(rt),
		newProfileCommand(rt),
		newOAuthCommand(rt),
		newListCommand(rt),
		newShowCommand(rt),
		newCreateCommand(rt),
		newUpdateCommand(rt),
		newDeleteCommand(rt),
		newUploadImageCommand(rt),
		newBookingsCommand(rt),
		newBookCommand(rt),
		newReturnCommand(rt),
		newDashboardCommand(rt),
		newHealthCommand(rt),
	)

	return rootCmd
}

func (rt *runtime) setup(cmd *cobra.Command) error {
	if rt.format != "text" && rt.format != "json" {
		return fmt.Errorf("--output must be text or json, got %q", rt.format)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if rt.apiURL != "" {
		cfg.APIBaseURL = strings.TrimRight(rt.apiURL, "/")
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	log := logger.NewWithOptions(logger.Options{
		Service: config.ServiceName,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Writer:  rt.errOut,
	})

	ctx := cmd.Context()
	a, err := app.New(ctx, cfg, log, booking.RedirectFunc(rt.redirect))
	if err != nil {
		return fmt.Errorf("initialize client: %w", err)
	}
	rt.app = a

	if cmd.Annotations[annotationNoSession] != "true" {
		a.Manager().Restore(ctx)
	}
	return nil
}

func (rt *runtime) close() error {
	if rt.app == nil {
		return nil
	}
	err := rt.app.Close()
	rt.app = nil
	return err
}

// redirect hands the hosted checkout to the user.
func (rt *runtime) redirect(_ context.Context, checkoutURL string, _ *domain.CheckoutSession) error {
	_, err := fmt.Fprintf(rt.errOut, "Complete payment in your browser:\n  %s\n", checkoutURL)
	return err
}

func (rt *runtime) requireUser() (*domain.User, error) {
	u := rt.app.Manager().User()
	if u == nil {
		return nil, errNotLoggedIn
	}
	return u, nil
}

func noSession() map[string]string {
	return map[string]string{annotationNoSession: "true"}
}
