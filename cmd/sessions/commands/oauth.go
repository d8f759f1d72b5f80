package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/HarshKochar9008/WINCE/internal/auth"
)

func newOAuthCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oauth",
		Args:  cobra.NoArgs,
		Short: "Log in through an identity provider",
	}

	cmd.AddCommand(
		newOAuthProvidersCommand(rt),
		newOAuthGoogleCommand(rt),
		newOAuthGitHubCommand(rt),
	)

	return cmd
}

func newOAuthProvidersCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:         "providers",
		Args:        cobra.NoArgs,
		Short:       "List configured identity providers",
		Annotations: noSession(),
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg := rt.app.Config()
			providers := auth.Providers(cfg.GoogleClientID, cfg.GitHubClientID)
			return rt.emit(providers, func(w io.Writer) error {
				for _, p := range providers {
					status := "enabled"
					if !p.Enabled {
						status = p.Message
					}
					if _, err := fmt.Fprintf(w, "%-8s %s\n", p.Provider, status); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

// providerStatus returns the disabled message for p, or "" when p is usable.
func (rt *runtime) providerStatus(p auth.Provider) string {
	cfg := rt.app.Config()
	for _, s := range auth.Providers(cfg.GoogleClientID, cfg.GitHubClientID) {
		if s.Provider == p && !s.Enabled {
			return s.Message
		}
	}
	return ""
}

func newOAuthGoogleCommand(rt *runtime) *cobra.Command {
	var credential string

	cmd := &cobra.Command{
		Use:         "google",
		Args:        cobra.NoArgs,
		Short:       "Exchange a Google ID token credential for a session",
		Annotations: noSession(),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if msg := rt.providerStatus(auth.ProviderGoogle); msg != "" {
				return errors.New(msg)
			}
			cred, err := rt.readSecret("Google credential: ", credential)
			if err != nil {
				return err
			}
			return rt.exchange(cmd.Context(), auth.ProviderGoogle, cred)
		},
	}

	cmd.Flags().StringVar(&credential, "credential", "", "Google ID token from the sign-in button")

	return cmd
}

func newOAuthGitHubCommand(rt *runtime) *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "github",
		Args:  cobra.NoArgs,
		Short: "Log in with GitHub",
		Long: `Log in with GitHub. Without --code the command prints the authorize URL
and waits for GitHub to redirect back to the local callback listener.`,
		Annotations: noSession(),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if code != "" {
				return rt.exchange(ctx, auth.ProviderGitHub, code)
			}

			cfg := rt.app.Config()
			authURL := auth.GitHubAuthURL(cfg.GitHubClientID, cfg.GitHubCallbackURL())
			if authURL == "" {
				return errors.New(rt.providerStatus(auth.ProviderGitHub))
			}

			cb := rt.app.Callback()
			if err := cb.Start(); err != nil {
				return err
			}
			fmt.Fprintf(rt.errOut, "Authorize in your browser:\n  %s\n", authURL)

			waitCtx, cancel := context.WithTimeout(ctx, cfg.CallbackWait())
			defer cancel()
			got, err := cb.WaitOAuthCode(waitCtx)
			if err != nil {
				return fmt.Errorf("waiting for GitHub redirect: %w", err)
			}
			return rt.exchange(ctx, auth.ProviderGitHub, got)
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "authorization code, when already obtained")

	return cmd
}

func (rt *runtime) exchange(ctx context.Context, p auth.Provider, credential string) error {
	user, err := rt.app.Manager().OAuthExchange(ctx, p, credential)
	if err != nil {
		return err
	}
	return rt.emit(user, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Logged in as %s via %s.\n", user.Email, p)
		return err
	})
}
