package commands

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/HarshKochar9008/WINCE/internal/auth"
	"github.com/HarshKochar9008/WINCE/internal/domain"
)

// readSecret reads one line from in when the flag was left empty.
func (rt *runtime) readSecret(prompt, value string) (string, error) {
	if value != "" {
		return value, nil
	}
	fmt.Fprint(rt.errOut, prompt)
	line, err := bufio.NewReader(rt.in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.ToLower(prompt), ": "), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newLoginCommand(rt *runtime) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:         "login",
		Args:        cobra.NoArgs,
		Short:       "Log in with email and password",
		Long:        `Log in with email and password. The password is read from stdin when --password is omitted.`,
		Annotations: noSession(),
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := rt.readSecret("Password: ", password)
			if err != nil {
				return err
			}
			user, err := rt.app.Manager().Login(cmd.Context(), email, pw)
			if err != nil {
				return err
			}
			return rt.emit(user, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Logged in as %s.\n", user.Email)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newRegisterCommand(rt *runtime) *cobra.Command {
	var in auth.RegisterInput

	cmd := &cobra.Command{
		Use:         "register",
		Args:        cobra.NoArgs,
		Short:       "Create an account and log in",
		Annotations: noSession(),
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := rt.readSecret("Password: ", in.Password)
			if err != nil {
				return err
			}
			in.Password = pw
			user, err := rt.app.Manager().Register(cmd.Context(), in)
			if err != nil {
				return err
			}
			return rt.emit(user, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Welcome, %s! You are logged in.\n", user.Name)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "display name")
	cmd.Flags().StringVar(&in.Email, "email", "", "account email")
	cmd.Flags().StringVar(&in.Password, "password", "", "password, at least 8 characters")
	cmd.Flags().StringVar(&in.Avatar, "avatar", "", "avatar URL")

	return cmd
}

func newLogoutCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:         "logout",
		Args:        cobra.NoArgs,
		Short:       "Forget the stored session",
		Annotations: noSession(),
		RunE: func(_ *cobra.Command, _ []string) error {
			rt.app.Manager().Logout()
			return rt.println("Logged out.")
		},
	}
}

type whoami struct {
	User      *domain.User `json:"user"`
	ExpiresAt *time.Time   `json:"access_expires_at,omitempty"`
}

func newWhoamiCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Args:  cobra.NoArgs,
		Short: "Show the logged-in user",
		RunE: func(_ *cobra.Command, _ []string) error {
			user, err := rt.requireUser()
			if err != nil {
				return err
			}
			out := whoami{User: user}
			if claims, err := rt.app.Manager().TokenClaims(); err == nil && !claims.ExpiresAt.IsZero() {
				out.ExpiresAt = &claims.ExpiresAt
			}
			return rt.emit(out, func(w io.Writer) error {
				if err := writeUser(w, user); err != nil {
					return err
				}
				if out.ExpiresAt != nil {
					_, err := fmt.Fprintf(w, "access token expires: %s\n", formatTime(*out.ExpiresAt))
					return err
				}
				return nil
			})
		},
	}
}

func newProfileCommand(rt *runtime) *cobra.Command {
	var upd auth.ProfileUpdate

	cmd := &cobra.Command{
		Use:   "profile",
		Args:  cobra.NoArgs,
		Short: "Update your name or avatar",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := rt.requireUser(); err != nil {
				return err
			}
			if upd.Name == "" && upd.Avatar == "" {
				return fmt.Errorf("nothing to update; pass --name or --avatar")
			}
			user, err := rt.app.Manager().UpdateProfile(cmd.Context(), upd)
			if err != nil {
				return err
			}
			return rt.emit(user, func(w io.Writer) error { return writeUser(w, user) })
		},
	}

	cmd.Flags().StringVar(&upd.Name, "name", "", "new display name")
	cmd.Flags().StringVar(&upd.Avatar, "avatar", "", "new avatar URL")

	return cmd
}
