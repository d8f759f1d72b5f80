package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/HarshKochar9008/WINCE/internal/catalog"
	"github.com/HarshKochar9008/WINCE/internal/domain"
	apperrors "github.com/HarshKochar9008/WINCE/pkg/errors"
)

func parseID(arg, what string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.InvalidInput(fmt.Sprintf("invalid %s id %q", what, arg))
	}
	return id, nil
}

func parseStart(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, apperrors.InvalidInput("Start time: use RFC 3339, e.g. 2026-05-01T18:00:00Z.")
	}
	return t, nil
}

func newListCommand(rt *runtime) *cobra.Command {
	var (
		creator int64
		mine    bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		Short:   "List sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if mine {
				u, err := rt.requireUser()
				if err != nil {
					return err
				}
				creator = u.ID
			}
			sessions, err := rt.app.Catalog().ListSessions(cmd.Context())
			if err != nil {
				return err
			}
			if creator > 0 {
				sessions = catalog.SessionsByCreator(sessions, creator)
			}
			return rt.emit(sessions, func(w io.Writer) error { return writeSessions(w, sessions) })
		},
	}

	cmd.Flags().Int64Var(&creator, "creator", 0, "only sessions by this creator id")
	cmd.Flags().BoolVar(&mine, "mine", false, "only sessions you created")

	return cmd
}

func newShowCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Args:  cobra.ExactArgs(1),
		Short: "Show one session",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "session")
			if err != nil {
				return err
			}
			s, err := rt.app.Catalog().GetSession(cmd.Context(), id)
			if err != nil {
				return err
			}
			return rt.emit(s, func(w io.Writer) error { return writeSession(w, s) })
		},
	}
}

func newCreateCommand(rt *runtime) *cobra.Command {
	var (
		in        catalog.SessionInput
		start     string
		imageFile string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Args:  cobra.NoArgs,
		Short: "Publish a new session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := rt.requireUser()
			if err != nil {
				return err
			}
			if !u.IsCreator() {
				return fmt.Errorf("only creators can publish sessions")
			}
			if start != "" {
				if in.StartTime, err = parseStart(start); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			s, err := rt.app.Catalog().CreateSession(ctx, in)
			if err != nil {
				return err
			}
			if imageFile != "" {
				withImage, err := rt.uploadImage(cmd, s.ID, imageFile)
				if err != nil {
					return fmt.Errorf("session %d created, image upload failed: %w", s.ID, err)
				}
				s = withImage
			}
			return rt.emit(s, func(w io.Writer) error { return writeSession(w, s) })
		},
	}

	f := cmd.Flags()
	f.StringVar(&in.Title, "title", "", "session title")
	f.StringVar(&in.Description, "description", "", "session description")
	f.StringVar(&in.Price, "price", "", "price as a decimal, 0 for free")
	f.StringVar(&start, "start", "", "start time (RFC 3339)")
	f.StringVar(&in.Duration, "duration", "", "duration, e.g. 01:30:00")
	f.StringVar(&in.Image, "image-url", "", "image URL")
	f.StringVar(&imageFile, "image", "", "image file to upload after creating")

	return cmd
}

func newUpdateCommand(rt *runtime) *cobra.Command {
	var (
		title, description, price, start, duration, image string
	)

	cmd := &cobra.Command{
		Use:   "update <session-id>",
		Args:  cobra.ExactArgs(1),
		Short: "Change fields of a session you own",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "session")
			if err != nil {
				return err
			}
			if _, err := rt.requireUser(); err != nil {
				return err
			}

			var upd catalog.SessionUpdate
			f := cmd.Flags()
			if f.Changed("title") {
				upd.Title = &title
			}
			if f.Changed("description") {
				upd.Description = &description
			}
			if f.Changed("price") {
				upd.Price = &price
			}
			if f.Changed("duration") {
				upd.Duration = &duration
			}
			if f.Changed("image-url") {
				upd.Image = &image
			}
			if f.Changed("start") {
				t, err := parseStart(start)
				if err != nil {
					return err
				}
				upd.StartTime = &t
			}

			s, err := rt.app.Catalog().UpdateSession(cmd.Context(), id, upd)
			if err != nil {
				return err
			}
			return rt.emit(s, func(w io.Writer) error { return writeSession(w, s) })
		},
	}

	f := cmd.Flags()
	f.StringVar(&title, "title", "", "session title")
	f.StringVar(&description, "description", "", "session description")
	f.StringVar(&price, "price", "", "price as a decimal")
	f.StringVar(&start, "start", "", "start time (RFC 3339)")
	f.StringVar(&duration, "duration", "", "duration, e.g. 01:30:00")
	f.StringVar(&image, "image-url", "", "image URL")

	return cmd
}

func newDeleteCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <session-id>",
		Aliases: []string{"rm"},
		Args:    cobra.ExactArgs(1),
		Short:   "Delete a session you own",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "session")
			if err != nil {
				return err
			}
			if _, err := rt.requireUser(); err != nil {
				return err
			}
			if err := rt.app.Catalog().DeleteSession(cmd.Context(), id); err != nil {
				return err
			}
			return rt.println(fmt.Sprintf("Session %d deleted.", id))
		},
	}
}

func newUploadImageCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "upload-image <session-id> <file>",
		Args:  cobra.ExactArgs(2),
		Short: "Upload a cover image for a session you own",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "session")
			if err != nil {
				return err
			}
			if _, err := rt.requireUser(); err != nil {
				return err
			}
			s, err := rt.uploadImage(cmd, id, args[1])
			if err != nil {
				return err
			}
			return rt.emit(s, func(w io.Writer) error { return writeSession(w, s) })
		},
	}
}

func (rt *runtime) uploadImage(cmd *cobra.Command, id int64, path string) (*domain.Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.InvalidInput(fmt.Sprintf("open image: %v", err))
	}
	defer func() { _ = f.Close() }()
	return rt.app.Catalog().UploadSessionImage(cmd.Context(), id, filepath.Base(path), f)
}
