package catalog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/HarshKochar9008/WINCE/internal/auth"
	"github.com/HarshKochar9008/WINCE/internal/domain"
	apperrors "github.com/HarshKochar9008/WINCE/pkg/errors"
	"github.com/HarshKochar9008/WINCE/pkg/validator"
)

// maxImageBytes bounds an uploaded session image.
const maxImageBytes = 10 << 20

// SessionInput is the payload for creating a session.
type SessionInput struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description"`
	Price       string    `json:"price" validate:"required,numeric"`
	StartTime   time.Time `json:"start_time" validate:"required"`
	Duration    string    `json:"duration" validate:"required"`
	Image       string    `json:"image,omitempty" validate:"omitempty,url"`
}

// SessionUpdate is a partial update; nil fields are not sent.
type SessionUpdate struct {
	Title       *string    `json:"title,omitempty" validate:"omitempty,max=200"`
	Description *string    `json:"description,omitempty"`
	Price       *string    `json:"price,omitempty" validate:"omitempty,numeric"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	Duration    *string    `json:"duration,omitempty"`
	Image       *string    `json:"image,omitempty" validate:"omitempty,url"`
}

func formatInputErrors(fields []apperrors.FieldError) string {
	return auth.FormatFieldErrors(fields)
}

func checkDuration(v *string) error {
	if v == nil {
		return nil
	}
	if _, err := domain.ParseDuration(*v); err != nil {
		fields := []apperrors.FieldError{{Field: "duration", Messages: []string{"Enter a valid duration."}}}
		return apperrors.Validation(formatInputErrors(fields), fields, 0, nil)
	}
	return nil
}

// CreateSession validates in and creates a session owned by the caller.
func (c *Client) CreateSession(ctx context.Context, in SessionInput) (*domain.Session, error) {
	if err := validator.Validate(in); err != nil {
		return nil, validator.ToAppError(err, formatInputErrors)
	}
	if err := checkDuration(&in.Duration); err != nil {
		return nil, err
	}

	s, err := auth.Do[domain.Session](ctx, c.api, pathSessions, auth.RequestOptions{
		Method: http.MethodPost,
		Body:   in,
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	c.logger.InfoContext(ctx, "session created",
		slog.Int64("session_id", s.ID),
		slog.String("title", s.Title),
	)
	return &s, nil
}

// UpdateSession applies a partial update to a session owned by the caller.
func (c *Client) UpdateSession(ctx context.Context, id int64, in SessionUpdate) (*domain.Session, error) {
	if err := validator.Validate(in); err != nil {
		return nil, validator.ToAppError(err, formatInputErrors)
	}
	if err := checkDuration(in.Duration); err != nil {
		return nil, err
	}

	s, err := auth.Do[domain.Session](ctx, c.api, sessionPath(id), auth.RequestOptions{
		Method: http.MethodPatch,
		Body:   in,
	})
	if err != nil {
		return nil, fmt.Errorf("update session %d: %w", id, err)
	}
	return &s, nil
}

// UploadSessionImage sends an image as the multipart field "image". Content
// that is not an image is rejected before any network call.
func (c *Client) UploadSessionImage(ctx context.Context, id int64, filename string, r io.Reader) (*domain.Session, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return nil, apperrors.InvalidInput("image is empty")
	}
	if len(data) > maxImageBytes {
		return nil, apperrors.InvalidInput("image is larger than 10 MB")
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, apperrors.InvalidInput(fmt.Sprintf("%s is not an image (%s)", filepath.Base(filename), mt.String()))
	}

	body, contentType, err := multipartImage(filepath.Base(filename), mt.String(), data)
	if err != nil {
		return nil, err
	}

	s, err := auth.Do[domain.Session](ctx, c.api, sessionPath(id)+"upload_image/", auth.RequestOptions{
		Method:      http.MethodPost,
		Body:        body,
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("upload image for session %d: %w", id, err)
	}
	return &s, nil
}

func multipartImage(filename, contentType string, data []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("build upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("build upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("build upload: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
