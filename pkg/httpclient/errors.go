package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	apperrors "github.com/HarshKochar9008/WINCE/pkg/errors"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 1 << 20

// apiErrorBody is the subset of an API error body the client understands.
type apiErrorBody struct {
	Detail json.RawMessage `json:"detail"`
	Code   json.RawMessage `json:"code"`
}

// IsJSON reports whether resp declares a JSON content type.
func IsJSON(resp *http.Response) bool {
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// ReadJSONBody consumes and closes resp.Body. It returns the raw body when the
// response is JSON and nil otherwise.
func ReadJSONBody(resp *http.Response) (json.RawMessage, error) {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if !IsJSON(resp) || len(body) == 0 || !json.Valid(body) {
		return nil, nil
	}
	return body, nil
}

// DecodeJSON decodes a successful response into out. Empty or non-JSON
// bodies leave out untouched.
func DecodeJSON(resp *http.Response, out any) error {
	body, err := ReadJSONBody(resp)
	if err != nil {
		return err
	}
	if body == nil || out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ParseResponseError reads a non-2xx response and returns an *AppError whose
// message is the body's string "detail" when present, otherwise
// "Request failed (<status>)". The body is consumed and closed.
func ParseResponseError(resp *http.Response) error {
	body, err := ReadJSONBody(resp)
	if err != nil {
		return apperrors.Request(resp.StatusCode, "", FallbackMessage(resp.StatusCode), nil)
	}
	return apperrors.Request(resp.StatusCode, BodyCode(body), BodyMessage(resp.StatusCode, body), body)
}

// FallbackMessage is the message used when a body carries no usable detail.
func FallbackMessage(status int) string {
	return fmt.Sprintf("Request failed (%d)", status)
}

// BodyMessage extracts the "detail" string of body, falling back to FallbackMessage.
func BodyMessage(status int, body json.RawMessage) string {
	if len(body) > 0 {
		var parsed apiErrorBody
		if json.Unmarshal(body, &parsed) == nil && len(parsed.Detail) > 0 {
			var detail string
			if json.Unmarshal(parsed.Detail, &detail) == nil && detail != "" {
				return detail
			}
		}
	}
	return FallbackMessage(status)
}

// BodyCode extracts a string "code" field from body.
func BodyCode(body json.RawMessage) string {
	if len(body) == 0 {
		return ""
	}
	var parsed apiErrorBody
	if json.Unmarshal(body, &parsed) != nil || len(parsed.Code) == 0 {
		return ""
	}
	var code string
	if json.Unmarshal(parsed.Code, &code) != nil {
		return ""
	}
	return code
}

// IsClientError returns true if the HTTP status code is a 4xx client error.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
