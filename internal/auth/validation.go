package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	apperrors "github.com/HarshKochar9008/WINCE/pkg/errors"
)

// FormatFieldErrors renders field errors as "Field: first message" joined
// by ", ", in the order given.
func FormatFieldErrors(fields []apperrors.FieldError) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f.Messages) == 0 {
			continue
		}
		parts = append(parts, capitalize(f.Field)+": "+f.Messages[0])
	}
	return strings.Join(parts, ", ")
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// registrationError turns a failed register call into a validation error
// when the body carries {"errors": {field: [msg, ...]}}. Otherwise the body
// detail, then the original error, is used.
func registrationError(err error) error {
	appErr, ok := apperrors.As(err)
	if !ok || len(appErr.Body) == 0 {
		return err
	}

	var envelope struct {
		Errors json.RawMessage `json:"errors"`
	}
	fields := []apperrors.FieldError(nil)
	if json.Unmarshal(appErr.Body, &envelope) == nil && len(envelope.Errors) > 0 {
		fields, _ = orderedFieldErrors(envelope.Errors)
	}

	message := FormatFieldErrors(fields)
	if message == "" {
		message = appErr.Message
	}
	return apperrors.Validation(message, fields, appErr.Status, appErr.Body)
}

// orderedFieldErrors decodes a JSON object of field -> message(s), keeping
// the object's key order. A value may be a string or a list of strings.
func orderedFieldErrors(raw json.RawMessage) ([]apperrors.FieldError, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("field errors: expected object")
	}

	var out []apperrors.FieldError
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		field, _ := tok.(string)

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		out = append(out, apperrors.FieldError{Field: field, Messages: messagesOf(value)})
	}
	return out, nil
}

func messagesOf(value json.RawMessage) []string {
	var list []any
	if json.Unmarshal(value, &list) == nil {
		msgs := make([]string, 0, len(list))
		for _, item := range list {
			msgs = append(msgs, fmt.Sprint(item))
		}
		return msgs
	}
	var single any
	if json.Unmarshal(value, &single) == nil && single != nil {
		return []string{fmt.Sprint(single)}
	}
	return nil
}
