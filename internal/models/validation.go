package models

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/go-playground/validator/v10"
)

var (
	ErrEmptyNote       = errors.New("a note needs text or at least one attachment")
	ErrBlankText       = errors.New("text must be a non-empty string if provided")
	ErrTextTooLong     = fmt.Errorf("text exceeds %d characters", MaxTextLength)
	ErrTooManyFiles    = fmt.Errorf("a note can carry at most %d attachments", MaxAttachments)
	ErrNothingToUpdate = errors.New("no fields provided for update")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// CreateNoteInput is the validated shape of a create request.
type CreateNoteInput struct {
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments" validate:"dive"`
}

// UpdateNoteInput carries optional fields; nil means "not supplied".
type UpdateNoteInput struct {
	Text        *string `json:"text"`
	IsFavourite *bool   `json:"isFavourite"`
}

// TextLength counts UTF-16 code units, matching what browser clients enforce.
func TextLength(s string) int {
	return len(utf16.Encode([]rune(s)))
}

// Truncate keeps at most limit UTF-16 code units of s without splitting a rune.
func Truncate(s string, limit int) string {
	units := 0
	for i, r := range s {
		n := 1
		if r >= 0x10000 {
			n = 2 // surrogate pair
		}
		if units+n > limit {
			return s[:i]
		}
		units += n
	}
	return s
}

func (in CreateNoteInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return describe(err)
	}
	trimmed := strings.TrimSpace(in.Text)
	if trimmed == "" && len(in.Attachments) == 0 {
		return ErrEmptyNote
	}
	if TextLength(trimmed) > MaxTextLength {
		return ErrTextTooLong
	}
	if len(in.Attachments) > MaxAttachments {
		return ErrTooManyFiles
	}
	return nil
}

func (in UpdateNoteInput) Validate() error {
	if in.Text == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*in.Text)
	if trimmed == "" {
		return ErrBlankText
	}
	if TextLength(trimmed) > MaxTextLength {
		return ErrTextTooLong
	}
	return nil
}

func (in UpdateNoteInput) Empty() bool {
	return in.Text == nil && in.IsFavourite == nil
}

func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	return fmt.Errorf("%s is %s", strings.TrimPrefix(fe.Namespace(), "CreateNoteInput."), fe.Tag())
}
