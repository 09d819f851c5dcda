package messages

import (
	"encoding/json"
	"errors"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Inbound is a webhook payload before validation. Senders deliver the msisdn
// fields either as from/to or from_msisdn/to_msisdn; UnmarshalJSON normalizes
// both forms.
type Inbound struct {
	MessageID string  `json:"message_id" validate:"required"`
	From      string  `json:"from" validate:"required,msisdn"`
	To        string  `json:"to" validate:"required,msisdn"`
	TS        string  `json:"ts" validate:"required,utczulu"`
	Text      *string `json:"text" validate:"omitempty,max=4096"`
}

// UnmarshalJSON accepts both wire spellings of the msisdn fields. The short
// form wins when both are present.
func (in *Inbound) UnmarshalJSON(data []byte) error {
	var raw struct {
		MessageID  string  `json:"message_id"`
		From       string  `json:"from"`
		FromMSISDN string  `json:"from_msisdn"`
		To         string  `json:"to"`
		ToMSISDN   string  `json:"to_msisdn"`
		TS         string  `json:"ts"`
		Text       *string `json:"text"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.From == "" {
		raw.From = raw.FromMSISDN
	}
	if raw.To == "" {
		raw.To = raw.ToMSISDN
	}
	in.MessageID = raw.MessageID
	in.From = raw.From
	in.To = raw.To
	in.TS = raw.TS
	in.Text = raw.Text
	return nil
}

// Message converts a validated payload into the persistable entity.
func (in *Inbound) Message() Message {
	return Message{
		MessageID: in.MessageID,
		From:      in.From,
		To:        in.To,
		TS:        in.TS,
		Text:      in.Text,
	}
}

// ValidationError carries the human-readable reason a payload was rejected.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

var msisdnRe = regexp.MustCompile(`^\+\d+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("msisdn", func(fl validator.FieldLevel) bool {
		return msisdnRe.MatchString(fl.Field().String())
	})

	// Full ISO-8601 UTC timestamp with a literal trailing Z.
	_ = v.RegisterValidation("utczulu", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if !strings.HasSuffix(s, "Z") {
			return false
		}
		_, err := time.Parse(time.RFC3339, s)
		return err == nil
	})

	return v
}

// Parse decodes and validates a raw webhook body. It fails closed: any
// violation returns a *ValidationError and no partial result.
func Parse(body []byte) (*Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(body, &in); err != nil {
		return nil, &ValidationError{Reason: "malformed JSON: " + err.Error()}
	}
	if err := validate.Struct(&in); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return nil, &ValidationError{Reason: reasonFor(fieldErrs[0])}
		}
		return nil, &ValidationError{Reason: err.Error()}
	}
	return &in, nil
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "msisdn":
		return fe.Field() + " must be + followed by digits"
	case "utczulu":
		return fe.Field() + " must be a valid ISO-8601 UTC timestamp ending in Z"
	case "max":
		return fe.Field() + " exceeds maximum length of " + fe.Param()
	}
	return fe.Field() + " is invalid"
}
