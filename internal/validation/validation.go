// Package validation checks form input before it reaches the store.
package validation

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

const (
	notBlankTag = "notblank"
	httpURLTag  = "httpurl"

	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// NoteInput is the admin note form.
type NoteInput struct {
	SubjectName string `json:"subject_name" validate:"notblank,max=200"`
	DriveLink   string `json:"drive_link" validate:"required,httpurl,max=2048"`
	SemesterID  string `json:"semester_id" validate:"omitempty,uuid"`
	Description string `json:"description" validate:"max=2000"`
}

type SemesterInput struct {
	Name        string `json:"name" validate:"notblank,max=100"`
	Description string `json:"description" validate:"max=2000"`
}

// ScheduleInput is one timetable row as submitted by the admin form.
type ScheduleInput struct {
	Subject    string `json:"subject" validate:"notblank,max=200"`
	ExamDate   string `json:"exam_date" validate:"required,datetime=2006-01-02"`
	ExamTime   string `json:"exam_time" validate:"required,datetime=15:04"`
	SemesterID string `json:"semester_id" validate:"omitempty,uuid"`
}

type AnnouncementInput struct {
	Title   string `json:"title" validate:"notblank,max=200"`
	Message string `json:"message" validate:"notblank,max=5000"`
}

// Errors maps field names to translated messages.
type Errors map[string]string

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, e[f])
	}
	return strings.Join(parts, "; ")
}

// Validator wraps a configured validator.Validate with English messages.
type Validator struct {
	validate      *validator.Validate
	translator    ut.Translator
	chatMaxLength int
}

func New(chatMaxLength int) *Validator {
	v := validator.New()

	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, trans)

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation(notBlankTag, notBlank)
	_ = v.RegisterValidation(httpURLTag, httpURL)

	noop := func(ut.Translator) error { return nil }
	for _, tag := range []string{notBlankTag, httpURLTag} {
		_ = v.RegisterTranslation(tag, trans, noop, translateCustom)
	}

	return &Validator{validate: v, translator: trans, chatMaxLength: chatMaxLength}
}

// Struct validates one of the input types and returns Errors on failure.
func (v *Validator) Struct(input any) error {
	return v.translate(v.validate.Struct(input), "")
}

// ChatContent trims content and checks it is non-empty and within the
// configured length, counted in characters.
func (v *Validator) ChatContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	err := v.validate.Var(trimmed, fmt.Sprintf("%s,max=%d", notBlankTag, v.chatMaxLength))
	if err := v.translate(err, "content"); err != nil {
		return "", err
	}
	return trimmed, nil
}

func (v *Validator) translate(err error, field string) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := Errors{}
	for _, fe := range verrs {
		name := fe.Field()
		if name == "" {
			name = field
		}
		msg := fe.Translate(v.translator)
		if fe.Field() == "" {
			msg = name + " " + strings.TrimSpace(msg)
		}
		out[name] = msg
	}
	return out
}

func translateCustom(_ ut.Translator, fe validator.FieldError) string {
	switch fe.Tag() {
	case notBlankTag:
		return fmt.Sprintf("%s cannot be blank", fe.Field())
	case httpURLTag:
		return fmt.Sprintf("%s must be an http or https link", fe.Field())
	default:
		return ""
	}
}

func notBlank(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}

func httpURL(fl validator.FieldLevel) bool {
	str, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	u, err := url.Parse(strings.TrimSpace(str))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
