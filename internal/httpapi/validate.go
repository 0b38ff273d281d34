package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"rfid-attendance/tracker/internal/model"
)

const maxUIDLen = 64

var registerOnce sync.Once

// registerValidators adds the tracker's rules to gin's shared validator.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		_ = v.RegisterValidation("trimmax", trimMax)
		_ = v.RegisterValidation("uid", validUID)
	})
}

// trimMax bounds the rune length of a string after surrounding whitespace
// is dropped, which is the value the service stores.
func trimMax(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return utf8.RuneCountInString(strings.TrimSpace(fl.Field().String())) <= limit
}

// validUID accepts what a reader can print for a card: printable
// characters without inner spaces, non-empty once trimmed.
func validUID(fl validator.FieldLevel) bool {
	uid := model.NormalizeUID(fl.Field().String())
	if uid == "" || len(uid) > maxUIDLen {
		return false
	}
	for _, r := range uid {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

func validationMessage(err error) (code string, msg string) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		parts := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			parts = append(parts, fieldMessage(fe))
		}
		return "validation", strings.Join(parts, "; ")
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &typeErr):
		return "validation", fmt.Sprintf("%s must be a %s", typeErr.Field, typeErr.Type.String())
	case errors.As(err, &syntaxErr):
		return "bad_json", "invalid json"
	}
	return "bad_json", "invalid json"
}

func fieldMessage(fe validator.FieldError) string {
	field := jsonFieldName(fe)
	switch fe.Tag() {
	case "required", "notblank":
		return field + " is required"
	case "max", "trimmax":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be a positive integer", field)
	case "uid":
		return field + " is not a valid card uid"
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}

func jsonFieldName(fe validator.FieldError) string {
	switch fe.Field() {
	case "UserCode":
		return "user_code"
	case "ScannerName":
		return "scanner_name"
	case "UID":
		return "uid"
	case "Name":
		return "name"
	}
	return strings.ToLower(fe.Field())
}
