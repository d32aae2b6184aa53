package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"confdesk/pkg/logger"
	"confdesk/pkg/model"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type SessionValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewSessionValidator(log *logger.Logger) *SessionValidator {
	v := validator.New()

	if err := v.RegisterValidation("session_type", validateSessionType); err != nil {
		log.Fatal("Failed to register 'session_type' validator", "error", err)
	}

	return &SessionValidator{
		validate: v,
		logger:   log,
	}
}

var validSessionTypes = map[string]struct{}{
	model.SessionTypeKeynote:    {},
	model.SessionTypeWorkshop:   {},
	model.SessionTypePanel:      {},
	model.SessionTypePoster:     {},
	model.SessionTypeBreak:      {},
	model.SessionTypeNetworking: {},
	model.SessionTypeOther:      {},
}

func validateSessionType(fl validator.FieldLevel) bool {
	_, ok := validSessionTypes[strings.ToLower(strings.TrimSpace(fl.Field().String()))]
	return ok
}

func (v *SessionValidator) Validate(s *model.Session) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *SessionValidator) ValidateUpdate(u *model.SessionUpdate) error {
	if err := v.validate.Struct(u); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *SessionValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s characters", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "gtfield":
			message = fmt.Sprintf("%s must be after %s", err.Field(), err.Param())
		case "session_type":
			message = "type must be one of: keynote, workshop, panel, poster, break, networking, other"
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid object id", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
