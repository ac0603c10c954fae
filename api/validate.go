package api

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"task-api/domain"
)

// ValidationError is returned for create requests the API refuses to persist.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

var taskValidate *validator.Validate

func init() {
	taskValidate = validator.New(validator.WithRequiredStructEnabled())
	_ = taskValidate.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		return domain.Priority(fl.Field().String()).IsValid()
	})
}

// validateCreateTask checks req and maps the first class of failure to the
// message clients see. Missing fields win over an unknown priority.
func validateCreateTask(req *createTaskRequest) error {
	err := taskValidate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			return &ValidationError{Message: msgRequired}
		}
	}
	return &ValidationError{Message: msgInvalidPriority}
}
