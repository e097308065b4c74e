package services

import (
	"fmt"
	"strings"

	"ballup-api/apperr"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// checkStruct runs the declarative tag rules on a request body and folds
// the first batch of violations into one ValidationFailed error.
func checkStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperr.Wrap(err, apperr.ValidationFailed, "invalid request body")
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return apperr.New(apperr.ValidationFailed, "validation failed: "+strings.Join(parts, "; "))
}
