package service

import (
	"errors"

	"quill/internal/forms"
	"quill/internal/models"

	"gorm.io/gorm"
)

func isNotFound(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true
	}
	var appErr *models.AppError
	return errors.As(err, &appErr) && appErr.Code == models.CodeNotFound
}

func isFormError(err error) bool {
	_, ok := forms.AsErrors(err)
	return ok
}
