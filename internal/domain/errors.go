package domain

import (
	"fmt"
)

type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError with the same code, so copies made by
// WithError still match their sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		StatusCode: e.StatusCode,
		Err:        err,
	}
}

// Pre-defined errors
var (
	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		StatusCode: 500,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: 400,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: 404,
	}

	ErrMissingImage = &AppError{
		Code:       "MISSING_IMAGE",
		Message:    "Image file is required",
		StatusCode: 400,
	}

	ErrInvalidImage = &AppError{
		Code:       "INVALID_IMAGE",
		Message:    "Invalid image format or corrupted file",
		StatusCode: 422,
	}

	ErrUnsupportedImageType = &AppError{
		Code:       "UNSUPPORTED_IMAGE_TYPE",
		Message:    "Image type not supported, use JPEG, PNG or WebP",
		StatusCode: 415,
	}

	ErrImageTooLarge = &AppError{
		Code:       "IMAGE_TOO_LARGE",
		Message:    "Image exceeds the maximum upload size",
		StatusCode: 413,
	}

	ErrMultipleFaces = &AppError{
		Code:       "MULTIPLE_FACES",
		Message:    "Multiple faces detected, please provide image with single face",
		StatusCode: 422,
	}

	ErrProfileNotFound = &AppError{
		Code:       "PROFILE_NOT_FOUND",
		Message:    "No geometric profile has been learned yet",
		StatusCode: 404,
	}

	ErrInvalidProfile = &AppError{
		Code:       "INVALID_PROFILE",
		Message:    "Geometric profile is malformed",
		StatusCode: 422,
	}

	ErrEmptyCorpus = &AppError{
		Code:       "EMPTY_CORPUS",
		Message:    "No usable single-face samples found in corpus",
		StatusCode: 422,
	}

	ErrRateLimitExceeded = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Rate limit exceeded, please try again later",
		StatusCode: 429,
	}

	ErrServerBusy = &AppError{
		Code:       "SERVER_BUSY",
		Message:    "Too many photos in progress, please retry shortly",
		StatusCode: 503,
	}

	ErrValidationFailed = &AppError{
		Code:       "VALIDATION_FAILED",
		Message:    "Request validation failed",
		StatusCode: 422,
	}
)
