package service

import "errors"

var (
	ErrGenerationFailure   = errors.New("brief generation failed")
	ErrUnparseableOutput   = errors.New("model output is not a JSON object")
	ErrVerificationFailure = errors.New("brief verification failed")
	ErrInvalidInput        = errors.New("invalid input")
)
