package gemini

import "errors"

// Errors returned by the captioner.
var (
	// ErrInvalidConfig indicates the captioner configuration is incomplete,
	// such as a missing API key or model name.
	ErrInvalidConfig = errors.New("invalid captioner configuration")

	// ErrContentBlocked indicates the model refused to caption the media
	// because of its safety filters. Not retriable.
	ErrContentBlocked = errors.New("content blocked by safety filters")

	// ErrEmptyCaption indicates the model returned an empty response.
	ErrEmptyCaption = errors.New("model returned an empty caption")
)
