package submit

import (
	"context"
	"errors"

	studioimage "garment-studio/internal/image"
	"garment-studio/internal/tenant"
)

// UserMessage turns any submission error into the single line shown to the
// user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var remote *tenant.RemoteError
	var taskErr *TaskError
	switch {
	case errors.Is(err, ErrNoImages):
		return "Add at least one image before submitting."
	case errors.Is(err, ErrEmptyPrompt):
		return "Describe the changes you want in at least one image's notes."
	case errors.Is(err, tenant.ErrAuthRequired):
		return "Please log in first."
	case errors.Is(err, tenant.ErrTokenExpired), errors.Is(err, tenant.ErrUnauthorized):
		return "Your login has expired. Please log in again."
	case errors.Is(err, ErrTimeout):
		return "Processing timed out. Please try again later."
	case errors.As(err, &taskErr):
		if taskErr.Message != "" {
			return "Processing failed: " + taskErr.Message
		}
		return "Processing failed."
	case errors.As(err, &remote):
		return remote.Message
	case errors.Is(err, studioimage.ErrDecode):
		return "An image could not be read: " + err.Error()
	case errors.Is(err, context.Canceled):
		return "Submission cancelled."
	case errors.Is(err, tenant.ErrRequestFailed):
		return "Could not reach the service: " + err.Error()
	default:
		return err.Error()
	}
}
