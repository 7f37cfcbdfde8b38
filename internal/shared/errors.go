package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authentication errors
	ErrNotAuthenticated = fmt.Errorf("Authentication required. Please login first.")
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrTokenStore       = fmt.Errorf("token store failure")
	ErrCaptureFailed    = fmt.Errorf("oauth capture failed")
	ErrFlowAbandoned    = fmt.Errorf("connection flow abandoned")
	ErrTimeout          = fmt.Errorf("operation timed out")
	ErrNotConnected     = fmt.Errorf("LinkedIn account not connected")

	// API errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrMediaNotFound      = fmt.Errorf("media not found")

	// Pipeline errors
	ErrUploadFailed = fmt.Errorf("upload failed")
	ErrPostFailed   = fmt.Errorf("post creation failed")
	ErrBusy         = fmt.Errorf("operation already in progress")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
