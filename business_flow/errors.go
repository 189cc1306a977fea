// Package businessflow contains the core business logic and use cases for campaign workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Tenant-related errors
	ErrTenantRequired = errors.New("tenant is required")

	// Segment-related errors
	ErrSegmentNotFound      = errors.New("segment not found")
	ErrSegmentAccessDenied  = errors.New("segment access denied")
	ErrSegmentNameRequired  = errors.New("segment name is required")
	ErrSegmentGraphRequired = errors.New("segment graph definition is required")

	// Campaign-related errors
	ErrCampaignNotFound         = errors.New("campaign not found")
	ErrCampaignAccessDenied     = errors.New("campaign access denied")
	ErrCampaignNameRequired     = errors.New("campaign name is required")
	ErrCampaignNotRunnable      = errors.New("campaign is not in a runnable status")
	ErrCampaignTemplateRequired = errors.New("campaign template is required")
	ErrCampaignUUIDRequired     = errors.New("campaign UUID is required")

	// Broadcast-related errors
	ErrBroadcastNotFound     = errors.New("broadcast not found")
	ErrBroadcastAccessDenied = errors.New("broadcast access denied")

	// Automation-related errors
	ErrAutomationNotFound      = errors.New("automation not found")
	ErrAutomationAccessDenied  = errors.New("automation access denied")
	ErrAutomationNameRequired  = errors.New("automation name is required")
	ErrAutomationUUIDRequired  = errors.New("automation UUID is required")
	ErrAutomationStatusInvalid = errors.New("automation status is invalid")

	// Cache errors
	ErrCacheNotAvailable = errors.New("cache not available")

	// Filter errors
	ErrInvalidPage           = errors.New("page must be at least 1")
	ErrInvalidPageSize       = errors.New("page size must be between 1 and 100")
	ErrStartDateAfterEndDate = errors.New("start date cannot be after end date")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsSegmentNotFound(err error) bool {
	return errors.Is(err, ErrSegmentNotFound)
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsCampaignNotRunnable(err error) bool {
	return errors.Is(err, ErrCampaignNotRunnable)
}

func IsBroadcastNotFound(err error) bool {
	return errors.Is(err, ErrBroadcastNotFound)
}

func IsAutomationNotFound(err error) bool {
	return errors.Is(err, ErrAutomationNotFound)
}
