package notifications

import "errors"

var (
	ErrEventTypeNotFound    = errors.New("event type not found")
	ErrEventTypeInactive    = errors.New("event type is inactive")
	ErrInvalidEventType     = errors.New("invalid event type")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrDeliveryNotFound     = errors.New("delivery record not found")
	ErrTemplateNotFound     = errors.New("template not found")
	ErrPreferenceNotFound   = errors.New("preference not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrUnknownChannel       = errors.New("unknown channel")
	ErrMissingBackend       = errors.New("no backend registered for channel")
	ErrDuplicateBackend     = errors.New("backend registered twice for channel")
	ErrInvalidTransition    = errors.New("invalid delivery status transition")
	ErrNoRecipientAddress   = errors.New("recipient has no address for channel")
	ErrBackendPanic         = errors.New("backend panicked")
	ErrMissingDependency    = errors.New("missing required dependency")
)
