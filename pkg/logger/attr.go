package logger

import (
	"log/slog"
	"strconv"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups the non-nil errors under the key "errors".
// Returns an empty Attr when every error is nil.
func Errors(errs ...error) slog.Attr {
	group := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			group = append(group, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(group) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(group...)}
}

// Error records err under the key "error". A nil error yields an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the recipient or actor id under the key "user_id".
// A nil id yields an empty Attr.
func UserID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("user_id", id)
}

// NotificationID records the notification id under the key "notification_id".
func NotificationID(id string) slog.Attr {
	return slog.String("notification_id", id)
}

// Channel records the delivery channel under the key "channel".
func Channel(ch string) slog.Attr {
	return slog.String("channel", ch)
}

// EventType records the event type code under the key "event_type".
func EventType(code string) slog.Attr {
	return slog.String("event_type", code)
}

// TaskID records the queue task id under the key "task_id".
// A nil id yields an empty Attr.
func TaskID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("task_id", id)
}

// RetryCount records the retry count under the key "retry_count".
func RetryCount(count int) slog.Attr {
	return slog.Int("retry_count", count)
}

// Duration records a duration under the key "duration".
func Duration(d any) slog.Attr {
	return slog.Any("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
