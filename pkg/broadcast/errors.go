package broadcast

import "errors"

var (
	ErrEmptyTopic        = errors.New("broadcast: topic is empty")
	ErrBroadcasterClosed = errors.New("broadcast: broadcaster is closed")
	ErrSubscribeFailed   = errors.New("broadcast: subscribe failed")
	ErrPublishFailed     = errors.New("broadcast: publish failed")
)
