package notifications

import "fmt"

// Channel is a delivery medium. The set is closed: every channel listed in
// Channels must have a Backend registered.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Channels lists every channel in canonical order.
var Channels = [...]Channel{ChannelInApp, ChannelEmail, ChannelSMS}

const numChannels = len(Channels)

// index returns the channel's position in Channels, or -1.
func (c Channel) index() int {
	for i, ch := range Channels {
		if ch == c {
			return i
		}
	}
	return -1
}

// Valid reports whether c is one of Channels.
func (c Channel) Valid() bool {
	return c.index() >= 0
}

func (c Channel) String() string {
	return string(c)
}

// ParseChannel validates s as a channel name.
func ParseChannel(s string) (Channel, error) {
	c := Channel(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownChannel, s)
	}
	return c, nil
}
