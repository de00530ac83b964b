package entities

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
)

// ChannelName identifies a notification channel.
type ChannelName string

const (
	ChannelEmail   ChannelName = "email"
	ChannelSlack   ChannelName = "slack"
	ChannelDiscord ChannelName = "discord"
)

// ChannelNames lists supported channels in display order.
var ChannelNames = []ChannelName{ChannelEmail, ChannelSlack, ChannelDiscord}

// ChannelConfig is the per-channel delivery target. Implementations are
// sealed to this package so a channel cannot exist without its target field.
type ChannelConfig interface {
	Channel() ChannelName
	// Target is the address or webhook URL messages are sent to.
	Target() string
	sealed()
}

// EmailChannel delivers to a single mailbox.
type EmailChannel struct {
	Address string `json:"address"`
}

func (EmailChannel) Channel() ChannelName { return ChannelEmail }
func (c EmailChannel) Target() string     { return c.Address }
func (EmailChannel) sealed()              {}

// SlackChannel posts to an incoming webhook.
type SlackChannel struct {
	WebhookURL string `json:"webhook_url"`
}

func (SlackChannel) Channel() ChannelName { return ChannelSlack }
func (c SlackChannel) Target() string     { return c.WebhookURL }
func (SlackChannel) sealed()              {}

// DiscordChannel posts to a Discord webhook.
type DiscordChannel struct {
	WebhookURL string `json:"webhook_url"`
}

func (DiscordChannel) Channel() ChannelName { return ChannelDiscord }
func (c DiscordChannel) Target() string     { return c.WebhookURL }
func (DiscordChannel) sealed()              {}

// NotificationChannels is the set of enabled channels of an alert. A key's
// presence enables the channel.
type NotificationChannels map[ChannelName]ChannelConfig

// Names returns the enabled channel names sorted for stable output.
func (n NotificationChannels) Names() []ChannelName {
	names := make([]ChannelName, 0, len(n))
	for name := range n {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// MarshalJSON encodes the channels keyed by name.
func (n NotificationChannels) MarshalJSON() ([]byte, error) {
	raw := make(map[ChannelName]ChannelConfig, len(n))
	for name, cfg := range n {
		raw[name] = cfg
	}
	return json.Marshal(raw)
}

// UnmarshalJSON decodes each entry into the config type of its key. Unknown
// channel names are rejected.
func (n *NotificationChannels) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(NotificationChannels, len(raw))
	for key, body := range raw {
		cfg, err := decodeChannel(ChannelName(key), body)
		if err != nil {
			return err
		}
		out[ChannelName(key)] = cfg
	}
	*n = out
	return nil
}

func decodeChannel(name ChannelName, body json.RawMessage) (ChannelConfig, error) {
	switch name {
	case ChannelEmail:
		var c EmailChannel
		if err := json.Unmarshal(body, &c); err != nil {
			return nil, fmt.Errorf("decode %s channel: %w", name, err)
		}
		return c, nil
	case ChannelSlack:
		var c SlackChannel
		if err := json.Unmarshal(body, &c); err != nil {
			return nil, fmt.Errorf("decode %s channel: %w", name, err)
		}
		return c, nil
	case ChannelDiscord:
		var c DiscordChannel
		if err := json.Unmarshal(body, &c); err != nil {
			return nil, fmt.Errorf("decode %s channel: %w", name, err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown notification channel %q", name)
	}
}

// Value implements driver.Valuer.
func (n NotificationChannels) Value() (driver.Value, error) {
	b, err := n.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (n *NotificationChannels) Scan(src any) error {
	data, err := columnBytes(src)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*n = NotificationChannels{}
		return nil
	}
	return n.UnmarshalJSON(data)
}
