package notification

import (
	"net/http"

	"github.com/tphakala/hostpulse/internal/conf"
	"github.com/tphakala/hostpulse/internal/datastore/entities"
)

// NewSenders builds the channel senders from configuration. Email is only
// registered when SMTP is configured.
func NewSenders(settings conf.NotificationSettings, client *http.Client) map[entities.ChannelName]Sender {
	senders := map[entities.ChannelName]Sender{
		entities.ChannelSlack:   NewSlackSender(client, settings.WebhookRate),
		entities.ChannelDiscord: NewDiscordSender(client, settings.WebhookRate),
	}
	if settings.SMTP.Enabled() {
		senders[entities.ChannelEmail] = NewEmailSender(settings.SMTP)
	}
	return senders
}
