package alerting

import (
	"fmt"
	"math"
	"net/mail"
	"net/url"
	"strings"

	"github.com/tphakala/hostpulse/internal/datastore/entities"
	"github.com/tphakala/hostpulse/internal/errors"
)

// AlertSpec is the user-editable part of an alert.
type AlertSpec struct {
	HostID               string                        `json:"host_id"`
	ResourceType         entities.ResourceType         `json:"resource_type"`
	ThresholdType        entities.ThresholdType        `json:"threshold_type"`
	ThresholdValue       float64                       `json:"threshold_value"`
	CooldownMinutes      int                           `json:"cooldown_minutes"`
	IsActive             *bool                         `json:"is_active,omitempty"`
	NotificationChannels entities.NotificationChannels `json:"notification_channels"`
}

// Validate checks every field and returns a *errors.ValidationError listing
// all rejected fields, or nil.
func (s *AlertSpec) Validate() error {
	verr := &errors.ValidationError{}

	if strings.TrimSpace(s.HostID) == "" {
		verr.Add("host_id", "is required")
	}
	if !s.ResourceType.Valid() {
		verr.Add("resource_type", fmt.Sprintf("must be one of %v", entities.ResourceTypes))
	}
	if !s.ThresholdType.Valid() {
		verr.Add("threshold_type", "must be above or below")
	}
	switch {
	case math.IsNaN(s.ThresholdValue) || math.IsInf(s.ThresholdValue, 0):
		verr.Add("threshold_value", "must be a finite number")
	case s.ResourceType.IsPercentage() &&
		(s.ThresholdValue < MinPercentThreshold || s.ThresholdValue > MaxPercentThreshold):
		verr.Add("threshold_value", fmt.Sprintf("must be between %g and %g for %s", MinPercentThreshold, MaxPercentThreshold, s.ResourceType))
	}
	if s.CooldownMinutes < MinCooldownMinutes || s.CooldownMinutes > MaxCooldownMinutes {
		verr.Add("cooldown_minutes", fmt.Sprintf("must be between %d and %d", MinCooldownMinutes, MaxCooldownMinutes))
	}
	validateChannels(s.NotificationChannels, verr)

	return verr.Err()
}

func validateChannels(channels entities.NotificationChannels, verr *errors.ValidationError) {
	if len(channels) == 0 {
		verr.Add("notification_channels", "at least one channel is required")
		return
	}
	for _, name := range channels.Names() {
		field := "notification_channels." + string(name)
		cfg := channels[name]
		if cfg == nil || cfg.Channel() != name {
			verr.Add(field, "configuration does not match channel")
			continue
		}
		switch c := cfg.(type) {
		case entities.EmailChannel:
			if !validEmail(c.Address) {
				verr.Add(field+".address", "must be a valid email address")
			}
		case entities.SlackChannel:
			if !validWebhookURL(c.WebhookURL) {
				verr.Add(field+".webhook_url", "must be an absolute http(s) URL")
			}
		case entities.DiscordChannel:
			if !validWebhookURL(c.WebhookURL) {
				verr.Add(field+".webhook_url", "must be an absolute http(s) URL")
			}
		}
	}
}

func validEmail(addr string) bool {
	if addr == "" {
		return false
	}
	parsed, err := mail.ParseAddress(addr)
	return err == nil && parsed.Address == addr
}

func validWebhookURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// apply copies the spec onto alert. Firing state is never touched.
func (s *AlertSpec) apply(alert *entities.Alert) {
	alert.HostID = strings.TrimSpace(s.HostID)
	alert.ResourceType = s.ResourceType
	alert.ThresholdType = s.ThresholdType
	alert.ThresholdValue = s.ThresholdValue
	alert.CooldownMinutes = s.CooldownMinutes
	alert.NotificationChannels = s.NotificationChannels
	if s.IsActive != nil {
		alert.IsActive = *s.IsActive
	}
}
