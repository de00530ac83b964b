package alerting

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/tphakala/hostpulse/internal/datastore/entities"
	"github.com/tphakala/hostpulse/internal/notification"
)

var resourceLabels = map[entities.ResourceType]string{
	entities.ResourceCPU:    "CPU usage",
	entities.ResourceMemory: "Memory usage",
	entities.ResourceDisk:   "Disk usage",
	entities.ResourceLoad:   "Load average (1m)",
}

func resourceLabel(r entities.ResourceType) string {
	if label, ok := resourceLabels[r]; ok {
		return label
	}
	return string(r)
}

func formatValue(r entities.ResourceType, v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if r.IsPercentage() {
		return s + "%"
	}
	return s
}

// buildMessage renders the notification for alert at value.
func buildMessage(alert *entities.Alert, value float64, at time.Time, test bool) notification.Message {
	label := resourceLabel(alert.ResourceType)
	subject := fmt.Sprintf("Alert: %s %s %s on %s",
		label, alert.ThresholdType, formatValue(alert.ResourceType, alert.ThresholdValue), alert.HostID)
	if test {
		subject = "[Test] " + subject
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Host: %s\n", alert.HostID)
	fmt.Fprintf(&b, "%s is %s (threshold: %s %s)\n",
		label, formatValue(alert.ResourceType, value), alert.ThresholdType, formatValue(alert.ResourceType, alert.ThresholdValue))
	fmt.Fprintf(&b, "Time: %s", at.UTC().Format(time.RFC3339))
	if test {
		b.WriteString("\nThis is a test notification; no alert was recorded.")
	}
	return notification.Message{Subject: subject, Body: b.String()}
}

// summarizeTest renders per-channel test outcomes in channel order.
func summarizeTest(results entities.ChannelResults) string {
	parts := make([]string, 0, len(results))
	for _, name := range slices.Sorted(maps.Keys(results)) {
		res := results[name]
		if res.Delivered {
			parts = append(parts, fmt.Sprintf("%s: %s", name, TestSentText))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s (%s)", name, TestFailedText, res.Detail))
	}
	return strings.Join(parts, "; ")
}
