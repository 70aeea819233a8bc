package notification

import (
	"time"

	"esupervision/internal/audit"
	"esupervision/internal/casedirectory"
	"esupervision/internal/notification/models"
)

// Provider template identifiers, one per (event, channel) pairing the
// service actually sends. Overridable later if the provider rotates them.
var templates = map[audit.EventType]map[models.ChannelKind]string{
	audit.EventSetupCompleted: {
		models.KindSMS:   "setup-complete-sms",
		models.KindEmail: "setup-complete-email",
	},
	audit.EventCheckinCreated: {
		models.KindSMS:   "checkin-created-sms",
		models.KindEmail: "checkin-created-email",
	},
	audit.EventCheckinSubmitted: {
		models.KindSMS:   "checkin-submitted-sms",
		models.KindEmail: "checkin-submitted-email",
	},
	audit.EventCheckinExpired: {
		models.KindEmail: "checkin-expired-email",
	},
	audit.EventCheckinReminded: {
		models.KindSMS:   "checkin-reminder-sms",
		models.KindEmail: "checkin-reminder-email",
	},
}

func templateFor(eventType audit.EventType, kind models.ChannelKind) string {
	if byKind, ok := templates[eventType]; ok {
		if tmpl, ok := byKind[kind]; ok {
			return tmpl
		}
	}
	return "generic-" + string(kind)
}

func buildPersonalisation(event Event, details casedirectory.ContactDetails) map[string]string {
	p := map[string]string{
		"name": details.Name,
	}
	if !event.DueDate.IsZero() {
		p["date"] = event.DueDate.Format(time.DateOnly)
	}
	return p
}
