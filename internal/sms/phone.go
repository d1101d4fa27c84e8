package sms

import "strings"

// Template keys the portal itself queues triggers for.
const (
	TemplateQueueJoin     = "queue_join"
	TemplateQueueReminder = "queue_reminder"
)

// FormatPhone normalises a local number into the international form the
// gateway expects: non-digits are stripped and a leading 0 becomes 233.
func FormatPhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if strings.HasPrefix(digits, "0") {
		return "233" + digits[1:]
	}
	return digits
}
