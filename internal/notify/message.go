package notify

import (
	"fmt"
	"strings"
	"time"
)

// FormatOutageMessage creates an outage notification body.
func FormatOutageMessage(location string, lastErr error) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Location: %s\n", location))
	sb.WriteString("Push channel and pull polling are both failing.\n")
	sb.WriteString("The dashboard is serving stale data until one recovers.")

	if lastErr != nil {
		sb.WriteString(fmt.Sprintf("\n\nLast error: %v", lastErr))
	}

	return sb.String()
}

// FormatRecoveryMessage creates a recovery notification body.
func FormatRecoveryMessage(location, method string, downFor time.Duration) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Location: %s\n", location))
	sb.WriteString(fmt.Sprintf("Delivery resumed via %s\n", method))
	sb.WriteString(fmt.Sprintf("Outage lasted: %s", downFor.Round(time.Second)))

	return sb.String()
}
