package telegram

import (
	"fmt"
	"strings"
	"time"

	"golang-algo-trader/pkg/utils"
)

// FormatAlgorithmStopped formats an auto-stop notification.
func FormatAlgorithmStopped(algorithmID uint, name, reason string, at time.Time) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("🛑 *Algorithm stopped* `#%d` %s\n", algorithmID, escapeMarkdown(name)))
	builder.WriteString(fmt.Sprintf("⚠️ %s\n", escapeMarkdown(reason)))
	builder.WriteString(fmt.Sprintf("%s\n", utils.PrettyDate(at)))
	builder.WriteString("_Reactivate manually to resume trading._\n")
	return builder.String()
}

// FormatBatchFailed formats a failed batch notification.
func FormatBatchFailed(batchID, broker string, orders int, reason string, at time.Time) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("📛 *Batch failed* `%s`\n", batchID))
	builder.WriteString(fmt.Sprintf("🏦 Broker: %s | Orders: %d\n", broker, orders))
	builder.WriteString(fmt.Sprintf("⚠️ %s\n", escapeMarkdown(reason)))
	builder.WriteString(fmt.Sprintf("%s\n", utils.PrettyDate(at)))
	return builder.String()
}

func FormatErrorAlertMessage(time time.Time, errType string, errMsg string, data string) string {
	return fmt.Sprintf(`📛 [ERROR ALERT]
%s
🔧 %s
⚠️ %s

📄 Data: %s
`, utils.PrettyDate(time), errType, escapeMarkdown(errMsg), data)
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
