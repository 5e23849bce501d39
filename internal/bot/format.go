package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/fairyhunter13/promo-harvester/internal/domain"
)

// RemainingMinSec splits a wait duration into whole minutes and seconds,
// rounding seconds up so a displayed zero never hides a real wait.
func RemainingMinSec(d time.Duration) (int, int) {
	if d <= 0 {
		return 0, 0
	}
	secs := int((d + time.Second - 1) / time.Second)
	return secs / 60, secs % 60
}

// FormatIssue renders an issuance result for one user.
func FormatIssue(tr domain.Translator, lang string, res domain.IssueResult) string {
	switch res.Outcome {
	case domain.OutcomeBanned:
		return tr.Lookup(lang, "banned")
	case domain.OutcomeLimitReached:
		return tr.Lookup(lang, "daily_limit_reached")
	case domain.OutcomeWait:
		m, s := RemainingMinSec(res.Remaining)
		return fmt.Sprintf(tr.Lookup(lang, "wait_time"), m, s)
	}

	var sb strings.Builder
	sb.WriteString(tr.Lookup(lang, "keys_ready"))
	sb.WriteString("\n\n")
	for _, d := range res.Draws {
		if len(d.Codes) == 0 {
			sb.WriteString(fmt.Sprintf(tr.Lookup(lang, "no_keys_available"), d.Game))
			continue
		}
		sb.WriteString(d.Game)
		sb.WriteString(":\n")
		for _, c := range d.Codes {
			sb.WriteString(c)
			sb.WriteByte('\n')
		}
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n")
}
