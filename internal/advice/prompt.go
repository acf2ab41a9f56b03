package advice

import (
	"fmt"
	"strings"
)

// BuildPrompt renders the instruction sent to the generator. The answer is
// requested in casual Indonesian addressing the user as "kamu".
func BuildPrompt(r Request) string {
	var b strings.Builder
	b.WriteString("You are a friendly and motivating financial assistant.\n")
	fmt.Fprintf(&b, "A user is saving for: %q.\n\n", r.Title)
	b.WriteString("Details:\n")
	fmt.Fprintf(&b, "- Target Amount: %s\n", r.TargetAmount)
	fmt.Fprintf(&b, "- Currently Saved: %s\n", r.SavedAmount)
	fmt.Fprintf(&b, "- Target Date: %s\n", r.TargetDate)
	fmt.Fprintf(&b, "- Days Remaining: %d days\n\n", r.DaysRemaining)
	b.WriteString("Please provide a short, encouraging piece of advice (max 2-3 sentences) on how they can reach this goal or praise their progress.\n")
	b.WriteString("Use Indonesian language (Bahasa Indonesia) that is casual, fun, and supportive (using 'kamu').\n")
	return b.String()
}
