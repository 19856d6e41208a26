package admission

import (
	"fmt"
	"strings"
)

const (
	stopwatch = "⏱ "
	stop      = "🛑 "
)

var quotes = []string{
	"Woah... you're calling me a bit too fast... I might get dizzy!",
	"Don't be greedy!",
	"Y-You're calling me so fast that I'm getting dizzy...",
	"Halt in there buddy!",
	"Wait just a tiiiiny bit more uwu",
	"Seems like we're gonna get a speed ticket if we continue going this fast!",
	"I wanna do this... but halt for a bit please.",
	"Hey, wait up, I'm not done with my break yet!",
	"Can you slow down a little bit?",
}

// Quote returns the n-th rate limit quote, wrapping around. Pass a random n
// for variety or a fixed one for stable output.
func Quote(n int) string {
	if n < 0 {
		n = -n
	}
	return quotes[n%len(quotes)]
}

// QuoteCount is the number of distinct quotes.
func QuoteCount() int {
	return len(quotes)
}

// Notice renders the message shown to a denied actor. It returns "" for an
// allowed outcome.
func Notice(o Outcome, quote string) string {
	if o.Allowed {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s%s (Ratelimited)\n **You'll be able to use this command again in %s.**",
		stopwatch, quote, o.HumanizedWait)
	if o.Severity >= SeverityWarn {
		b.WriteString("\n\n" + stop + "Please rest, it's good for your health :( " +
			"*Remember that Ratelimit will keep increasing if you try before the cooldown resets!*")
	}
	if o.Severity >= SeverityStrongWarn {
		b.WriteString("\nI think stopping is the best option for now...")
	}
	return b.String()
}
