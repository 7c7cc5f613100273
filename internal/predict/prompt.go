package predict

import (
	"fmt"
	"strings"

	"github.com/voteradar/voteradar/internal/database"
	"github.com/voteradar/voteradar/internal/history"
	"github.com/voteradar/voteradar/internal/llm"
)

// PromptBuilder renders a prediction request into backend messages. The
// engine is agnostic to prompt content; swap this to change it.
type PromptBuilder interface {
	Build(member *database.Member, bill Bill, hc *history.Context) []llm.Message
}

// DefaultPromptBuilder is the built-in prompt.
type DefaultPromptBuilder struct{}

// Build renders the member's pre-cutoff pattern and the bill into a request
// for a single JSON prediction object.
func (DefaultPromptBuilder) Build(member *database.Member, bill Bill, hc *history.Context) []llm.Message {
	var b strings.Builder

	fmt.Fprintf(&b, "Member: %s (%s), votes with party %.0f%% of the time.\n\n", member.Name, member.Party, member.LoyaltyRate)

	fmt.Fprintf(&b, "Voting pattern (%d prior votes):\n", hc.Total)
	for _, d := range database.Decisions {
		if n := hc.Distribution[d]; n > 0 {
			fmt.Fprintf(&b, "- %s: %d\n", d, n)
		}
	}

	if len(hc.Recent) > 0 {
		b.WriteString("\nMost recent votes, oldest first:\n")
		for _, v := range hc.Recent {
			title := v.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Fprintf(&b, "- %s: %s -> %s\n", v.VotingTime.Format("2006-01-02"), title, v.Decision)
		}
	}

	fmt.Fprintf(&b, "\nBill under vote:\nTitle: %s\n", bill.Title)
	if bill.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", bill.Summary)
	}

	b.WriteString("\nPredict this member's vote. Respond with a single JSON object: " +
		`{"decision": "FOR"|"AGAINST"|"ABSTAIN", "confidence": 0.0-1.0, "reasoning": "one sentence"}`)

	return []llm.Message{
		{Role: "system", Content: "You forecast parliamentary roll-call votes from a member's voting history. Answer with JSON only."},
		{Role: "user", Content: b.String()},
	}
}
