// Package command is the chat boundary: it turns raw command text
// into a closed set of command variants and dispatches them against
// the steps service, returning plain reply strings.
package command

import (
	"strings"
)

// Kind identifies one command variant. Parsing produces exactly one
// of these, so dispatch is an exhaustive switch instead of chained
// string comparisons.
type Kind int

const (
	KindUnknown Kind = iota
	KindRegister
	KindLogSteps
	KindDailyBoard
	KindWeeklyBoard
	KindMonthlyBoard
	KindStats
	KindReset
	KindHelp
)

// Command is one parsed chat command. Arg carries the raw first
// argument for KindLogSteps; validation of the value happens in the
// service so a bad argument surfaces as a typed failure, not a parse
// error.
type Command struct {
	Kind Kind
	Arg  string
}

// Parse extracts the verb and optional argument from command text.
// Anything that is not a known verb parses to KindUnknown.
func Parse(text string) Command {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return Command{Kind: KindUnknown}
	}

	verb := strings.ToLower(fields[0])
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch verb {
	case "/register":
		return Command{Kind: KindRegister}
	case "/steps":
		return Command{Kind: KindLogSteps, Arg: arg}
	case "/daily", "/leaderboard":
		return Command{Kind: KindDailyBoard}
	case "/weekly":
		return Command{Kind: KindWeeklyBoard}
	case "/monthly":
		return Command{Kind: KindMonthlyBoard}
	case "/mystats":
		return Command{Kind: KindStats}
	case "/reset":
		return Command{Kind: KindReset}
	case "/help":
		return Command{Kind: KindHelp}
	default:
		return Command{Kind: KindUnknown}
	}
}
