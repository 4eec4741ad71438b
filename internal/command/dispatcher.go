package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"passi/internal/core"
	"passi/internal/services"
)

const helpText = `Commands:
/register            join the step group
/steps <n>           log today's step count (overwrites today's entry)
/daily, /leaderboard today's leaderboard
/weekly              this week's leaderboard (Monday start)
/monthly             this month's leaderboard
/mystats             your personal statistics
/reset               clear all your entries
/help                this message`

// Dispatcher executes parsed commands against the steps service. The
// chat transport supplies the sender identity on every invocation; the
// dispatcher never derives it itself.
type Dispatcher struct {
	service *services.StepsService
}

func NewDispatcher(service *services.StepsService) *Dispatcher {
	return &Dispatcher{service: service}
}

// Dispatch parses and executes one command, returning the reply text.
// Unknown commands return an empty reply. Typed failures become
// user-visible messages; unexpected faults are logged and reported
// without affecting other members' data or subsequent commands.
func (d *Dispatcher) Dispatch(ctx context.Context, userID, displayName, text string) string {
	cmd := Parse(text)
	if cmd.Kind == KindUnknown {
		return ""
	}

	reply, err := d.execute(ctx, userID, displayName, cmd)
	if err != nil {
		return d.renderError(ctx, userID, cmd, err)
	}
	return reply
}

func (d *Dispatcher) execute(ctx context.Context, userID, displayName string, cmd Command) (string, error) {
	switch cmd.Kind {
	case KindRegister:
		member, err := d.service.Register(ctx, userID, displayName)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Welcome %s! You are registered. Log your steps with /steps <n>.", member.Name), nil

	case KindLogSteps:
		res, err := d.service.LogSteps(ctx, userID, d.service.Today(), cmd.Arg)
		if err != nil {
			return "", err
		}
		if res.Created {
			return fmt.Sprintf("Logged %d steps for today.", res.Steps), nil
		}
		return fmt.Sprintf("Updated today's entry to %d steps.", res.Steps), nil

	case KindDailyBoard:
		board, err := d.service.DailyLeaderboard(ctx, d.service.Today())
		if err != nil {
			return "", err
		}
		return renderBoard("Today's leaderboard", board), nil

	case KindWeeklyBoard:
		board, err := d.service.WeeklyLeaderboard(ctx, d.service.Today())
		if err != nil {
			return "", err
		}
		return renderBoard("This week's leaderboard", board), nil

	case KindMonthlyBoard:
		board, err := d.service.MonthlyLeaderboard(ctx, d.service.Today())
		if err != nil {
			return "", err
		}
		return renderBoard(core.MonthLabel(d.service.Today())+" leaderboard", board), nil

	case KindStats:
		stats, err := d.service.UserStats(ctx, userID, d.service.Today())
		if err != nil {
			return "", err
		}
		return renderStats(stats), nil

	case KindReset:
		if err := d.service.ResetUser(ctx, userID); err != nil {
			return "", err
		}
		return "All your entries have been cleared.", nil

	case KindHelp:
		return helpText, nil

	default:
		return "", nil
	}
}

func (d *Dispatcher) renderError(ctx context.Context, userID string, cmd Command, err error) string {
	switch {
	case errors.Is(err, core.ErrNotRegistered):
		return "You are not registered yet. Use /register first."
	case errors.Is(err, core.ErrInvalidStepCount):
		return "Step count must be a non-negative whole number, e.g. /steps 8000."
	default:
		slog.ErrorContext(ctx, "Command failed",
			"user_id", userID,
			"kind", cmd.Kind,
			"error", err)
		return "Something went wrong, please try again."
	}
}

func renderBoard(title string, board []core.RankedEntry) string {
	if len(board) == 0 {
		return title + ":\nNo steps logged yet."
	}
	var b strings.Builder
	b.WriteString(title)
	b.WriteString(":")
	for _, row := range board {
		fmt.Fprintf(&b, "\n%d. %s - %d steps", row.Rank, row.Name, row.Steps)
	}
	return b.String()
}

func renderStats(stats core.MemberStats) string {
	return fmt.Sprintf(
		"Your stats:\nToday: %d\nThis week: %d\nThis month: %d\nTotal: %d\nDaily average: %d (%d active days)",
		stats.Today, stats.ThisWeek, stats.ThisMonth, stats.Total, stats.DailyAverage, stats.ActiveDays)
}
