package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"passi/internal/core"
	applog "passi/internal/log"
)

type commandRequest struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Text        string `json:"text"`
}

type commandResponse struct {
	Reply string `json:"reply"`
}

// handleCommand is the chat boundary: the transport delivers the raw
// command text plus the sender identity and gets back the reply text.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	reply := s.dispatcher.Dispatch(r.Context(), req.UserID, req.DisplayName, req.Text)
	writeJSON(w, http.StatusOK, commandResponse{Reply: reply})
}

type rankedEntry struct {
	Rank  int    `json:"rank"`
	Name  string `json:"name"`
	Steps int    `json:"steps"`
}

type leaderboardResponse struct {
	Window  string        `json:"window"`
	Date    string        `json:"date"`
	Entries []rankedEntry `json:"entries"`
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	window := r.URL.Query().Get("window")
	if window == "" {
		window = "daily"
	}

	ref := s.service.Today()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := core.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
			return
		}
		ref = parsed
	}

	board, ok, err := s.cachedBoard(r, window, ref)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to build leaderboard",
			applog.FieldComponent, applog.ComponentHTTP,
			applog.FieldWindow, window,
			applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to build leaderboard")
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown window, want daily|weekly|monthly")
		return
	}

	entries := make([]rankedEntry, 0, len(board))
	for _, row := range board {
		entries = append(entries, rankedEntry{Rank: row.Rank, Name: row.Name, Steps: row.Steps})
	}
	writeJSON(w, http.StatusOK, leaderboardResponse{
		Window:  window,
		Date:    ref.Key(),
		Entries: entries,
	})
}

// cachedBoard serves the leaderboard through the version-keyed cache.
// The second return value is false for an unknown window name.
func (s *Server) cachedBoard(r *http.Request, window string, ref core.Date) ([]core.RankedEntry, bool, error) {
	key := fmt.Sprintf("%s|%s|v%d", window, ref.Key(), s.service.LedgerVersion())
	if board, hit := s.boardCache.Get(key); hit {
		return board, true, nil
	}

	var (
		board []core.RankedEntry
		err   error
	)
	switch window {
	case "daily":
		board, err = s.service.DailyLeaderboard(r.Context(), ref)
	case "weekly":
		board, err = s.service.WeeklyLeaderboard(r.Context(), ref)
	case "monthly":
		board, err = s.service.MonthlyLeaderboard(r.Context(), ref)
	default:
		return nil, false, nil
	}
	if err != nil {
		return nil, true, err
	}

	s.boardCache.Set(key, board)
	return board, true, nil
}

type memberStatsResponse struct {
	MemberID     string `json:"member_id"`
	Today        int    `json:"today"`
	ThisWeek     int    `json:"this_week"`
	ThisMonth    int    `json:"this_month"`
	Total        int    `json:"total"`
	DailyAverage int    `json:"daily_average"`
	ActiveDays   int    `json:"active_days"`
}

func (s *Server) handleMemberStats(w http.ResponseWriter, r *http.Request) {
	memberID := r.PathValue("id")
	ref := s.service.Today()

	key := fmt.Sprintf("%s|%s|v%d", memberID, ref.Key(), s.service.LedgerVersion())
	stats, hit := s.statsCache.Get(key)
	if !hit {
		var err error
		stats, err = s.service.UserStats(r.Context(), memberID, ref)
		if errors.Is(err, core.ErrNotRegistered) {
			writeError(w, http.StatusNotFound, "member not registered")
			return
		}
		if err != nil {
			slog.ErrorContext(r.Context(), "Failed to load member stats",
				applog.FieldComponent, applog.ComponentHTTP,
				applog.FieldMemberID, memberID,
				applog.FieldError, err)
			writeError(w, http.StatusInternalServerError, "failed to load stats")
			return
		}
		s.statsCache.Set(key, stats)
	}

	writeJSON(w, http.StatusOK, memberStatsResponse{
		MemberID:     memberID,
		Today:        stats.Today,
		ThisWeek:     stats.ThisWeek,
		ThisMonth:    stats.ThisMonth,
		Total:        stats.Total,
		DailyAverage: stats.DailyAverage,
		ActiveDays:   stats.ActiveDays,
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		http.Error(w, "templates unavailable", http.StatusInternalServerError)
		return
	}

	ref := s.service.Today()
	board, _, err := s.cachedBoard(r, "daily", ref)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to build dashboard",
			applog.FieldComponent, applog.ComponentHTTP,
			applog.FieldError, err)
		http.Error(w, "failed to build dashboard", http.StatusInternalServerError)
		return
	}

	data := struct {
		Date  string
		Board []core.RankedEntry
	}{
		Date:  ref.Key(),
		Board: board,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Failed rendering dashboard", "error", err)
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	traceMetrics := s.tracer.GetMetrics()
	rlMetrics := s.rateLimiter.GetMetrics()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "passi_requests_total %d\n", traceMetrics.TotalRequests)
	fmt.Fprintf(w, "passi_last_response_ms %d\n", traceMetrics.LastResponseTime)
	fmt.Fprintf(w, "passi_rate_limited_total %d\n", rlMetrics.LimitedHits)
	fmt.Fprintf(w, "passi_rate_limit_clients %d\n", rlMetrics.ClientCount)
	fmt.Fprintf(w, "passi_ledger_version %d\n", s.service.LedgerVersion())
	fmt.Fprintf(w, "passi_board_cache_size %d\n", s.boardCache.Size())
	fmt.Fprintf(w, "passi_stats_cache_size %d\n", s.statsCache.Size())
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ready")
}
