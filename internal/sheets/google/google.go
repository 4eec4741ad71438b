package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"passi/internal/core"
	ports "passi/internal/sheets"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client appends step entries to a Google Sheet. One row per member
// per day: Day, Member, Steps, Synced At.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	entriesSheet  string
}

// Ensure interface conformance
var _ ports.EntryWriter = (*Client)(nil)

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Auth: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
// Optional: GOOGLE_SHEET_NAME (default "Steps").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	sheetName := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if sheetName == "" {
		sheetName = "Steps"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		entriesSheet:  sheetName,
	}, nil
}

// newSheetsService initializes a Sheets Service. Service Account
// credentials take precedence; an OAuth client plus a stored token
// (produced by cmd/oauth-init) is the fallback.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))

	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return newSheetsServiceOAuth(ctx)
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created")
	return service, nil
}

// newSheetsServiceOAuth builds the service from an OAuth client config
// and a previously saved user token.
func newSheetsServiceOAuth(ctx context.Context) (*gsheet.Service, error) {
	clientJSON, err := readEnvOrFile("GOOGLE_OAUTH_CLIENT_JSON", "GOOGLE_OAUTH_CLIENT_FILE")
	if err != nil {
		return nil, err
	}
	if clientJSON == nil {
		return nil, errors.New("missing credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, GOOGLE_APPLICATION_CREDENTIALS, or an oauth client + token)")
	}

	tokenJSON, err := readEnvOrFile("GOOGLE_OAUTH_TOKEN_JSON", "GOOGLE_OAUTH_TOKEN_FILE")
	if err != nil {
		return nil, err
	}
	if tokenJSON == nil {
		return nil, errors.New("missing oauth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE, see cmd/oauth-init)")
	}

	cfg, err := goauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse oauth client: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(tokenJSON, &tok); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}

	service, err := gsheet.NewService(ctx,
		goption.WithHTTPClient(cfg.Client(ctx, &tok)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created", "auth", "oauth")
	return service, nil
}

// readEnvOrFile returns the inline env value when set, otherwise the
// contents of the file named by the second env var, otherwise nil.
func readEnvOrFile(jsonEnv, fileEnv string) ([]byte, error) {
	if v := strings.TrimSpace(os.Getenv(jsonEnv)); v != "" {
		return []byte(v), nil
	}
	if path := strings.TrimSpace(os.Getenv(fileEnv)); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fileEnv, err)
		}
		return b, nil
	}
	return nil, nil
}

// Append writes the entry to the export sheet. If a row for the same
// day and member already exists it is overwritten in place, so a
// corrected step count replaces the stale row.
func (c *Client) Append(ctx context.Context, entry core.DailyEntry, memberName string) (string, error) {
	if err := entry.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	day := entry.Day.Key()

	// Read the Day and Member columns to locate an existing row.
	rng := fmt.Sprintf("%s!A:B", c.entriesSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to get sheet dimensions for %s: %w", c.entriesSheet, err)
	}

	row := 0
	for i, cells := range resp.Values {
		if len(cells) < 2 {
			continue
		}
		d, _ := cells[0].(string)
		m, _ := cells[1].(string)
		if d == day && m == memberName {
			row = i + 1
			break
		}
	}
	if row == 0 {
		row = len(resp.Values) + 1
	}

	dataRange := fmt.Sprintf("%s!A%d:D%d", c.entriesSheet, row, row)
	vr := &gsheet.ValueRange{Values: [][]any{{
		day,
		memberName,
		entry.Steps,
		time.Now().UTC().Format(time.RFC3339),
	}}}

	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to update row in sheet %s: %w", c.entriesSheet, err)
	}

	rowRef := fmt.Sprintf("%s!A%d", c.entriesSheet, row)
	slog.InfoContext(ctx, "Appended entry to sheet",
		"day", day,
		"member", memberName,
		"steps", entry.Steps,
		"row", rowRef)
	return rowRef, nil
}
