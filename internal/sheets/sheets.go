// Package sheets mirrors the participant list into a Google spreadsheet for
// the organizers.
package sheets

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/option"
	sheetsv4 "google.golang.org/api/sheets/v4"
)

// ErrNotConfigured is returned when no spreadsheet was set up.
var ErrNotConfigured = errors.New("google sheets export not configured")

// Writer replaces the content of one sheet.
type Writer interface {
	Replace(ctx context.Context, header []string, rows [][]interface{}) error
}

type Client struct {
	srv           *sheetsv4.Service
	spreadsheetID string
	sheet         string
}

// New builds a client from the service account JSON (the key itself, not a
// path). Empty credentials or spreadsheet id return ErrNotConfigured.
func New(ctx context.Context, credentialsJSON, spreadsheetID, sheet string) (*Client, error) {
	if credentialsJSON == "" || spreadsheetID == "" {
		return nil, ErrNotConfigured
	}
	srv, err := sheetsv4.NewService(ctx,
		option.WithCredentialsJSON([]byte(credentialsJSON)),
		option.WithScopes(sheetsv4.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{srv: srv, spreadsheetID: spreadsheetID, sheet: sheet}, nil
}

// Replace clears the sheet and writes the header followed by rows.
func (c *Client) Replace(ctx context.Context, header []string, rows [][]interface{}) error {
	rng := c.sheet + "!A:Z"
	if _, err := c.srv.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &sheetsv4.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", c.sheet, err)
	}

	vr := &sheetsv4.ValueRange{Values: Table(header, rows)}
	_, err := c.srv.Spreadsheets.Values.Update(c.spreadsheetID, c.sheet+"!A1", vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", c.sheet, err)
	}
	return nil
}

// Table prepends the header row to rows.
func Table(header []string, rows [][]interface{}) [][]interface{} {
	head := make([]interface{}, len(header))
	for i, h := range header {
		head[i] = h
	}
	return append([][]interface{}{head}, rows...)
}
