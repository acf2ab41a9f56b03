package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	goption "google.golang.org/api/option"

	"dreamsaver/internal/core"
	ports "dreamsaver/internal/sheets"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil {
		t.Fatal("expected error for missing GOOGLE_SPREADSHEET_ID")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := New(context.Background(), Config{SpreadsheetID: "test-id"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected credentials error, got: %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", t.TempDir()+"/missing.json")

	_, err := New(context.Background(), Config{SpreadsheetID: "test-id"})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected file error, got: %v", err)
	}
}

// Test year prefixed name function
func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		baseName string
		year     int
		expected string
	}{
		{"Ledger", 2025, "2025 Ledger"},
		{"Tabungan", 2024, "2024 Tabungan"},
		{"", 2023, ""}, // Empty base returns empty
		{"Test Sheet", 2022, "2022 Test Sheet"},
		{"2025 Already Prefixed", 2024, "2025 Already Prefixed"}, // Already has year prefix
	}

	for _, tt := range tests {
		got := yearPrefixedName(tt.baseName, tt.year)
		if got != tt.expected {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q",
				tt.baseName, tt.year, got, tt.expected)
		}
	}
}

func TestRowValues(t *testing.T) {
	r := ports.LedgerRow{
		OccurredAt:    time.Date(2025, 8, 17, 10, 30, 0, 0, time.UTC),
		Event:         "transaction.recorded",
		GoalID:        "g1",
		GoalTitle:     "Laptop",
		TransactionID: "t1",
		Amount:        core.FromMajor(-50000),
		Saved:         core.FromMajor(150000),
		Target:        core.FromMajor(15000000),
		TargetDate:    "2026-01-01",
		Note:          "darurat",
	}
	got := rowValues(r)
	if len(got) != len(Header) {
		t.Fatalf("row has %d columns, header has %d", len(got), len(Header))
	}
	if got[0] != "2025-08-17 10:30:00" || got[2] != "Laptop" || got[3] != float64(-50000) || got[9] != "t1" {
		t.Errorf("unexpected row %v", got)
	}
}

type appendRecorder struct {
	mu    sync.Mutex
	paths []string
	rows  [][]any
}

func (a *appendRecorder) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var vr struct {
			Values [][]any `json:"values"`
		}
		if err := json.Unmarshal(body, &vr); err != nil {
			t.Errorf("decode request: %v", err)
		}
		a.mu.Lock()
		a.paths = append(a.paths, r.URL.Path)
		a.rows = append(a.rows, vr.Values...)
		a.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"spreadsheetId":"sheet-1","updates":{"updatedRange":"'2025 Ledger'!A7:J7","updatedRows":1}}`)
	}
}

func TestAppendRow(t *testing.T) {
	rec := &appendRecorder{}
	srv := httptest.NewServer(rec.handler(t))
	defer srv.Close()

	c, err := New(context.Background(), Config{SpreadsheetID: "sheet-1"},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ref, err := c.AppendRow(context.Background(), ports.LedgerRow{
		OccurredAt: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
		Event:      "goal.created",
		GoalID:     "g1",
		GoalTitle:  "Laptop",
	})
	if err != nil {
		t.Fatalf("AppendRow: %v", err)
	}
	if ref != "'2025 Ledger'!A7:J7" {
		t.Errorf("ref = %q", ref)
	}
	if len(rec.paths) != 1 || !strings.Contains(rec.paths[0], "sheet-1") || !strings.HasSuffix(rec.paths[0], ":append") {
		t.Errorf("unexpected request paths %v", rec.paths)
	}
	if len(rec.rows) != 1 || rec.rows[0][1] != "goal.created" {
		t.Errorf("unexpected rows %v", rec.rows)
	}
}

func TestAppendRowValidation(t *testing.T) {
	c := &Client{spreadsheetID: "test", sheetBase: DefaultSheetName} // svc is nil
	if _, err := c.AppendRow(context.Background(), ports.LedgerRow{Event: "goal.created"}); err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Fatalf("expected validation error, got %v", err)
	}
	valid := ports.LedgerRow{Event: "goal.created", GoalID: "g1", OccurredAt: time.Now()}
	if _, err := c.AppendRow(context.Background(), valid); err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Fatalf("expected uninitialized error, got %v", err)
	}
}

func TestSheetNamePerYear(t *testing.T) {
	c := &Client{sheetBase: "Ledger"}
	if got := c.SheetName(2026); got != "2026 Ledger" {
		t.Errorf("SheetName(2026) = %q", got)
	}
}
