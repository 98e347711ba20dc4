package sheets

import (
	"context"
	"errors"
	"testing"
)

func TestNewRequiresConfiguration(t *testing.T) {
	if _, err := New(context.Background(), "", "sheet-id", "Uczestnicy"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("missing credentials: %v", err)
	}
	if _, err := New(context.Background(), `{"type":"service_account"}`, "", "Uczestnicy"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("missing spreadsheet: %v", err)
	}
}

func TestTable(t *testing.T) {
	got := Table([]string{"a", "b"}, [][]interface{}{{1, "x"}})
	if len(got) != 2 || got[0][0] != "a" || got[1][1] != "x" {
		t.Fatalf("table = %v", got)
	}
}
