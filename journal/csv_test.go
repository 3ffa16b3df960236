package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCSVJournalWritesRows(t *testing.T) {
	dir := t.TempDir()
	tradesPath := filepath.Join(dir, "trades.csv")
	equityPath := filepath.Join(dir, "equity.csv")

	j, err := NewCSV(tradesPath, equityPath)
	if err != nil {
		t.Fatalf("new csv journal: %v", err)
	}

	t0 := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	if err := j.RecordTrade(sampleTrade("T1", t0, 120)); err != nil {
		t.Fatalf("record trade: %v", err)
	}
	if err := j.RecordEquity(EquitySnapshot{Time: t0, Available: 10120, Equity: 10120}); err != nil {
		t.Fatalf("record equity: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	rows := readCSV(t, tradesPath)
	if len(rows) != 2 {
		t.Fatalf("trades rows = %d, want header + 1", len(rows))
	}
	if rows[0][0] != "trade_id" || rows[0][1] != "symbol" {
		t.Errorf("unexpected header: %v", rows[0])
	}
	if rows[1][0] != "T1" || rows[1][1] != "XAUUSD" || rows[1][2] != "long" {
		t.Errorf("unexpected trade row: %v", rows[1])
	}

	rows = readCSV(t, equityPath)
	if len(rows) != 2 {
		t.Fatalf("equity rows = %d, want header + 1", len(rows))
	}
	if rows[1][0] != t0.Format(time.RFC3339) {
		t.Errorf("equity time = %s", rows[1][0])
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return rows
}
