package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"--version"}, &stdout, &stderr); code != 0 {
		t.Fatalf("expected exit 0, got %d (%s)", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "churn-insights version dev") {
		t.Fatalf("unexpected version output: %q", stdout.String())
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"bogus"}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.HasPrefix(stderr.String(), "Error:") {
		t.Fatalf("expected error on stderr, got %q", stderr.String())
	}
}

func TestRunReport(t *testing.T) {
	for _, name := range []string{
		"CHURN_SHEET_URL", "REACTIVATION_SHEET_URL", "GEMINI_API_KEY", "CHURN_INSIGHTS_DB_URL", "DATABASE_URL", "LOG_LEVEL",
	} {
		t.Setenv(name, "")
	}
	dir := t.TempDir()
	churns := filepath.Join(dir, "churns.csv")
	reactivations := filepath.Join(dir, "reactivations.csv")
	csvData := "client_id,client_name,churn_date,notes,churn_category\n" +
		"C1,Acme,2024-01-10,,Pricing\n" +
		"C2,Beta,2024-02-05,,Pricing\n" +
		"C3,Gamma,2024-02-20,,Support\n"
	if err := os.WriteFile(churns, []byte(csvData), 0644); err != nil {
		t.Fatalf("write churns: %v", err)
	}
	if err := os.WriteFile(reactivations, []byte("account_id,account_name,reactivation_date\n"), 0644); err != nil {
		t.Fatalf("write reactivations: %v", err)
	}
	t.Setenv("CHURN_SHEET_PATH", churns)
	t.Setenv("REACTIVATION_SHEET_PATH", reactivations)

	var stdout, stderr bytes.Buffer
	code := run([]string{"report", "--config", filepath.Join(dir, "missing.yaml"), "--no-ai"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d (%s)", code, stderr.String())
	}
	out := stdout.String()
	if !strings.Contains(out, "Pricing: 2 (66.7%)") || !strings.Contains(out, "No reactivations matched.") {
		t.Fatalf("unexpected report:\n%s", out)
	}
}
