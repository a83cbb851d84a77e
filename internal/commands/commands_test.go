package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/cashflow/internal/clock"
	"github.com/cleared-dev/cashflow/internal/runlog"
)

var today = time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(&app{clock: clock.Fixed{T: today}})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestInit_CreatesStructure(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "init", dir, "--name", "Test Biz", "--no-git")
	require.NoError(t, err)

	for _, d := range []string{"logs", "reports", "import", filepath.Join("import", "processed")} {
		info, err := os.Stat(filepath.Join(dir, d))
		require.NoError(t, err, "directory %s should exist", d)
		assert.True(t, info.IsDir(), "%s should be a directory", d)
	}

	data, err := os.ReadFile(filepath.Join(dir, "cashflow.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: Test Biz")
	assert.Contains(t, string(data), "cut_day: 11")

	gitignore, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	assert.Contains(t, string(gitignore), "cashflow.db")
	assert.Contains(t, string(gitignore), ".env")
}

func TestInit_GitRepo(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "init", dir, "--name", "Test Biz")
	require.NoError(t, err)
	assert.Contains(t, out, "Initialized cashflow workspace")

	log, err := exec.Command("git", "-C", dir, "log", "--format=%s|%an", "-1").Output()
	require.NoError(t, err)
	assert.Contains(t, string(log), "init: Initialize Test Biz|Cashflow")
}

func TestInit_RefusesExistingWorkspace(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "init", dir, "--name", "A", "--no-git")
	require.NoError(t, err)

	_, err = execute(t, "init", dir, "--name", "B", "--no-git")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestInit_RequiresName(t *testing.T) {
	_, err := execute(t, "init", t.TempDir())
	require.Error(t, err, "init without --name should fail")
}

func TestCommands_NotAWorkspace(t *testing.T) {
	_, err := execute(t, "-C", t.TempDir(), "dashboard")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a cashflow workspace")
}

const revenueStatement = `Date,Description,Amount,Type
2025-01-05,ACH PAYMENT ACME CORPORATION,15000.00,CREDIT
2025-01-06,Transfer from CH x4717 to CH x5285 TMID:ab12cd34ef,-5000.00,DEBIT
`

const billPayStatement = `Date,Description,Amount,Type
2025-01-06,Transfer from CH x4717 to CH x5285 TMID:ab12cd34ef,5000.00,CREDIT
2025-01-10,Payment to Office Supplies Co,-2400.00,DEBIT
`

const obligationsFile = `Type,Counterparty,Amount,Due_Date,Status
receivable,Acme Corp,10000,2025-06-20,pending
payable,Rent Co,3000,2025-06-16,pending
`

func newWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	_, err := execute(t, "init", dir, "--name", "Acme", "--no-git")
	require.NoError(t, err)
	writeFile(t, filepath.Join(dir, "import", "Revenue 4717.csv"), revenueStatement)
	writeFile(t, filepath.Join(dir, "import", "Bill Pay 5285.csv"), billPayStatement)
	return dir
}

func TestImportClassifyAndViews(t *testing.T) {
	dir := newWorkspace(t)

	out, err := execute(t, "-C", dir, "import")
	require.NoError(t, err)
	assert.Contains(t, out, "Revenue 4717.csv -> Revenue 4717: 2 new, 0 duplicate, 0 rejected")
	assert.Contains(t, out, "Bill Pay 5285.csv -> Bill Pay 5285: 2 new, 0 duplicate, 0 rejected")
	assert.FileExists(t, filepath.Join(dir, "import", "processed", "Revenue 4717.csv"))
	assert.NoFileExists(t, filepath.Join(dir, "import", "Revenue 4717.csv"))

	out, err = execute(t, "-C", dir, "import")
	require.NoError(t, err)
	assert.Contains(t, out, "No statements to import.")

	out, err = execute(t, "-C", dir, "classify")
	require.NoError(t, err)
	assert.Contains(t, out, "4 processed, 4 classified, 0 failed, 0 need review")

	entries, err := runlog.Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 4, entries[0].Processed)

	out, err = execute(t, "-C", dir, "dashboard", "--start", "2025-01-01", "--end", "2025-12-31")
	require.NoError(t, err)
	var dash struct {
		KPIs struct {
			Revenue     string `json:"revenue_total"`
			NetCashFlow string `json:"net_cash_flow"`
		} `json:"kpis"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &dash))
	assert.Equal(t, "15000", dash.KPIs.Revenue)
	assert.Equal(t, "12600", dash.KPIs.NetCashFlow)

	out, err = execute(t, "-C", dir, "reconcile")
	require.NoError(t, err)
	assert.Contains(t, out, `"token": "ab12cd34ef"`)
	assert.Contains(t, out, `"status": "RECONCILED"`)

	_, err = execute(t, "-C", dir, "account", "Nowhere 0000")
	require.Error(t, err)

	_, err = execute(t, "-C", dir, "dashboard", "--start", "01/01/2025")
	require.Error(t, err)

	out, err = execute(t, "-C", dir, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "All records valid.")

	out, err = execute(t, "-C", dir, "journal")
	require.NoError(t, err)
	assert.Contains(t, out, "2025-01: 4 entries, 0 skipped")
	assert.FileExists(t, filepath.Join(dir, "journal", "2025", "01", "journal.csv"))

	out, err = execute(t, "-C", dir, "review")
	require.NoError(t, err)
	assert.Contains(t, out, "Review queue is empty.")
}

func TestObligationsAndProjections(t *testing.T) {
	dir := newWorkspace(t)
	path := filepath.Join(dir, "obligations.csv")
	writeFile(t, path, obligationsFile)

	out, err := execute(t, "-C", dir, "obligations", "import", path)
	require.NoError(t, err)
	assert.Contains(t, out, "2 obligations imported, 0 rejected")

	out, err = execute(t, "-C", dir, "obligations", "list", "--type", "payable")
	require.NoError(t, err)
	assert.Contains(t, out, "Rent Co")
	assert.NotContains(t, out, "Acme Corp")

	out, err = execute(t, "-C", dir, "forecast", "--days", "7")
	require.NoError(t, err)
	var points []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &points))
	assert.Len(t, points, 7)

	out, err = execute(t, "-C", dir, "insights")
	require.NoError(t, err)
	assert.Contains(t, out, "Acme Corp")

	_, err = execute(t, "-C", dir, "obligations", "set", "missing-id", "paid")
	require.Error(t, err)

	_, err = execute(t, "-C", dir, "obligations", "set", "missing-id", "settled")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown status")
}

func TestReport_WritesAndCommits(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "init", dir, "--name", "Acme")
	require.NoError(t, err)
	writeFile(t, filepath.Join(dir, "import", "Revenue 4717.csv"), revenueStatement)

	_, err = execute(t, "-C", dir, "import")
	require.NoError(t, err)
	_, err = execute(t, "-C", dir, "classify")
	require.NoError(t, err)

	out, err := execute(t, "-C", dir, "report")
	require.NoError(t, err)
	assert.Contains(t, out, "Report written to reports/2025-06-15-dashboard.json")

	data, err := os.ReadFile(filepath.Join(dir, "reports", "2025-06-15-dashboard.json"))
	require.NoError(t, err)
	var rep map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &rep))
	for _, key := range []string{"dashboard", "tax", "forecast", "risk", "insights"} {
		assert.Contains(t, rep, key)
	}

	log, err := exec.Command("git", "-C", dir, "log", "--format=%s").Output()
	require.NoError(t, err)
	assert.Contains(t, string(log), "report: 2025-06-15-dashboard.json")
	assert.Contains(t, string(log), "import: 1 statement(s)")

	entries, err := runlog.Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].CommitHash)
}
