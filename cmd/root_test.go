package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	return out.String(), err
}

func seedFile(t *testing.T) string {
	t.Helper()
	p, err := filepath.Abs(filepath.Join("..", "catalog", "testdata", "seed.yaml"))
	require.NoError(t, err)
	return p
}

func TestAssignCommand(t *testing.T) {
	cfg := writeConfig(t, "store:\n  driver: memory\n  seed: "+seedFile(t)+"\n")
	out, err := execute(t, "--config", cfg, "orders", "assign", "100", "P-01")
	require.NoError(t, err, out)

	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "P-01", res["vessel_id"])
	assert.Equal(t, "fragmented", res["outcome"])
}

func TestEligibleCommand(t *testing.T) {
	cfg := writeConfig(t, "store:\n  driver: memory\n  seed: "+seedFile(t)+"\n")
	out, err := execute(t, "--config", cfg, "orders", "eligible", "100")
	require.NoError(t, err, out)

	var res []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res, 2)
	assert.Equal(t, "P-01", res[0]["vessel_id"])
}

func TestOrderIDValidation(t *testing.T) {
	cfg := writeConfig(t, "store:\n  driver: memory\n")
	_, err := execute(t, "--config", cfg, "orders", "tree", "abc")
	assert.ErrorContains(t, err, "invalid order id")
}

func TestScheduleFlagValidation(t *testing.T) {
	cfg := writeConfig(t, "store:\n  driver: memory\n")
	_, err := execute(t, "--config", cfg, "orders", "schedule", "100", "--start", "tomorrow")
	assert.ErrorContains(t, err, "--start")
	scheduleStart = ""
}

func TestSeedAndMigrateSQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "pailas.db")
	cfg := writeConfig(t, "store:\n  driver: sqlite\n  dsn: "+dsn+"\n")

	out, err := execute(t, "--config", cfg, "migrate")
	require.NoError(t, err, out)
	assert.Contains(t, out, "sqlite schema up to date")

	out, err = execute(t, "--config", cfg, "seed", seedFile(t))
	require.NoError(t, err, out)
	assert.Contains(t, out, "imported 3 vessels")

	out, err = execute(t, "--config", cfg, "resync")
	require.NoError(t, err, out)
	assert.Contains(t, out, `"orders": 2`)
}

func TestMigrateMemoryHasNoSchema(t *testing.T) {
	cfg := writeConfig(t, "store:\n  driver: memory\n")
	_, err := execute(t, "--config", cfg, "migrate")
	assert.ErrorContains(t, err, "has no schema")
}

func TestLedgerCommand(t *testing.T) {
	cfg := writeConfig(t, "store:\n  driver: memory\n  seed: "+seedFile(t)+"\n")
	out, err := execute(t, "--config", cfg, "ledger", "--vessel", "P-03")
	require.NoError(t, err, out)
	assert.Equal(t, "vessel_id,order_id,status,start,end\nP-03,,pending-wash,2024-03-01T06:00:00Z,2024-03-01T08:00:00Z\n", out)
}
