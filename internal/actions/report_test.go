package actions

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"keyrunner/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportPack(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Report.Dir = t.TempDir()
	reg, env := newTestRegistry(t, cfg)

	v, err := call(t, reg, "record_check", map[string]any{"item": "disk", "status": "pass", "details": "80% free"})
	require.NoError(t, err)
	rec := v.(map[string]any)
	assert.Equal(t, "disk", rec["item"])
	assert.NotEmpty(t, rec["timestamp"])

	_, err = call(t, reg, "record_check", map[string]any{"item": "cpu", "status": "fail"})
	require.NoError(t, err)
	require.Len(t, env.Checks(), 2)

	v, err = call(t, reg, "write_report", map[string]any{"report_name": "nightly run"})
	require.NoError(t, err)
	path := v.(string)
	assert.Equal(t, filepath.Join(cfg.Report.Dir, "nightly_run.json"), path)
	assert.Empty(t, env.Checks())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc struct {
		ReportName string        `json:"report_name"`
		Results    []CheckRecord `json:"results"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "nightly run", doc.ReportName)
	require.Len(t, doc.Results, 2)
	assert.Equal(t, "cpu", doc.Results[1].Item)
	assert.Equal(t, "fail", doc.Results[1].Status)

	v, err = call(t, reg, "write_report", map[string]any{"report_name": "explicit", "results": []any{"a", "b"}})
	require.NoError(t, err)
	data, err = os.ReadFile(v.(string))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"a"`)

	_, err = call(t, reg, "record_check", map[string]any{"item": "x"})
	assert.Error(t, err)
}

func TestWriteReport_NoDirectory(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Report.Dir = ""
	reg, _ := newTestRegistry(t, cfg)

	_, err := call(t, reg, "write_report", map[string]any{"report_name": "r"})
	assert.Error(t, err)
}
