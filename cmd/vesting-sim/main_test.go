package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/filecoin-project/go-state-types/big"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/vestnft/vesting-actors/actors/builtin/vesting"
	tutil "github.com/vestnft/vesting-actors/support/testing"
)

func TestRunScenario(t *testing.T) {
	cfg, err := Load(flagsFor(t, "--config", "testdata/scenario.yaml"))
	require.NoError(t, err)
	cfg.MetricsFile = filepath.Join(t.TempDir(), "metrics.prom")

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), cfg, &out))

	report := out.String()
	assert.True(t, strings.HasPrefix(report, "epoch 300\n"), report)
	// Every position has fully vested; German grouping separates thousands with dots.
	assert.Contains(t, report, "10.000")
	assert.Contains(t, report, "1000000000000000000000")
	for _, curve := range []string{"linear", "cliff", "stepwise", "exponential"} {
		assert.Contains(t, report, curve)
	}
	lines := strings.Split(strings.TrimSpace(report), "\n")
	assert.Len(t, lines, 2+len(cfg.Positions)+1)

	metrics, err := os.ReadFile(cfg.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "vesting_sim_mints_total 4")
	assert.Contains(t, string(metrics), "vesting_sim_epoch 300")
	assert.Contains(t, string(metrics), "vesting_sim_claims_total")
}

func TestRunRejectsBadLanguage(t *testing.T) {
	cfg, err := Load(flagsFor(t, "--config", "testdata/scenario.yaml"))
	require.NoError(t, err)
	cfg.Language = "not a language!"
	assert.Error(t, run(context.Background(), cfg, &bytes.Buffer{}))
}

func TestWriteReport(t *testing.T) {
	owner := tutil.NewIDAddr(t, 103)
	asset := tutil.NewIDAddr(t, 104)
	rows := []positionReport{{
		ID:      0,
		Owner:   owner,
		Asset:   asset,
		Curve:   vesting.CurveLinear,
		Total:   big.NewInt(1_234_567),
		Vested:  big.NewInt(1_000_000),
		Claimed: big.NewInt(400_000),
	}, {
		ID:           1,
		Owner:        owner,
		Asset:        asset,
		Curve:        vesting.CurveCliff,
		Total:        big.NewInt(10),
		Vested:       big.NewInt(10),
		Claimed:      big.NewInt(10),
		FullyClaimed: true,
	}}

	var out bytes.Buffer
	require.NoError(t, writeReport(&out, message.NewPrinter(language.English), 1000, rows))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "epoch 1000", strings.TrimSpace(lines[0]))
	assert.Equal(t, []string{"position", "owner", "asset", "curve", "total", "vested", "claimed", "claimable", "done"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"0", "t0103", "t0104", "linear", "1,234,567", "1,000,000", "400,000", "600,000"}, strings.Fields(lines[2]))
	assert.Equal(t, []string{"1", "t0103", "t0104", "cliff", "10", "10", "10", "0", "yes"}, strings.Fields(lines[3]))
	assert.Equal(t, []string{"all", "1,234,577", "1,000,010", "400,010", "600,000"}, strings.Fields(lines[4]))
}
