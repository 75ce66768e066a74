package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vestnft/vesting-actors/actors/builtin/vesting"
	tutil "github.com/vestnft/vesting-actors/support/testing"
)

func flagsFor(t *testing.T, args ...string) *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(flags)
	require.NoError(t, flags.Parse(args))
	return flags
}

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("scenario file", func(t *testing.T) {
		cfg, err := Load(flagsFor(t, "--config", "testdata/scenario.yaml"))
		require.NoError(t, err)

		assert.Equal(t, int64(3), cfg.Seed)
		assert.Equal(t, int64(300), cfg.Epochs)
		assert.Equal(t, 3, cfg.Holders)
		assert.Equal(t, 0.5, cfg.ClaimRate)
		assert.Equal(t, "de", cfg.Language)
		require.Len(t, cfg.Assets, 2)
		supply, err := big.FromString("1000000000000000000000000")
		require.NoError(t, err)
		assert.Equal(t, supply, cfg.Assets[0].Supply)
		assert.Equal(t, big.NewInt(30000), cfg.Assets[1].Supply)

		require.Len(t, cfg.Positions, 4)
		assert.Equal(t, PositionConfig{
			Holder: 1,
			Asset:  "gov",
			Start:  50,
			End:    250,
			Total:  big.NewInt(10000),
			Curve:  "cliff",
			Cliff:  100,
		}, cfg.Positions[1])
		assert.Equal(t, uint64(1000), cfg.Positions[3].Steepness)
	})

	t.Run("flags and environment override the file", func(t *testing.T) {
		t.Setenv("VESTING_SIM_EPOCHS", "42")
		t.Setenv("VESTING_SIM_CLAIM_RATE", "0.25")
		cfg, err := Load(flagsFor(t, "--config", "testdata/scenario.yaml", "--seed", "9"))
		require.NoError(t, err)
		assert.Equal(t, int64(9), cfg.Seed)
		assert.Equal(t, int64(42), cfg.Epochs)
		assert.Equal(t, 0.25, cfg.ClaimRate)
	})

	t.Run("defaults without a scenario file", func(t *testing.T) {
		cfg, err := Load(nil)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), cfg.Epochs)
		assert.Equal(t, 5, cfg.Holders)
		assert.Equal(t, "info", cfg.LogLevel)
		require.Len(t, cfg.Assets, 1)
		assert.Equal(t, big.NewInt(5_000_000), cfg.Assets[0].Supply)
		require.Len(t, cfg.Positions, 5)
		assert.Equal(t, 4, cfg.Positions[4].Holder)
	})

	t.Run("explicit scenario must exist", func(t *testing.T) {
		_, err := Load(flagsFor(t, "--config", filepath.Join(t.TempDir(), "missing.yaml")))
		assert.Error(t, err)
	})

	t.Run("bad amount", func(t *testing.T) {
		path := writeConfig(t, "assets:\n  - name: a\n    supply: \"12x\"\n")
		_, err := Load(flagsFor(t, "--config", path))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Holders: 2,
			Epochs:  10,
			Assets:  []AssetConfig{{Name: "a", Supply: big.NewInt(100)}},
			Positions: []PositionConfig{
				{Holder: 1, Asset: "a", Start: 0, End: 10, Total: big.NewInt(100), Curve: "linear"},
			},
		}
	}
	require.NoError(t, valid().Validate())

	for name, mutate := range map[string]func(c *Config){
		"no holders":          func(c *Config) { c.Holders = 0 },
		"negative epochs":     func(c *Config) { c.Epochs = -1 },
		"negative rate":       func(c *Config) { c.TransferRate = -0.1 },
		"unnamed asset":       func(c *Config) { c.Assets[0].Name = "" },
		"duplicate asset":     func(c *Config) { c.Assets = append(c.Assets, c.Assets[0]) },
		"negative supply":     func(c *Config) { c.Assets[0].Supply = big.NewInt(-1) },
		"holder out of range": func(c *Config) { c.Positions[0].Holder = 2 },
		"unknown asset":       func(c *Config) { c.Positions[0].Asset = "b" },
		"missing total":       func(c *Config) { c.Positions[0].Total = big.Int{} },
		"unknown curve":       func(c *Config) { c.Positions[0].Curve = "sigmoid" },
	} {
		mutate := mutate
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestPositionTerms(t *testing.T) {
	asset := tutil.NewIDAddr(t, 1000)

	p := PositionConfig{Start: 10, End: 110, Total: big.NewInt(500), Curve: "stepwise", Step: 20}
	terms, err := p.Terms(asset)
	require.NoError(t, err)
	assert.Equal(t, asset, terms.PayoutAsset)
	assert.Equal(t, vesting.CurveStepwise, terms.Curve)
	require.NoError(t, vesting.ValidateTerms(vesting.DefaultCurves(), &terms))
	vested, err := vesting.VestedPayoutAtTime(vesting.DefaultCurves(), &terms, 55)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(200), vested)

	// An empty curve name means linear, which takes no parameters.
	p = PositionConfig{Start: 0, End: abi.ChainEpoch(4), Total: big.NewInt(4), Step: 3}
	terms, err = p.Terms(asset)
	require.NoError(t, err)
	assert.Equal(t, vesting.CurveLinear, terms.Curve)
	assert.Empty(t, terms.CurveParams)
}

func TestParseEpochs(t *testing.T) {
	for in, expected := range map[string]abi.ChainEpoch{
		"120": 120,
		"2h":  240,
		"1d":  2880,
		"1y":  1051200,
	} {
		epochs, err := ParseEpochs(in)
		require.NoError(t, err, in)
		assert.Equal(t, expected, epochs, in)
	}
	for _, in := range []string{"", "d", "1.5d", "3w"} {
		_, err := ParseEpochs(in)
		assert.Error(t, err, in)
	}

	path := writeConfig(t, "holders: 1\nassets:\n  - name: a\n    supply: 10\npositions:\n  - holder: 0\n    asset: a\n    end: 30d\n    total: 10\n")
	cfg, err := Load(flagsFor(t, "--config", path))
	require.NoError(t, err)
	assert.Equal(t, abi.ChainEpoch(30*2880), cfg.Positions[0].End)
}
