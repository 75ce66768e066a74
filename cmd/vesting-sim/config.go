package main

import (
	"reflect"
	"strconv"
	"strings"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/vestnft/vesting-actors/actors/builtin"
	"github.com/vestnft/vesting-actors/actors/builtin/vesting"
)

const (
	ConfigName = "vesting-sim"
	ConfigType = "yaml"
	EnvPrefix  = "VESTING_SIM"
)

// Config describes a simulation: the holder population, the assets funding payouts and the positions minted at genesis.
type Config struct {
	Seed             int64
	Epochs           int64
	Holders          int
	AllowEmptyClaims bool    `mapstructure:"allow_empty_claims"`
	ClaimRate        float64 `mapstructure:"claim_rate"`
	TransferRate     float64 `mapstructure:"transfer_rate"`
	LogLevel         string  `mapstructure:"log_level"`
	// Path to write metrics to in the Prometheus text format, if set.
	MetricsFile string `mapstructure:"metrics_file"`
	// BCP 47 tag of the language used to format report amounts.
	Language string

	Assets    []AssetConfig
	Positions []PositionConfig
}

type AssetConfig struct {
	Name   string
	Supply abi.TokenAmount
}

type PositionConfig struct {
	Holder int
	Asset  string
	Start  abi.ChainEpoch
	End    abi.ChainEpoch
	Total  abi.TokenAmount
	// One of linear, cliff, stepwise or exponential.
	Curve string
	// Curve parameters, each read only by the curve that uses it.
	Cliff     abi.ChainEpoch
	Step      abi.ChainEpoch
	Steepness uint64
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("seed", 1)
	v.SetDefault("epochs", 1000)
	v.SetDefault("holders", 5)
	v.SetDefault("allow_empty_claims", false)
	v.SetDefault("claim_rate", 0.05)
	v.SetDefault("transfer_rate", 0.005)
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_file", "")
	v.SetDefault("language", "en")
}

// Registers the flags that override configuration values.
func BindFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "path to a YAML scenario; defaults to ./"+ConfigName+"."+ConfigType)
	flags.Int64("seed", 0, "random seed")
	flags.Int64("epochs", 0, "number of epochs to simulate")
	flags.String("log-level", "", "log level of the simulator and VM")
	flags.String("metrics-file", "", "write Prometheus metrics to this file")
}

// Load reads configuration from the scenario file, then the environment (VESTING_SIM_*), then any flags set.
// A missing default scenario file is not an error: the default configuration is used.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	path := ""
	if flags != nil {
		for key, name := range map[string]string{
			"seed":         "seed",
			"epochs":       "epochs",
			"log_level":    "log-level",
			"metrics_file": "metrics-file",
		} {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errors.Wrapf(err, "failed to bind flag %s", name)
				}
			}
		}
		if f := flags.Lookup("config"); f != nil {
			path = f.Value.String()
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType(ConfigType)
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, "failed to load config")
		}
		log.Warnw("config file not found, default configuration is used", "file", ConfigName+"."+ConfigType)
	}

	cfg := &Config{}
	// Need to copy default viper hooks, because DecodeHook rewrites
	err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		toTokenAmountHookFunc(),
		toEpochHookFunc(),
	)))
	if err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if len(cfg.Assets) == 0 && len(cfg.Positions) == 0 {
		cfg.Assets, cfg.Positions = defaultScenario(cfg.Holders)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Amounts may exceed what YAML integers hold, so they are also accepted as decimal strings.
func toTokenAmountHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if t != reflect.TypeOf(abi.TokenAmount{}) {
			return data, nil
		}
		switch d := data.(type) {
		case string:
			amount, err := big.FromString(d)
			if err != nil {
				return data, errors.Wrapf(err, "failed to parse amount %q", d)
			}
			return amount, nil
		case int:
			return big.NewInt(int64(d)), nil
		case int64:
			return big.NewInt(d), nil
		case uint64:
			return big.NewIntUnsigned(d), nil
		case float64:
			if d != float64(int64(d)) {
				return data, errors.Errorf("amount %v is not an integer", d)
			}
			return big.NewInt(int64(d)), nil
		}
		return data, nil
	}
}

// Epochs may also be written as a whole number of hours, days or years, such as "90d".
func toEpochHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if t != reflect.TypeOf(abi.ChainEpoch(0)) {
			return data, nil
		}
		s, ok := data.(string)
		if !ok {
			return data, nil
		}
		return ParseEpochs(s)
	}
}

func ParseEpochs(s string) (abi.ChainEpoch, error) {
	unit := int64(1)
	switch {
	case strings.HasSuffix(s, "h"):
		unit = builtin.EpochsInHour
	case strings.HasSuffix(s, "d"):
		unit = builtin.EpochsInDay
	case strings.HasSuffix(s, "y"):
		unit = builtin.EpochsInYear
	}
	digits := s
	if unit != 1 {
		digits = s[:len(s)-1]
	}
	n, err := strconv.ParseInt(strings.TrimSpace(digits), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to parse epochs %q", s)
	}
	return abi.ChainEpoch(n * unit), nil
}

// One asset, and one linear position per holder vesting over the first half of a default run.
func defaultScenario(holders int) ([]AssetConfig, []PositionConfig) {
	assets := []AssetConfig{{Name: "vest", Supply: big.NewInt(int64(holders) * 1_000_000)}}
	positions := make([]PositionConfig, holders)
	for i := range positions {
		positions[i] = PositionConfig{
			Holder: i,
			Asset:  "vest",
			Start:  0,
			End:    500,
			Total:  big.NewInt(1_000_000),
			Curve:  vesting.CurveLinear.String(),
		}
	}
	return assets, positions
}

func (c *Config) Validate() error {
	if c.Holders <= 0 {
		return errors.Errorf("holders must be positive, was %d", c.Holders)
	}
	if c.Epochs < 0 {
		return errors.Errorf("epochs must not be negative, was %d", c.Epochs)
	}
	if c.ClaimRate < 0 || c.TransferRate < 0 {
		return errors.Errorf("rates must not be negative, were %v and %v", c.ClaimRate, c.TransferRate)
	}
	assets := make(map[string]bool, len(c.Assets))
	for _, a := range c.Assets {
		if a.Name == "" {
			return errors.New("asset without a name")
		}
		if assets[a.Name] {
			return errors.Errorf("duplicate asset %s", a.Name)
		}
		if a.Supply.Nil() || a.Supply.Sign() < 0 {
			return errors.Errorf("asset %s supply must not be negative", a.Name)
		}
		assets[a.Name] = true
	}
	for i, p := range c.Positions {
		if p.Holder < 0 || p.Holder >= c.Holders {
			return errors.Errorf("position %d: no holder %d among %d", i, p.Holder, c.Holders)
		}
		if !assets[p.Asset] {
			return errors.Errorf("position %d: unknown asset %q", i, p.Asset)
		}
		if p.Total.Nil() {
			return errors.Errorf("position %d: total is required", i)
		}
		if _, err := curveKind(p.Curve); err != nil {
			return errors.Wrapf(err, "position %d", i)
		}
	}
	return nil
}

func curveKind(name string) (vesting.CurveKind, error) {
	for _, k := range []vesting.CurveKind{vesting.CurveLinear, vesting.CurveCliff, vesting.CurveStepwise, vesting.CurveExponential} {
		if k.String() == name {
			return k, nil
		}
	}
	if name == "" {
		return vesting.CurveLinear, nil
	}
	return 0, errors.Errorf("unknown curve %q", name)
}

// Builds the terms of a position paid out in the given asset.
func (p *PositionConfig) Terms(asset addr.Address) (vesting.Position, error) {
	kind, err := curveKind(p.Curve)
	if err != nil {
		return vesting.Position{}, err
	}
	terms := vesting.Position{
		PayoutAsset:     asset,
		VestingStart:    p.Start,
		VestingEnd:      p.End,
		TotalAllocation: p.Total,
		Curve:           kind,
	}
	switch kind {
	case vesting.CurveCliff:
		terms.CurveParams, err = vesting.EncodeCurveParams(&vesting.CliffParams{CliffDuration: p.Cliff})
	case vesting.CurveStepwise:
		terms.CurveParams, err = vesting.EncodeCurveParams(&vesting.StepwiseParams{StepDuration: p.Step})
	case vesting.CurveExponential:
		terms.CurveParams, err = vesting.EncodeCurveParams(&vesting.ExponentialParams{Steepness: p.Steepness})
	}
	if err != nil {
		return vesting.Position{}, errors.Wrapf(err, "failed to encode %v parameters", kind)
	}
	return terms, nil
}
