// Command vesting-sim runs a population of token holders against a vesting deployment in an in-memory VM,
// then reports the state of every position.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	addr "github.com/filecoin-project/go-address"
	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/vestnft/vesting-actors/support/agent"
	"github.com/vestnft/vesting-actors/support/ipld"
)

var log = logging.Logger("vesting-sim")

func main() {
	flags := pflag.NewFlagSet("vesting-sim", pflag.ExitOnError)
	BindFlags(flags)
	_ = flags.Parse(os.Args[1:])

	cfg, err := Load(flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := run(context.Background(), cfg, os.Stdout); err != nil {
		log.Errorw("simulation failed", "error", err)
		os.Exit(1)
	}
}

func setLogLevel(level string) error {
	for _, name := range []string{"vesting-sim", "vm"} {
		if err := logging.SetLogLevel(name, level); err != nil {
			return errors.Wrapf(err, "failed to set log level of %s", name)
		}
	}
	return nil
}

// Deploys the scenario, runs it for the configured number of epochs, checks invariants and writes the report to out.
func run(ctx context.Context, cfg *Config, out io.Writer) error {
	if err := setLogLevel(cfg.LogLevel); err != nil {
		return err
	}
	tag, err := language.Parse(cfg.Language)
	if err != nil {
		return errors.Wrapf(err, "bad language %q", cfg.Language)
	}

	sim, err := agent.NewSim(ctx, ipld.NewADTStore(ctx), agent.SimConfig{
		HolderCount:      cfg.Holders,
		Seed:             cfg.Seed,
		AllowEmptyClaims: cfg.AllowEmptyClaims,
		Holder:           agent.HolderAgentConfig{ClaimRate: cfg.ClaimRate, TransferRate: cfg.TransferRate},
	})
	if err != nil {
		return errors.Wrap(err, "failed to set up simulation")
	}
	metrics := newClaimMetrics(sim.Deployment)
	defer metrics.subscribe(sim.GetVM())()

	assets, err := createAssets(sim, cfg.Assets)
	if err != nil {
		return err
	}
	for i := range cfg.Positions {
		p := &cfg.Positions[i]
		terms, err := p.Terms(assets[p.Asset])
		if err != nil {
			return errors.Wrapf(err, "position %d", i)
		}
		id, err := sim.Mint(p.Holder, terms)
		if err != nil {
			return errors.Wrapf(err, "position %d", i)
		}
		log.Debugw("minted", "id", id, "holder", p.Holder, "terms", terms.String())
	}
	log.Infow("starting simulation", "holders", cfg.Holders, "positions", len(cfg.Positions), "epochs", cfg.Epochs, "seed", cfg.Seed)

	for epoch := int64(0); epoch < cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := sim.Tick(); err != nil {
			return err
		}
		metrics.setEpoch(sim.GetVM().GetEpoch())
	}

	msgs, err := sim.CheckInvariants()
	if err != nil {
		return errors.Wrap(err, "failed to check invariants")
	}
	if !msgs.IsEmpty() {
		return errors.Errorf("invariants violated:\n%s", strings.Join(msgs.Messages(), "\n"))
	}
	logCallStats(sim)

	rows, err := collectReport(ctx, sim.GetVM(), sim.Deployment)
	if err != nil {
		return errors.Wrap(err, "failed to collect report")
	}
	if err := writeReport(out, message.NewPrinter(tag), sim.GetVM().GetEpoch(), rows); err != nil {
		return err
	}

	if cfg.MetricsFile != "" {
		f, err := os.Create(cfg.MetricsFile)
		if err != nil {
			return errors.Wrap(err, "failed to create metrics file")
		}
		defer f.Close() //nolint:errcheck
		if err := metrics.write(f); err != nil {
			return err
		}
		log.Infow("wrote metrics", "file", cfg.MetricsFile)
	}
	return nil
}

func createAssets(sim *agent.Sim, configs []AssetConfig) (map[string]addr.Address, error) {
	assets := make(map[string]addr.Address, len(configs))
	for _, a := range configs {
		created, err := sim.AddAsset(a.Supply)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create asset %s", a.Name)
		}
		log.Infow("created asset", "name", a.Name, "address", created, "supply", a.Supply)
		assets[a.Name] = created
	}
	return assets, nil
}

func logCallStats(sim *agent.Sim) {
	for key, stats := range sim.GetCallStats() { // nolint:nomaprange
		log.Infow("calls", "to", key.To, "method", key.Method, "count", stats.Calls, "failures", stats.Failures)
	}
}
