package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/message"

	"github.com/vestnft/vesting-actors/actors/builtin/nft"
	"github.com/vestnft/vesting-actors/actors/builtin/vesting"
	"github.com/vestnft/vesting-actors/support/vm"
)

// Number of positions evaluated at once.
const reportParallelism = 8

type positionReport struct {
	ID           uint64
	Owner        addr.Address
	Asset        addr.Address
	Curve        vesting.CurveKind
	Total        abi.TokenAmount
	Vested       abi.TokenAmount
	Claimed      abi.TokenAmount
	FullyClaimed bool
}

func (r *positionReport) Claimable() abi.TokenAmount {
	return big.Sub(r.Vested, r.Claimed)
}

// Evaluates every position of a deployment at the VM's current epoch.
func collectReport(ctx context.Context, v *vm.VM, d *vm.Deployment) ([]positionReport, error) {
	store := v.Store()
	epoch := v.GetEpoch()
	var vst vesting.State
	if err := v.GetState(d.Vesting, &vst); err != nil {
		return nil, errors.Wrap(err, "failed to load vesting state")
	}
	var nst nft.State
	if err := v.GetState(d.NFT, &nst); err != nil {
		return nil, errors.Wrap(err, "failed to load nft state")
	}
	fullyClaimed, err := vst.FullyClaimed.AllMap(vst.PositionCount)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read fully claimed positions")
	}

	ledger, err := vesting.LoadClaimLedger(store, vst.Claims)
	if err != nil {
		return nil, err
	}
	var ids []uint64
	if err := ledger.ForEach(func(id uint64, _ abi.TokenAmount) error {
		ids = append(ids, id)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "failed to list positions")
	}

	rows := make([]positionReport, len(ids))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(reportParallelism)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			// Each worker loads its own view of the collections it reads.
			positions, err := vesting.LoadPositions(store, vst.Positions)
			if err != nil {
				return err
			}
			pos, err := positions.MustGet(id)
			if err != nil {
				return err
			}
			vested, err := vesting.VestedPayoutAtTime(vesting.DefaultCurves(), pos, epoch)
			if err != nil {
				return errors.Wrapf(err, "failed to evaluate position %d", id)
			}
			claimed, err := vst.ClaimedAmount(store, id)
			if err != nil {
				return err
			}
			owner, err := nst.OwnerOf(store, id)
			if err != nil {
				return err
			}
			rows[i] = positionReport{
				ID:           id,
				Owner:        owner,
				Asset:        pos.PayoutAsset,
				Curve:        pos.Curve,
				Total:        pos.TotalAllocation,
				Vested:       vested,
				Claimed:      claimed,
				FullyClaimed: fullyClaimed[id],
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

// Writes the report as an aligned table. Only amounts are formatted for the printer's language.
func writeReport(w io.Writer, p *message.Printer, epoch abi.ChainEpoch, rows []positionReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "epoch %d\n", epoch)
	fmt.Fprintf(tw, "position\towner\tasset\tcurve\ttotal\tvested\tclaimed\tclaimable\tdone\n")
	total, vested, claimed := big.Zero(), big.Zero(), big.Zero()
	for i := range rows {
		r := &rows[i]
		done := ""
		if r.FullyClaimed {
			done = "yes"
		}
		fmt.Fprintf(tw, "%d\t%v\t%v\t%v\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Owner, r.Asset, r.Curve,
			formatAmount(p, r.Total), formatAmount(p, r.Vested), formatAmount(p, r.Claimed), formatAmount(p, r.Claimable()), done)
		total = big.Add(total, r.Total)
		vested = big.Add(vested, r.Vested)
		claimed = big.Add(claimed, r.Claimed)
	}
	fmt.Fprintf(tw, "all\t\t\t\t%s\t%s\t%s\t%s\t\n",
		formatAmount(p, total), formatAmount(p, vested), formatAmount(p, claimed), formatAmount(p, big.Sub(vested, claimed)))
	return tw.Flush()
}

func formatAmount(p *message.Printer, amount abi.TokenAmount) string {
	if amount.Int.IsInt64() {
		return p.Sprintf("%d", amount.Int64())
	}
	return amount.String()
}
