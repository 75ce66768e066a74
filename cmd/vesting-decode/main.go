// Command vesting-decode prints hex or multibase encoded vesting data in readable form.
package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"sort"

	"github.com/filecoin-project/go-bitfield"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/multiformats/go-multibase"
	"github.com/urfave/cli/v2"
	cbg "github.com/whyrusleeping/cbor-gen"
	"golang.org/x/xerrors"

	"github.com/vestnft/vesting-actors/actors/builtin/nft"
	"github.com/vestnft/vesting-actors/actors/builtin/vesting"
)

// Shared by every command.
var multibaseFlag = &cli.BoolFlag{
	Name:  "multibase",
	Usage: "read the argument as a multibase string instead of hex",
}

var claimedCmd = &cli.Command{
	Name:        "claimed",
	Usage:       "decode a fully claimed set",
	Description: "decode an RLE+ bitfield of position ids and print one id per line",
	ArgsUsage:   "<hex>",
	Flags:       []cli.Flag{multibaseFlag},
	Action:      runClaimedCmd,
}

var amountCmd = &cli.Command{
	Name:        "amount",
	Usage:       "decode a token amount",
	Description: "decode big.Int bytes",
	ArgsUsage:   "<hex>",
	Flags:       []cli.Flag{multibaseFlag},
	Action:      runAmountCmd,
}

var positionCmd = &cli.Command{
	Name:        "position",
	Usage:       "decode position terms",
	Description: "decode a CBOR encoded position and print its terms",
	ArgsUsage:   "<hex>",
	Flags:       []cli.Flag{multibaseFlag},
	Action:      runPositionCmd,
}

var eventCmd = &cli.Command{
	Name:        "event",
	Usage:       "decode a notification payload",
	Description: "decode a CBOR encoded notification payload for the given topic",
	ArgsUsage:   "<hex>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "topic",
			Usage:    fmt.Sprintf("notification topic, %q or %q", vesting.EventTopicClaim, nft.EventTopicTransfer),
			Required: true,
		},
		multibaseFlag,
	},
	Action: runEventCmd,
}

func newApp() *cli.App {
	app := &cli.App{
		Name:        "vesting-decode",
		Usage:       "Decode a hex encoded vesting data structure",
		Description: "Decode a hex encoded vesting data structure",
		Commands: []*cli.Command{
			claimedCmd,
			amountCmd,
			positionCmd,
			eventCmd,
		},
	}
	sort.Sort(cli.CommandsByName(app.Commands))
	for _, c := range app.Commands {
		sort.Sort(cli.FlagsByName(c.Flags))
	}
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func hexArg(ctx *cli.Context) ([]byte, error) {
	if ctx.NArg() != 1 {
		return nil, xerrors.Errorf("expected exactly one argument, got %d", ctx.NArg())
	}
	if ctx.Bool(multibaseFlag.Name) {
		_, b, err := multibase.Decode(ctx.Args().First())
		if err != nil {
			return nil, xerrors.Errorf("bad multibase: %w", err)
		}
		return b, nil
	}
	b, err := hex.DecodeString(ctx.Args().First())
	if err != nil {
		return nil, xerrors.Errorf("bad hex: %w", err)
	}
	return b, nil
}

func runClaimedCmd(ctx *cli.Context) error {
	b, err := hexArg(ctx)
	if err != nil {
		return err
	}
	bf, err := bitfield.NewFromBytes(b)
	if err != nil {
		return xerrors.Errorf("failed to decode bitfield: %w", err)
	}
	return bf.ForEach(func(id uint64) error {
		_, err := fmt.Fprintln(ctx.App.Writer, id)
		return err
	})
}

func runAmountCmd(ctx *cli.Context) error {
	b, err := hexArg(ctx)
	if err != nil {
		return err
	}
	i, err := big.FromBytes(b)
	if err != nil {
		return xerrors.Errorf("failed to decode amount: %w", err)
	}
	_, err = fmt.Fprintln(ctx.App.Writer, i)
	return err
}

func runPositionCmd(ctx *cli.Context) error {
	b, err := hexArg(ctx)
	if err != nil {
		return err
	}
	var pos vesting.Position
	if err := pos.UnmarshalCBOR(bytes.NewReader(b)); err != nil {
		return xerrors.Errorf("failed to decode position: %w", err)
	}
	if _, err := fmt.Fprintln(ctx.App.Writer, pos.String()); err != nil {
		return err
	}
	if len(pos.CurveParams) == 0 {
		return nil
	}
	var params cbg.CBORUnmarshaler
	switch pos.Curve {
	case vesting.CurveCliff:
		params = &vesting.CliffParams{}
	case vesting.CurveStepwise:
		params = &vesting.StepwiseParams{}
	case vesting.CurveExponential:
		params = &vesting.ExponentialParams{}
	default:
		return xerrors.Errorf("unexpected parameters for curve %v", pos.Curve)
	}
	if err := params.UnmarshalCBOR(bytes.NewReader(pos.CurveParams)); err != nil {
		return xerrors.Errorf("failed to decode %v parameters: %w", pos.Curve, err)
	}
	_, err = fmt.Fprintf(ctx.App.Writer, "params %+v\n", params)
	return err
}

func runEventCmd(ctx *cli.Context) error {
	b, err := hexArg(ctx)
	if err != nil {
		return err
	}
	switch topic := ctx.String("topic"); topic {
	case vesting.EventTopicClaim:
		var e vesting.ClaimEvent
		if err := e.UnmarshalCBOR(bytes.NewReader(b)); err != nil {
			return xerrors.Errorf("failed to decode claim event: %w", err)
		}
		_, err = fmt.Fprintf(ctx.App.Writer, "claim position %d paid %v to %v\n", e.ID, e.Amount, e.Recipient)
	case nft.EventTopicTransfer:
		var e nft.TransferEvent
		if err := e.UnmarshalCBOR(bytes.NewReader(b)); err != nil {
			return xerrors.Errorf("failed to decode transfer event: %w", err)
		}
		_, err = fmt.Fprintf(ctx.App.Writer, "transfer token %d from %v to %v\n", e.ID, e.From, e.To)
	default:
		return xerrors.Errorf("unknown topic %q", topic)
	}
	return err
}
