package vm

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/ipfs/go-cid"
	sha256simd "github.com/minio/sha256-simd"
	"github.com/pkg/errors"

	"github.com/vestnft/vesting-actors/actors/builtin"
)

// VectorsEnv names the directory that message vectors are written to.
// Vectors are generated only when it is set as the VM is created.
const VectorsEnv = "VESTING_ACTORS_VECTORS"

// Vector records one top level message with the state roots around it.
type Vector struct {
	PreStateRoot  string        `json:"pre_state_root"`
	Message       VectorMessage `json:"message"`
	Receipt       VectorReceipt `json:"receipt"`
	PostStateRoot string        `json:"post_state_root"`
}

type VectorMessage struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Method uint64 `json:"method"`
	Params string `json:"params"`
}

type VectorReceipt struct {
	ExitCode exitcode.ExitCode `json:"exit_code"`
	Return   string            `json:"return"`
	Events   []VectorEvent     `json:"events,omitempty"`
}

type VectorEvent struct {
	Emitter string `json:"emitter"`
	Topic   string `json:"topic"`
	Payload string `json:"payload"`
}

type vectorGen struct {
	dir string
}

// newVectorGen returns nil unless generation is switched on.
func newVectorGen() *vectorGen {
	dir := os.Getenv(VectorsEnv)
	if dir == "" {
		return nil
	}
	return &vectorGen{dir: dir}
}

func (g *vectorGen) record(v *VM, from, to addr.Address, method abi.MethodNum, params interface{}, preRoot cid.Cid, result MessageResult) error {
	paramBytes, err := encodeHex(params)
	if err != nil {
		return errors.Wrap(err, "failed to encode params")
	}
	retBytes, err := encodeHex(result.Ret)
	if err != nil {
		return errors.Wrap(err, "failed to encode return")
	}

	vector := Vector{
		PreStateRoot: preRoot.String(),
		Message: VectorMessage{
			From:   from.String(),
			To:     to.String(),
			Method: uint64(method),
			Params: paramBytes,
		},
		Receipt: VectorReceipt{
			ExitCode: result.Code,
			Return:   retBytes,
		},
		PostStateRoot: v.StateRoot().String(),
	}
	for _, e := range result.Events {
		vector.Receipt.Events = append(vector.Receipt.Events, VectorEvent{
			Emitter: e.Emitter.String(),
			Topic:   e.Topic,
			Payload: hex.EncodeToString(e.Payload),
		})
	}
	vectorBytes, err := json.MarshalIndent(vector, "", "  ")
	if err != nil {
		return err
	}

	actName := "<unknown>"
	if act, found, err := v.GetActor(to); err == nil && found {
		actName = builtin.ActorNameByCode(act.Code)
	}
	h := sha256simd.Sum256(vectorBytes)
	fname := fmt.Sprintf("%x-%s-%s-%s-%d.json", h[:], from, to, actName, method)
	return writeVector(g.dir, fname, vectorBytes)
}

func encodeHex(v interface{}) (string, error) {
	m, ok := v.(cbor.Marshaler)
	if !ok {
		return "", nil
	}
	var buf bytes.Buffer
	if err := m.MarshalCBOR(&buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf.Bytes()), nil
}

func writeVector(dir, fname string, vectorBytes []byte) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, fname), vectorBytes, 0644)
}
