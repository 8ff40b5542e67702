package models

import (
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// TxOutput is a single payment output: a destination address and an amount
// in base units.
type TxOutput struct {
	Address string `json:"address"`
	Amount  int64  `json:"amount"`
}

// OutPoint identifies a prior transaction output being spent. It wraps
// wire.OutPoint with JSON codec matching the reversed-hex convention UTXO
// chains use for transaction IDs.
type OutPoint struct {
	Hash  chainhash.Hash
	Index uint32
}

type outPointJSON struct {
	TxHash string `json:"txHash"`
	Index  uint32 `json:"index"`
}

// MarshalJSON renders the outpoint's hash in reversed-byte-order hex.
func (o OutPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(outPointJSON{TxHash: o.Hash.String(), Index: o.Index})
}

// UnmarshalJSON parses an outpoint from its reversed-byte-order hex hash.
func (o *OutPoint) UnmarshalJSON(data []byte) error {
	var aux outPointJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("unmarshal outpoint: %w", err)
	}
	hash, err := chainhash.NewHashFromStr(aux.TxHash)
	if err != nil {
		return fmt.Errorf("parse outpoint tx hash %q: %w", aux.TxHash, err)
	}
	o.Hash = *hash
	o.Index = aux.Index
	return nil
}

// Wire converts to the btcd wire.OutPoint used internally by transaction
// construction helpers.
func (o OutPoint) Wire() wire.OutPoint {
	return wire.OutPoint{Hash: o.Hash, Index: o.Index}
}

// UnsignedTx is one transaction returned by the Wallet/Account API: a set
// of inputs (prior outpoints it selected, opaque to the orchestrator beyond
// their identity) and the outputs it constructed. A final-path response is
// a single UnsignedTx; a split-path (consolidation) response is an ordered
// list of them.
type UnsignedTx struct {
	Inputs  []OutPoint `json:"inputs"`
	Outputs []TxOutput `json:"outputs"`
}

// SignedTx is the Console Wallet's output for one UnsignedTx: the raw
// signed transaction bytes plus the transaction hash computed over them.
// The orchestrator never inspects the signature material itself — it only
// needs the hash to track the transaction through the Base Node.
type SignedTx struct {
	Raw    hexutil.Bytes  `json:"raw"`
	TxHash chainhash.Hash `json:"-"`
}

type signedTxJSON struct {
	Raw    hexutil.Bytes `json:"raw"`
	TxHash string        `json:"txHash"`
}

// MarshalJSON renders the transaction hash in reversed-byte-order hex.
func (s SignedTx) MarshalJSON() ([]byte, error) {
	return json.Marshal(signedTxJSON{Raw: s.Raw, TxHash: s.TxHash.String()})
}

// UnmarshalJSON parses a signed transaction from its hex-encoded raw bytes
// and reversed-byte-order hex hash.
func (s *SignedTx) UnmarshalJSON(data []byte) error {
	var aux signedTxJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("unmarshal signed tx: %w", err)
	}
	hash, err := chainhash.NewHashFromStr(aux.TxHash)
	if err != nil {
		return fmt.Errorf("parse signed tx hash %q: %w", aux.TxHash, err)
	}
	s.Raw = aux.Raw
	s.TxHash = *hash
	return nil
}

// String renders the transaction hash in the conventional big-endian,
// reversed-byte-order hex used by UTXO explorers.
func (s SignedTx) String() string {
	return s.TxHash.String()
}
