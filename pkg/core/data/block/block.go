// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DINARI NETWORK. All rights reserved.

package block

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dinari-network/dinari-blockchain/pkg/core/data/transactions"
)

// GenesisPrevHash is the sentinel previous-hash of the height-0 block.
var GenesisPrevHash = strings.Repeat("0", 64)

// ErrHashMismatch the stored hash does not match the recomputed one.
var ErrHashMismatch = errors.New("block hash mismatch")

// Block is a committed (or candidate) batch of transactions. Nonce is a
// placeholder kept at zero under proof of authority.
type Block struct {
	Index     uint64                     `json:"index"`
	Txs       []transactions.Transaction `json:"transactions"`
	Timestamp int64                      `json:"timestamp"`
	PrevHash  string                     `json:"previous_hash"`
	Validator string                     `json:"validator"`
	Nonce     uint64                     `json:"nonce"`
	GasUsed   uint64                     `json:"gas_used"`
	GasLimit  uint64                     `json:"gas_limit"`
	Hash      string                     `json:"hash"`
}

// New assembles an unhashed candidate block on top of the given tip.
func New(index uint64, prevHash, validator string, txs []transactions.Transaction) *Block {
	return &Block{
		Index:     index,
		Txs:       txs,
		Timestamp: time.Now().Unix(),
		PrevHash:  prevHash,
		Validator: validator,
	}
}

// CalculateHash returns the hex-encoded sha256 digest over a canonical,
// order-stable encoding of all fields. Transactions contribute through the
// ordered list of their hashes, so the digest is a pure function of block
// content and idempotent under recomputation.
func (b Block) CalculateHash() string {
	hashes := make([]string, len(b.Txs))
	for i, tx := range b.Txs {
		hashes[i] = tx.CalculateHash()
	}

	// Marshalling cannot fail for a string slice.
	encoded, _ := json.Marshal(hashes)
	txRoot := sha256.Sum256(encoded)

	data := fmt.Sprintf("%d%d%s%s%s%d%d%d",
		b.Index, b.Timestamp, hex.EncodeToString(txRoot[:]),
		b.PrevHash, b.Validator, b.Nonce, b.GasUsed, b.GasLimit)

	digest := sha256.Sum256([]byte(data))
	return hex.EncodeToString(digest[:])
}

// SetHash computes and stores the block hash. Call only after all other
// fields are final.
func (b *Block) SetHash() {
	b.Hash = b.CalculateHash()
}

// VerifyHash recomputes the digest and compares it against the stored hash.
func (b Block) VerifyHash() error {
	if b.Hash != b.CalculateHash() {
		return ErrHashMismatch
	}

	return nil
}

// TxHashes returns the hashes of all included transactions, in block order.
func (b Block) TxHashes() []string {
	hashes := make([]string, len(b.Txs))
	for i, tx := range b.Txs {
		hashes[i] = tx.CalculateHash()
	}

	return hashes
}

// Marshal encodes the block for persistence.
func Marshal(b *Block) ([]byte, error) {
	return json.Marshal(b)
}

// Unmarshal decodes a persisted block.
func Unmarshal(data []byte) (*Block, error) {
	b := new(Block)
	err := json.Unmarshal(data, b)
	return b, err
}
