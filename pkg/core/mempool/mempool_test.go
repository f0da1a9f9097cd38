// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DINARI NETWORK. All rights reserved.

package mempool

import (
	"path"
	"testing"

	"github.com/dinari-network/dinari-blockchain/pkg/core/data/transactions"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedBalances is a BalanceSource with a static committed view.
type fixedBalances map[string]int64

func (f fixedBalances) GetBalance(addr string) decimal.Decimal {
	return decimal.NewFromInt(f[addr])
}

func newPool(t *testing.T, cfg Config, balances BalanceSource) *Mempool {
	t.Helper()

	m, err := New(cfg, balances)
	require.NoError(t, err)
	t.Cleanup(m.Close)

	return m
}

func transfer(from, to string, amount int64, nonce uint64) transactions.Transaction {
	return transactions.New(from, to,
		decimal.NewFromInt(amount), decimal.Zero, 21000, nonce)
}

func TestAddAndContains(t *testing.T) {
	m := newPool(t, Config{}, fixedBalances{"alice": 1000})

	tx := transfer("alice", "bob", 100, 0)
	require.NoError(t, m.Add(tx))

	assert.Equal(t, 1, m.Len())
	assert.True(t, m.Contains(tx.CalculateHash()))
}

func TestRejectsInvalid(t *testing.T) {
	m := newPool(t, Config{}, fixedBalances{"alice": 1000})

	bad := transfer("alice", "bob", 100, 0)
	bad.Amount = decimal.Zero

	assert.ErrorIs(t, m.Add(bad), transactions.ErrNonPositiveAmount)
	assert.Equal(t, 0, m.Len())
}

func TestRejectsDuplicate(t *testing.T) {
	m := newPool(t, Config{}, fixedBalances{"alice": 1000})

	tx := transfer("alice", "bob", 100, 0)
	require.NoError(t, m.Add(tx))
	assert.ErrorIs(t, m.Add(tx), ErrAlreadyExists)
	assert.Equal(t, 1, m.Len())
}

func TestRejectsOverdraft(t *testing.T) {
	m := newPool(t, Config{}, fixedBalances{"alice": 50})

	assert.ErrorIs(t, m.Add(transfer("alice", "bob", 100, 0)), ErrInsufficientBalance)
	assert.Equal(t, 0, m.Len())
}

func TestUnconfirmedSpendingNotCounted(t *testing.T) {
	// Admission checks run against the committed state only: two
	// transactions that together overdraw alice are both admitted, and the
	// second resolves as a skip at block-assembly time.
	m := newPool(t, Config{}, fixedBalances{"alice": 100})

	require.NoError(t, m.Add(transfer("alice", "bob", 80, 0)))
	require.NoError(t, m.Add(transfer("alice", "carol", 80, 1)))

	assert.Equal(t, 2, m.Len())
}

func TestIssuanceSkipsBalanceCheck(t *testing.T) {
	m := newPool(t, Config{}, fixedBalances{})

	issue := transfer(transactions.IssuanceAddress, "alice", 1_000_000, 0)
	assert.NoError(t, m.Add(issue))
}

func TestPoolFull(t *testing.T) {
	m := newPool(t, Config{MaxTxs: 2}, fixedBalances{"alice": 10_000})

	require.NoError(t, m.Add(transfer("alice", "bob", 1, 0)))
	require.NoError(t, m.Add(transfer("alice", "bob", 1, 1)))
	assert.ErrorIs(t, m.Add(transfer("alice", "bob", 1, 2)), ErrPoolFull)
}

func TestSnapshotPreservesInsertionOrder(t *testing.T) {
	m := newPool(t, Config{}, fixedBalances{"alice": 10_000})

	want := make([]string, 0, 5)
	for i := uint64(0); i < 5; i++ {
		tx := transfer("alice", "bob", int64(i+1), i)
		require.NoError(t, m.Add(tx))
		want = append(want, tx.CalculateHash())
	}

	snap := m.Snapshot()
	require.Len(t, snap, 5)

	for i, tx := range snap {
		assert.Equal(t, want[i], tx.CalculateHash())
	}

	// snapshotting does not drain
	assert.Equal(t, 5, m.Len())
}

func TestRemove(t *testing.T) {
	m := newPool(t, Config{}, fixedBalances{"alice": 10_000})

	first := transfer("alice", "bob", 1, 0)
	second := transfer("alice", "bob", 2, 1)
	require.NoError(t, m.Add(first))
	require.NoError(t, m.Add(second))

	m.Remove([]string{first.CalculateHash()})

	assert.Equal(t, 1, m.Len())
	assert.False(t, m.Contains(first.CalculateHash()))
	assert.True(t, m.Contains(second.CalculateHash()))
}

func TestDiskPoolBackend(t *testing.T) {
	file := path.Join(t.TempDir(), "mempool.db")
	cfg := Config{PoolType: "diskpool", DiskPoolDir: file}

	m := newPool(t, cfg, fixedBalances{"alice": 10_000})

	first := transfer("alice", "bob", 1, 0)
	second := transfer("alice", "bob", 2, 1)
	require.NoError(t, m.Add(first))
	require.NoError(t, m.Add(second))

	snap := m.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, first.CalculateHash(), snap[0].CalculateHash())
	assert.Equal(t, second.CalculateHash(), snap[1].CalculateHash())
}

func TestDiskPoolSurvivesReopen(t *testing.T) {
	file := path.Join(t.TempDir(), "mempool.db")
	balances := fixedBalances{"alice": 10_000}

	m, err := New(Config{PoolType: "diskpool", DiskPoolDir: file}, balances)
	require.NoError(t, err)

	tx := transfer("alice", "bob", 1, 0)
	require.NoError(t, m.Add(tx))
	m.Close()

	reopened := newPool(t, Config{PoolType: "diskpool", DiskPoolDir: file}, balances)

	assert.Equal(t, 1, reopened.Len())
	assert.True(t, reopened.Contains(tx.CalculateHash()))

	// the insertion counter resumes past restored entries
	next := transfer("alice", "bob", 2, 1)
	require.NoError(t, reopened.Add(next))

	snap := reopened.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, tx.CalculateHash(), snap[0].CalculateHash())
}
