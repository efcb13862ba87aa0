// Package ledger is the account ledger adapter: a read/write view over
// per-account, per-asset vault balances with overflow-checked arithmetic.
// It carries no matching or market logic.
//
// Balances split into available and reserved (escrow). Funds for an open
// order are reserved at admission and only ever move out of the reserved
// bucket via TransferReserved during settlement, or back to available via
// Release on cancel or remainder discard.
package ledger

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrOverflow          = errors.New("arithmetic overflow")
	ErrInvalidAmount     = errors.New("amount must be positive")
)

// Balance is one vault: available plus reserved never exceeds the amount
// custodied for the (account, asset) pair.
type Balance struct {
	Available int64
	Reserved  int64
}

// Key identifies one vault.
type Key struct {
	Account common.Address
	Asset   string
}

func (k Key) String() string { return fmt.Sprintf("%s/%s", k.Account.Hex(), k.Asset) }

// Ledger holds the vault balances touched by one market's instructions.
// It is an explicit, passed-by-reference context scoped to the transaction
// boundary; there is no process-wide singleton and no internal locking.
type Ledger struct {
	vaults map[Key]*Balance
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{vaults: make(map[Key]*Balance)}
}

// vault returns the balance record for a key, creating a zero vault if absent.
func (l *Ledger) vault(acct common.Address, asset string) *Balance {
	k := Key{Account: acct, Asset: asset}
	b, ok := l.vaults[k]
	if !ok {
		b = &Balance{}
		l.vaults[k] = b
	}
	return b
}

// Get returns a copy of the vault balance, zero if the vault does not exist.
func (l *Ledger) Get(acct common.Address, asset string) Balance {
	if b, ok := l.vaults[Key{Account: acct, Asset: asset}]; ok {
		return *b
	}
	return Balance{}
}

// Deposit credits available funds from external custody.
func (l *Ledger) Deposit(acct common.Address, asset string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	b := l.vault(acct, asset)
	next, err := CheckedAdd(b.Available, amount)
	if err != nil {
		return err
	}
	b.Available = next
	return nil
}

// Withdraw debits available funds to external custody.
func (l *Ledger) Withdraw(acct common.Address, asset string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	b := l.vault(acct, asset)
	if b.Available < amount {
		return ErrInsufficientFunds
	}
	b.Available -= amount
	return nil
}

// Reserve escrows available funds for an open order.
func (l *Ledger) Reserve(acct common.Address, asset string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	b := l.vault(acct, asset)
	if b.Available < amount {
		return ErrInsufficientFunds
	}
	next, err := CheckedAdd(b.Reserved, amount)
	if err != nil {
		return err
	}
	b.Available -= amount
	b.Reserved = next
	return nil
}

// Release returns escrowed funds to the available bucket, on cancel or when
// a market/IOC remainder is discarded.
func (l *Ledger) Release(acct common.Address, asset string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	b := l.vault(acct, asset)
	if b.Reserved < amount {
		return ErrInsufficientFunds
	}
	next, err := CheckedAdd(b.Available, amount)
	if err != nil {
		return err
	}
	b.Reserved -= amount
	b.Available = next
	return nil
}

// TransferReserved moves escrowed funds from the payer's reserved bucket to
// the payee's available bucket. This is the only way funds change owner.
func (l *Ledger) TransferReserved(from, to common.Address, asset string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	src := l.vault(from, asset)
	if src.Reserved < amount {
		return ErrInsufficientFunds
	}
	dst := l.vault(to, asset)
	next, err := CheckedAdd(dst.Available, amount)
	if err != nil {
		return err
	}
	src.Reserved -= amount
	dst.Available = next
	return nil
}

// Keys returns all vault keys in deterministic (sorted) order.
func (l *Ledger) Keys() []Key {
	keys := make([]Key, 0, len(l.vaults))
	for k := range l.vaults {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Account != keys[j].Account {
			return keys[i].Account.Hex() < keys[j].Account.Hex()
		}
		return keys[i].Asset < keys[j].Asset
	})
	return keys
}

// SetBalance installs a vault record directly. Used when restoring persisted
// state at startup.
func (l *Ledger) SetBalance(acct common.Address, asset string, b Balance) {
	l.vaults[Key{Account: acct, Asset: asset}] = &Balance{Available: b.Available, Reserved: b.Reserved}
}

// Tx is an in-memory transaction over the ledger: touched vaults are
// snapshotted copy-on-write at Begin so Rollback restores them exactly.
// The host guarantees serial execution, so one Tx is live at a time.
type Tx struct {
	ledger *Ledger
	before map[Key]*Balance // nil value = vault did not exist
	done   bool
}

// Begin snapshots the current vault state for rollback. Only vaults that
// exist at Begin are recorded; vaults created inside the transaction are
// deleted on rollback.
func (l *Ledger) Begin() *Tx {
	before := make(map[Key]*Balance, len(l.vaults))
	for k, b := range l.vaults {
		cp := *b
		before[k] = &cp
	}
	return &Tx{ledger: l, before: before}
}

// Commit keeps the mutations made since Begin.
func (t *Tx) Commit() {
	t.done = true
}

// Rollback restores every vault to its state at Begin.
func (t *Tx) Rollback() {
	if t.done {
		return
	}
	restored := make(map[Key]*Balance, len(t.before))
	for k, b := range t.before {
		cp := *b
		restored[k] = &cp
	}
	t.ledger.vaults = restored
	t.done = true
}
