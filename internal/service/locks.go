package service

import "sync"

// AccountLocks serializes balance-affecting operations per account.
// Every posting, close and transfer runs its whole validate-compute-
// commit sequence under the account's lock, so two concurrent postings
// can never interleave into an incorrect running balance.
type AccountLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewAccountLocks creates an empty lock table.
func NewAccountLocks() *AccountLocks {
	return &AccountLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *AccountLocks) get(accountID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[accountID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[accountID] = m
	}
	return m
}

// Lock acquires the exclusive lock for one account and returns the
// unlock function.
func (l *AccountLocks) Lock(accountID string) func() {
	m := l.get(accountID)
	m.Lock()
	return m.Unlock
}

// LockPair acquires both account locks in lexicographic id order, so
// two transfers crossing the same pair of accounts can never deadlock.
func (l *AccountLocks) LockPair(a, b string) func() {
	if a == b {
		return l.Lock(a)
	}
	first, second := a, b
	if second < first {
		first, second = second, first
	}
	m1 := l.get(first)
	m2 := l.get(second)
	m1.Lock()
	m2.Lock()
	return func() {
		m2.Unlock()
		m1.Unlock()
	}
}
