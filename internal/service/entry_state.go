package service

import (
	"github.com/ayo6706/wallet-ledger/internal/domain"
)

// entryTransitions lists the legal status changes of a ledger entry. SUCCESS
// and FAILED are terminal.
var entryTransitions = map[domain.EntryStatus]map[domain.EntryStatus]struct{}{
	domain.StatusPending: {
		domain.StatusSuccess: {},
		domain.StatusFailed:  {},
	},
	domain.StatusSuccess: {},
	domain.StatusFailed:  {},
}

func canTransition(current, next domain.EntryStatus) bool {
	nextStates, ok := entryTransitions[current]
	if !ok {
		return false
	}
	_, ok = nextStates[next]
	return ok
}
