// Package clustering detects coordinated account groups: it computes
// pairwise behavioral similarity over five weighted features, groups
// accounts with a selectable clustering method, and scores every cluster
// with density, cohesion and a Sybil risk heuristic. Like the scorer, the
// whole package is deterministic: accounts are indexed in sorted ID order
// and no result depends on map iteration or goroutine scheduling.
package clustering

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Account is the clustering input. Connections are undirected peer IDs;
// Activity holds event instants that are bucketed into 24h windows for
// temporal similarity; Metadata carries numeric profile features.
type Account struct {
	ID          string             `json:"id"`
	CreatedAt   time.Time          `json:"createdAt,omitempty"`
	EmailDomain string             `json:"emailDomain,omitempty"`
	Connections []string           `json:"connections,omitempty"`
	Reputation  float64            `json:"reputation"`
	Activity    []time.Time        `json:"activity,omitempty"`
	Metadata    map[string]float64 `json:"metadata,omitempty"`
}

// InvalidAccountError reports an account set construction failure with the
// offending identifier.
type InvalidAccountError struct {
	Reason string
	ID     string
}

func (e *InvalidAccountError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("invalid accounts: %s (id %q)", e.Reason, e.ID)
	}
	return fmt.Sprintf("invalid accounts: %s", e.Reason)
}

// activityBucket is the 24h window an instant falls into.
func activityBucket(t time.Time) int64 {
	return t.Unix() / (24 * 60 * 60)
}

// AccountSet is a validated, indexed account collection. Accounts are
// held sorted by ID; connection and activity-bucket sets are precomputed
// once so the pairwise similarity pass stays cheap.
type AccountSet struct {
	accounts []Account
	index    map[string]int

	connSets   []map[string]struct{}
	bucketSets []map[int64]struct{}
}

// NewAccountSet validates accounts and builds the indexed set. An empty
// input is valid.
func NewAccountSet(accounts []Account) (*AccountSet, error) {
	set := &AccountSet{
		accounts: make([]Account, len(accounts)),
		index:    make(map[string]int, len(accounts)),
	}
	copy(set.accounts, accounts)
	sort.Slice(set.accounts, func(i, j int) bool { return set.accounts[i].ID < set.accounts[j].ID })

	for i, a := range set.accounts {
		if a.ID == "" {
			return nil, &InvalidAccountError{Reason: "account has empty id"}
		}
		if _, dup := set.index[a.ID]; dup {
			return nil, &InvalidAccountError{Reason: "duplicate account id", ID: a.ID}
		}
		if math.IsNaN(a.Reputation) || math.IsInf(a.Reputation, 0) {
			return nil, &InvalidAccountError{Reason: "reputation must be finite", ID: a.ID}
		}
		for k, v := range a.Metadata {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, &InvalidAccountError{Reason: "metadata field " + k + " must be finite", ID: a.ID}
			}
		}
		set.index[a.ID] = i
	}

	set.connSets = make([]map[string]struct{}, len(set.accounts))
	set.bucketSets = make([]map[int64]struct{}, len(set.accounts))
	for i, a := range set.accounts {
		if err := set.validateConnections(a); err != nil {
			return nil, err
		}
		set.connSets[i] = connectionSet(a)
		set.bucketSets[i] = bucketSet(a)
	}
	return set, nil
}

func (s *AccountSet) validateConnections(a Account) error {
	for _, peer := range a.Connections {
		if peer == a.ID {
			return &InvalidAccountError{Reason: "account lists itself as a connection", ID: a.ID}
		}
		if _, ok := s.index[peer]; !ok {
			return &InvalidAccountError{Reason: "connection references unknown account", ID: peer}
		}
	}
	return nil
}

func connectionSet(a Account) map[string]struct{} {
	set := make(map[string]struct{}, len(a.Connections))
	for _, peer := range a.Connections {
		set[peer] = struct{}{}
	}
	return set
}

func bucketSet(a Account) map[int64]struct{} {
	set := make(map[int64]struct{}, len(a.Activity))
	for _, t := range a.Activity {
		set[activityBucket(t)] = struct{}{}
	}
	return set
}

// Len returns the number of accounts.
func (s *AccountSet) Len() int { return len(s.accounts) }

// Account returns the account at dense index i.
func (s *AccountSet) Account(i int) Account { return s.accounts[i] }

// Accounts returns all accounts sorted by ID; callers must not mutate.
func (s *AccountSet) Accounts() []Account { return s.accounts }

// Index maps an account ID to its dense index.
func (s *AccountSet) Index(id string) (int, bool) {
	i, ok := s.index[id]
	return i, ok
}

// connected reports whether either account lists the other as a peer.
func (s *AccountSet) connected(i, j int) bool {
	if _, ok := s.connSets[i][s.accounts[j].ID]; ok {
		return true
	}
	_, ok := s.connSets[j][s.accounts[i].ID]
	return ok
}
