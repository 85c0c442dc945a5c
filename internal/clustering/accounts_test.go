package clustering

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func mustSet(t *testing.T, accounts []Account) *AccountSet {
	t.Helper()
	set, err := NewAccountSet(accounts)
	require.NoError(t, err)
	return set
}

func TestNewAccountSetValidation(t *testing.T) {
	tests := []struct {
		name     string
		accounts []Account
		wantErr  string
	}{
		{
			name: "valid set",
			accounts: []Account{
				{ID: "a", Connections: []string{"b"}},
				{ID: "b"},
			},
		},
		{
			name: "empty set is valid",
		},
		{
			name:     "empty id",
			accounts: []Account{{ID: ""}},
			wantErr:  "empty id",
		},
		{
			name:     "duplicate id",
			accounts: []Account{{ID: "a"}, {ID: "a"}},
			wantErr:  "duplicate",
		},
		{
			name:     "self connection",
			accounts: []Account{{ID: "a", Connections: []string{"a"}}},
			wantErr:  "itself",
		},
		{
			name:     "unknown connection",
			accounts: []Account{{ID: "a", Connections: []string{"ghost"}}},
			wantErr:  "ghost",
		},
		{
			name:     "nan reputation",
			accounts: []Account{{ID: "a", Reputation: math.NaN()}},
			wantErr:  "reputation",
		},
		{
			name:     "infinite metadata",
			accounts: []Account{{ID: "a", Metadata: map[string]float64{"followers": math.Inf(1)}}},
			wantErr:  "followers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := NewAccountSet(tt.accounts)
			if tt.wantErr == "" {
				require.NoError(t, err)
				require.NotNil(t, set)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			var iae *InvalidAccountError
			assert.ErrorAs(t, err, &iae)
		})
	}
}

func TestAccountSetIndexIsSorted(t *testing.T) {
	set := mustSet(t, []Account{{ID: "carol"}, {ID: "alice"}, {ID: "bob"}})
	require.Equal(t, 3, set.Len())
	assert.Equal(t, "alice", set.Account(0).ID)
	assert.Equal(t, "bob", set.Account(1).ID)
	assert.Equal(t, "carol", set.Account(2).ID)

	i, ok := set.Index("bob")
	require.True(t, ok)
	assert.Equal(t, 1, i)
	_, ok = set.Index("mallory")
	assert.False(t, ok)
}

func TestConnectedIsUndirected(t *testing.T) {
	// Only a lists b; the link still counts both ways.
	set := mustSet(t, []Account{
		{ID: "a", Connections: []string{"b"}},
		{ID: "b"},
		{ID: "c"},
	})
	ai, _ := set.Index("a")
	bi, _ := set.Index("b")
	ci, _ := set.Index("c")
	assert.True(t, set.connected(ai, bi))
	assert.True(t, set.connected(bi, ai))
	assert.False(t, set.connected(ai, ci))
}
