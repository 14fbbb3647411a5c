package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	gql "github.com/pumped-fn/pumped-gql"
	"github.com/pumped-fn/pumped-gql/types"
)

func testSnapshots() []gql.ResultSnapshot[json.RawMessage] {
	op := &types.Operation{
		ID:      "op-1",
		Kind:    types.KindQuery,
		Context: types.ExecutionContext{RequestPolicy: types.CacheAndNetwork},
	}
	return []gql.ResultSnapshot[json.RawMessage]{
		{Fetching: true},
		{
			Stale:     true,
			HasData:   true,
			Data:      json.RawMessage(`{"hero":{"name":"Luke"}}`),
			Operation: op,
		},
		{
			HasData:   true,
			Data:      json.RawMessage(`{"hero":{"name":"Leia"}}`),
			Operation: op,
		},
		{
			Error: &types.CombinedError{
				GraphQLErrors: []types.GraphQLError{{Message: "hero not found"}},
			},
			Operation: op,
		},
	}
}

func printAll(t *testing.T, format string) []byte {
	t.Helper()
	var buf bytes.Buffer
	p := &SnapshotPrinter{Format: format, Writer: &buf}
	for _, s := range testSnapshots() {
		require.NoError(t, p.Print(s))
	}
	return buf.Bytes()
}

func TestSnapshotPrinter(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	t.Run("text", func(t *testing.T) {
		g.Assert(t, "snapshots_text", printAll(t, "text"))
	})

	t.Run("json", func(t *testing.T) {
		g.Assert(t, "snapshots_json", printAll(t, "json"))
	})
}
