package sqlgen

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qpipe/internal/schema"
)

// Golden files pin the exact statement text for every registered table.
// Regenerate with: go test ./internal/sqlgen -update
func TestCreateTableGolden(t *testing.T) {
	g := goldie.New(t)
	b := &Builder{}
	for _, table := range schema.Tables() {
		g.Assert(t, "create_"+table.Name, []byte(b.CreateTable(table)))
	}
}

func TestStatementGolden(t *testing.T) {
	g := goldie.New(t)
	b := &Builder{}

	insert, ok := b.Insert(schema.Card, map[string]any{
		"ownerid": 42, "type": 1021, "stones": 1, "points": 1,
		"evolves": 0, "levels": 0, "xp01": 0, "xp02": 0,
	})
	require.True(t, ok)
	g.Assert(t, "insert_card", []byte(insert))

	update, ok := b.Update(schema.Player, 3063853833, map[string]any{
		"slots": 50, "points": 1000, "stones": 5, "stamina": 5,
	})
	require.True(t, ok)
	g.Assert(t, "update_player", []byte(update))

	g.Assert(t, "select_cards_by_owner", []byte(b.Select(schema.Card, []uint64{3063853833}, "ownerid")))
}
