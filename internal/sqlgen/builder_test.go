package sqlgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qpipe/internal/schema"
)

func TestValidateClampsTinyInt(t *testing.T) {
	b := &Builder{}

	out := b.Validate(schema.Card, map[string]any{"stones": 300})
	assert.Equal(t, uint64(255), out["stones"], "overflow clamps to max")

	out = b.Validate(schema.Card, map[string]any{"stones": -5})
	assert.Equal(t, uint64(0), out["stones"], "underflow clamps to 0")

	out = b.Validate(schema.Card, map[string]any{"stones": 100})
	assert.Equal(t, 100, out["stones"], "in-range value unchanged")
}

func TestValidateCoercesNumericStrings(t *testing.T) {
	b := &Builder{}

	out := b.Validate(schema.Card, map[string]any{"stones": "300"})
	assert.Equal(t, uint64(255), out["stones"], "integer strings clamp like integers")

	out = b.Validate(schema.Card, map[string]any{"stones": "-5"})
	assert.Equal(t, uint64(0), out["stones"])

	out = b.Validate(schema.Card, map[string]any{"stones": "100"})
	assert.Equal(t, "100", out["stones"], "in-range strings keep their form")

	out = b.Validate(schema.Card, map[string]any{"stones": "plenty"})
	assert.Equal(t, "plenty", out["stones"], "non-numeric strings pass through")
}

func TestValidateSkipsPrimaryKey(t *testing.T) {
	b := &Builder{}
	// id is INT; a value above INT max would clamp if it were validated.
	out := b.Validate(schema.Card, map[string]any{"id": int64(99999999999)})
	assert.Equal(t, int64(99999999999), out["id"])
}

func TestValidatePassThroughUnknownFields(t *testing.T) {
	b := &Builder{}
	out := b.Validate(schema.Card, map[string]any{"hitpoints": 9000})
	assert.Equal(t, 9000, out["hitpoints"], "non-schema fields are not validated")
}

func TestValidateStrictDropsUnknownFields(t *testing.T) {
	b := &Builder{Strict: true}
	out := b.Validate(schema.Card, map[string]any{"hitpoints": 9000, "stones": 3})
	_, present := out["hitpoints"]
	assert.False(t, present)
	assert.Equal(t, 3, out["stones"])
}

func TestValidateDoesNotMutateInput(t *testing.T) {
	b := &Builder{}
	in := map[string]any{"stones": 300}
	b.Validate(schema.Card, in)
	assert.Equal(t, 300, in["stones"])
}

func TestInsert(t *testing.T) {
	b := &Builder{}
	sql, ok := b.Insert(schema.Card, map[string]any{
		"ownerid": 42, "type": 7, "stones": 1, "points": 2,
	})
	require.True(t, ok)
	assert.Equal(t, "INSERT INTO card (ownerid,type,stones,points) VALUES ('42','7','1','2')", sql)
}

func TestInsertEmptyDataIsNoop(t *testing.T) {
	b := &Builder{}
	sql, ok := b.Insert(schema.Card, map[string]any{})
	assert.False(t, ok)
	assert.Empty(t, sql)
}

func TestInsertStrictAllUnknownIsNoop(t *testing.T) {
	b := &Builder{Strict: true}
	_, ok := b.Insert(schema.Card, map[string]any{"hitpoints": 1})
	assert.False(t, ok)
}

// Unknown fields flow into the statement text in the default mode.
func TestInsertPassThroughField(t *testing.T) {
	b := &Builder{}
	sql, ok := b.Insert(schema.Player, map[string]any{"stamina": 5, "nickname": 3})
	require.True(t, ok)
	assert.Equal(t, "INSERT INTO player (stamina,nickname) VALUES ('5','3')", sql)
}

func TestSelectDefaultsToPrimaryKey(t *testing.T) {
	b := &Builder{}
	sql := b.Select(schema.Card, []uint64{7}, "")
	assert.Equal(t, "SELECT * FROM card WHERE id IN (7)", sql)
}

func TestSelectAll(t *testing.T) {
	b := &Builder{}
	sql := b.Select(schema.Card, nil, "")
	assert.Equal(t, "SELECT * FROM card", sql)
}

func TestSelectByIndexedField(t *testing.T) {
	b := &Builder{}
	sql := b.Select(schema.Card, []uint64{42, 43}, "ownerid")
	assert.Equal(t, "SELECT * FROM card WHERE ownerid IN (42,43)", sql)
}

func TestUpdate(t *testing.T) {
	b := &Builder{}
	sql, ok := b.Update(schema.Player, 7, map[string]any{"stamina": 4, "points": 90})
	require.True(t, ok)
	assert.Equal(t, "UPDATE player SET points=90,stamina=4 WHERE id=7", sql)
}

func TestUpdateClampsValues(t *testing.T) {
	b := &Builder{}
	sql, ok := b.Update(schema.Card, 12, map[string]any{"stones": 300})
	require.True(t, ok)
	assert.Equal(t, "UPDATE card SET stones=255 WHERE id=12", sql)
}

func TestUpdateEmptyDataIsNoop(t *testing.T) {
	b := &Builder{}
	_, ok := b.Update(schema.Player, 7, map[string]any{})
	assert.False(t, ok)
}
