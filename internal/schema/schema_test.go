package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldTypeMaxValues(t *testing.T) {
	assert.Equal(t, uint64(255), TinyInt.MaxValue)
	assert.Equal(t, uint64(65535), SmallInt.MaxValue)
	assert.Equal(t, uint64(16777215), MediumInt.MaxValue)
	assert.Equal(t, uint64(4294967295), Int.MaxValue)
	assert.Equal(t, uint64(18446744073709551615), BigInt.MaxValue)
}

func TestLookup(t *testing.T) {
	card, ok := Lookup("card")
	require.True(t, ok)
	assert.Equal(t, "id", card.PrimaryKey)

	_, ok = Lookup("nonexistent")
	assert.False(t, ok)
}

func TestFieldType(t *testing.T) {
	ft, ok := Card.FieldType("stones")
	require.True(t, ok)
	assert.Equal(t, TinyInt, ft)

	_, ok = Card.FieldType("hitpoints")
	assert.False(t, ok)
}

// Field order is significant: generated column lists and DDL follow it.
func TestCardFieldOrder(t *testing.T) {
	want := []string{"id", "ownerid", "type", "stones", "points", "evolves", "levels", "xp01", "xp02"}
	got := make([]string, len(Card.Fields))
	for i, f := range Card.Fields {
		got[i] = f.Name
	}
	assert.Equal(t, want, got)
}

func TestTablesSorted(t *testing.T) {
	tables := Tables()
	require.Len(t, tables, 2)
	assert.Equal(t, "card", tables[0].Name)
	assert.Equal(t, "player", tables[1].Name)
}
