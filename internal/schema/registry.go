package schema

import "sort"

// Card is the unit inventory table. One row per card a player owns.
var Card = &Table{
	Name:       "card",
	PrimaryKey: "id",
	Fields: []Field{
		{Name: "id", Type: Int},
		{Name: "ownerid", Type: Int},
		{Name: "type", Type: MediumInt},
		{Name: "stones", Type: TinyInt},
		{Name: "points", Type: TinyInt},
		{Name: "evolves", Type: Int},
		{Name: "levels", Type: Int},
		{Name: "xp01", Type: MediumInt},
		{Name: "xp02", Type: MediumInt},
	},
	Indexed: []string{"ownerid"},
}

// Player is the player account table.
var Player = &Table{
	Name:       "player",
	PrimaryKey: "id",
	Fields: []Field{
		{Name: "id", Type: Int},
		{Name: "slots", Type: SmallInt},
		{Name: "points", Type: SmallInt},
		{Name: "stones", Type: SmallInt},
		{Name: "stamina", Type: SmallInt},
	},
	// No secondary indexes, but the slice must exist: DDL generation
	// iterates it unconditionally.
	Indexed: []string{},
}

// registry maps table name to its schema. Built once at init; there is
// no dynamic discovery.
var registry = map[string]*Table{
	Card.Name:   Card,
	Player.Name: Player,
}

// Lookup returns the schema for the named table.
func Lookup(name string) (*Table, bool) {
	t, ok := registry[name]
	return t, ok
}

// Tables returns every registered table, sorted by name so callers that
// iterate (DDL bootstrap, tests) are deterministic.
func Tables() []*Table {
	out := make([]*Table, 0, len(registry))
	for _, t := range registry {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
