// Package statdefs is the registry of known stat ids.
package statdefs

import (
	"sort"
	"strconv"
)

// Category groups related stats.
type Category string

// Stat categories.
const (
	Passing   Category = "passing"
	Rushing   Category = "rushing"
	Receiving Category = "receiving"
	Returns   Category = "returns"
	Misc      Category = "misc"
	Kicking   Category = "kicking"
	Defense   Category = "defense"
)

// Definition describes one stat id.
type Definition struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
	// Negative stats always score at or below zero.
	Negative bool `json:"negative"`
}

var registry = map[string]Definition{}

func def(id int, name string, cat Category, negative bool) {
	key := strconv.Itoa(id)
	registry[key] = Definition{ID: key, Name: name, Category: cat, Negative: negative}
}

func init() {
	def(1, "Pass Att", Passing, false)
	def(2, "Comp", Passing, false)
	def(3, "Inc", Passing, false)
	def(4, "Pass Yds", Passing, false)
	def(5, "Pass TD", Passing, false)
	def(6, "Int", Passing, true)
	def(7, "Sacks", Passing, true)

	def(8, "Rush Att", Rushing, false)
	def(9, "Rush Yds", Rushing, false)
	def(10, "Rush TD", Rushing, false)

	def(11, "Rec", Receiving, false)
	def(12, "Rec Yds", Receiving, false)
	def(13, "Rec TD", Receiving, false)
	def(78, "Targets", Receiving, false)

	def(14, "Ret Yds", Returns, false)
	def(15, "Ret TD", Returns, false)

	def(16, "2-PT", Misc, false)
	def(17, "Fum", Misc, true)
	def(18, "Fum Lost", Misc, true)
	def(57, "Off Fum Ret TD", Misc, false)
	def(58, "Pick Six Thrown", Misc, true)

	def(19, "FG 0-19", Kicking, false)
	def(20, "FG 20-29", Kicking, false)
	def(21, "FG 30-39", Kicking, false)
	def(22, "FG 40-49", Kicking, false)
	def(23, "FG 50+", Kicking, false)
	def(24, "FGM 0-19", Kicking, true)
	def(25, "FGM 20-29", Kicking, true)
	def(26, "FGM 30-39", Kicking, true)
	def(27, "FGM 40-49", Kicking, true)
	def(28, "FGM 50+", Kicking, true)
	def(29, "PAT Made", Kicking, false)
	def(30, "PAT Miss", Kicking, true)

	def(31, "Pts Allow", Defense, false)
	def(32, "Sack", Defense, false)
	def(33, "Int", Defense, false)
	def(34, "Fum Rec", Defense, false)
	def(35, "TD", Defense, false)
	def(36, "Safe", Defense, false)
	def(37, "Blk Kick", Defense, false)
}

// Lookup returns the definition of id.
func Lookup(id string) (Definition, bool) {
	d, ok := registry[id]
	return d, ok
}

// Name returns the display name of id, or id itself when unknown.
func Name(id string) string {
	if d, ok := registry[id]; ok {
		return d.Name
	}
	return id
}

// IsNegative reports whether id is a negative-flagged stat.
func IsNegative(id string) bool {
	return registry[id].Negative
}

// All returns every definition ordered by numeric id.
func All() []Definition {
	out := make([]Definition, 0, len(registry))
	for _, d := range registry {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return Less(out[i].ID, out[j].ID) })
	return out
}

// Less orders stat ids numerically, falling back to string order.
func Less(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a < b
}
