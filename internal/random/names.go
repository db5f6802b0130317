package random

import "strings"

// builtinNames backs the name pool when a tutorial configures no name
// dictionary. Tutorials with many puzzles should ship a larger dictionary.
var builtinNames = []string{
	"acorn", "alloy", "amber", "anchor", "anvil", "apple", "arrow", "aspen",
	"atlas", "badge", "bamboo", "barley", "basil", "beacon", "birch", "bishop",
	"bramble", "brass", "breeze", "brook", "bucket", "burrow", "cabin", "candle",
	"canyon", "carbon", "cedar", "chalk", "cinder", "cliff", "clover", "cobalt",
	"comet", "copper", "coral", "cotton", "cradle", "crane", "crater", "cricket",
	"crystal", "cypress", "dagger", "daisy", "delta", "drift", "ember", "engine",
	"fable", "falcon", "fennel", "ferry", "fiddle", "flint", "fossil", "foxglove",
	"garnet", "gazette", "ginger", "glacier", "granite", "grove", "harbor", "hazel",
	"heather", "hickory", "hollow", "ivory", "jasper", "juniper", "kettle", "lagoon",
	"lantern", "larch", "ledger", "lilac", "linen", "lotus", "magnet", "mallow",
	"mantle", "maple", "marble", "meadow", "mercury", "mesa", "mill", "mineral",
	"mirror", "monsoon", "mortar", "mosaic", "moss", "mustard", "myrtle", "nectar",
	"nickel", "nimbus", "oak", "oasis", "obsidian", "olive", "onyx", "orchard",
	"osprey", "otter", "paddle", "pebble", "pepper", "pigeon", "pine", "pistachio",
	"plume", "pond", "poplar", "prairie", "prism", "pulley", "quarry", "quartz",
	"quill", "raven", "reed", "ridge", "ripple", "river", "rocket", "rowan",
	"saffron", "sage", "sandal", "sapphire", "satchel", "shale", "shutter", "sierra",
	"silver", "slate", "sorrel", "sparrow", "spruce", "summit", "sundial", "tallow",
	"tamarind", "thicket", "thimble", "timber", "topaz", "trellis", "tulip", "tundra",
	"turnip", "valley", "velvet", "violet", "walnut", "wharf", "willow", "zephyr",
}

// DefaultNameDictionary returns the built-in name dictionary in the same
// newline-separated format a dictionary file uses.
func DefaultNameDictionary() string {
	return strings.Join(builtinNames, "\n") + "\n"
}
