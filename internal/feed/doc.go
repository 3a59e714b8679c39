// Package feed reads raw Trello actions.
//
// Every reader produces Batches: groups of raw action payloads ordered by
// date. Pull sources (FileSource, Poller, DirSource) implement Source; the
// webhook receiver pushes batches through a callback instead.
package feed
