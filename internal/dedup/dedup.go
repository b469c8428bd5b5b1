// Package dedup odsiewa duplikaty i "duchy" wariantów zanim trafią do magazynu.
//
// Kolejność dla jednego rodzica:
//  1. duplikaty id w jednej odpowiedzi API
//  2. status publish (i visible, jeśli Woo je przysłało)
//  3. globalny zbiór z całego przebiegu: wariant już widziany pod innym
//     rodzicem to kolizja (ostrzeżenie), pod tym samym - powtórne pobranie
package dedup

import (
	"github.com/bartek5186/woo2mag/internal/integrations"
	"github.com/rs/zerolog"
)

type Options struct {
	RequirePublished bool
	RequireVisible   bool
	Global           bool
}

// Poziomy ścisłości jak w skryptach importu
func Basic() Options       { return Options{} }
func StatusAware() Options { return Options{RequirePublished: true, RequireVisible: true} }
func Strict() Options      { return Options{RequirePublished: true, RequireVisible: true, Global: true} }

type Stats struct {
	TotalSeen         int `json:"totalSeen"`
	UniqueKept        int `json:"uniqueKept"`
	DuplicatesDropped int `json:"duplicatesDropped"`
	GhostsDropped     int `json:"ghostsDropped"`
	Collisions        int `json:"collisions"`
	Invalid           int `json:"invalid"`
}

func (s *Stats) add(o Stats) {
	s.TotalSeen += o.TotalSeen
	s.UniqueKept += o.UniqueKept
	s.DuplicatesDropped += o.DuplicatesDropped
	s.GhostsDropped += o.GhostsDropped
	s.Collisions += o.Collisions
	s.Invalid += o.Invalid
}

type Pair struct {
	Parent    integrations.RemoteProduct
	Variation integrations.RemoteVariation
}

type Collision struct {
	VariationID   int64
	FirstParentID int64
	ParentID      int64
}

type Ghost struct {
	VariationID int64
	ParentID    int64
	Status      string
}

// Result dla jednego rodzica
type Result struct {
	ParentID   int64
	Pairs      []Pair
	Stats      Stats
	Collisions []Collision
	Ghosts     []Ghost
	Duplicates []int64
}

// Snapshot - stan filtra zapisywany w checkpoincie przebiegu
type Snapshot struct {
	Seen  map[int64]int64 `json:"seen,omitempty"` // variationID -> pierwszy parentID
	Stats Stats           `json:"stats"`
}

type Filter struct {
	log   zerolog.Logger
	opts  Options
	seen  map[int64]int64
	stats Stats
}

func New(log zerolog.Logger, opts Options) *Filter {
	return &Filter{log: log, opts: opts, seen: map[int64]int64{}}
}

// Restore odtwarza filtr z checkpointu (kolejne wywołanie continue)
func Restore(log zerolog.Logger, opts Options, snap Snapshot) *Filter {
	f := New(log, opts)
	for k, v := range snap.Seen {
		f.seen[k] = v
	}
	f.stats = snap.Stats
	return f
}

func (f *Filter) Snapshot() Snapshot {
	seen := make(map[int64]int64, len(f.seen))
	for k, v := range f.seen {
		seen[k] = v
	}
	return Snapshot{Seen: seen, Stats: f.stats}
}

func (f *Filter) Stats() Stats { return f.stats }

// Apply filtruje warianty jednego rodzica, zachowując kolejność z API
func (f *Filter) Apply(parent integrations.RemoteProduct, variations []integrations.RemoteVariation) Result {
	res := Result{ParentID: parent.ID}
	local := make(map[int64]struct{}, len(variations))

	for _, v := range variations {
		res.Stats.TotalSeen++

		if v.ID <= 0 {
			res.Stats.Invalid++
			continue
		}
		if _, dup := local[v.ID]; dup {
			res.Stats.DuplicatesDropped++
			res.Duplicates = append(res.Duplicates, v.ID)
			continue
		}
		local[v.ID] = struct{}{}

		if (f.opts.RequirePublished && !v.IsPublished()) || (f.opts.RequireVisible && !v.IsVisible()) {
			res.Stats.GhostsDropped++
			res.Ghosts = append(res.Ghosts, Ghost{VariationID: v.ID, ParentID: parent.ID, Status: v.Status})
			continue
		}

		if f.opts.Global {
			if first, ok := f.seen[v.ID]; ok {
				res.Stats.DuplicatesDropped++
				if first != parent.ID {
					res.Stats.Collisions++
					res.Collisions = append(res.Collisions, Collision{VariationID: v.ID, FirstParentID: first, ParentID: parent.ID})
					f.log.Warn().
						Int64("variation_id", v.ID).
						Int64("first_parent_id", first).
						Int64("parent_id", parent.ID).
						Msg("variation returned under more than one parent, keeping first")
				}
				continue
			}
			f.seen[v.ID] = parent.ID
		}

		v.ParentID = parent.ID
		res.Pairs = append(res.Pairs, Pair{Parent: parent, Variation: v})
		res.Stats.UniqueKept++
	}

	f.stats.add(res.Stats)
	if res.Stats.TotalSeen != res.Stats.UniqueKept {
		f.log.Debug().
			Int64("parent_id", parent.ID).
			Int("seen", res.Stats.TotalSeen).
			Int("kept", res.Stats.UniqueKept).
			Int("duplicates", res.Stats.DuplicatesDropped).
			Int("ghosts", res.Stats.GhostsDropped).
			Msg("variations filtered")
	}
	return res
}
