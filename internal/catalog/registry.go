package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	types "github.com/yungbote/progression-backend/internal/domain"
	"github.com/yungbote/progression-backend/internal/engine/levels"
	"github.com/yungbote/progression-backend/internal/engine/streak"
	"github.com/yungbote/progression-backend/internal/platform/dbctx"
	"github.com/yungbote/progression-backend/internal/platform/logger"
)

// Store persists catalog bundles.
type Store interface {
	ReplaceAll(dbc dbctx.Context, b *types.CatalogBundle) error
	LoadAll(dbc dbctx.Context) (*types.CatalogBundle, error)
}

// Snapshot is an immutable view of the catalog. Callers must not mutate
// anything reachable from it.
type Snapshot struct {
	LoadedAt time.Time

	Levels      levels.Table
	StreakTable []streak.Reward

	games      map[string]*types.GameConfig
	skills     map[string]*types.Skill
	skillOrder []string
	badges     []*types.Badge
	badgeByID  map[string]*types.Badge
	templates  []*types.MissionTemplate
	items      []*types.MarketplaceItem
	itemByID   map[string]*types.MarketplaceItem
}

// NewSnapshot indexes a validated bundle.
func NewSnapshot(b *types.CatalogBundle) (*Snapshot, error) {
	if b == nil {
		b = &types.CatalogBundle{}
	}
	s := &Snapshot{
		LoadedAt:  time.Now().UTC(),
		games:     map[string]*types.GameConfig{},
		skills:    map[string]*types.Skill{},
		badgeByID: map[string]*types.Badge{},
		itemByID:  map[string]*types.MarketplaceItem{},
	}

	if len(b.Levels) > 0 {
		t, err := levels.NewTable(levelThresholds(b.Levels))
		if err != nil {
			return nil, fmt.Errorf("levels: %w", err)
		}
		s.Levels = t
	} else {
		s.Levels = levels.DefaultTable()
	}
	if len(b.StreakRewards) > 0 {
		s.StreakTable = streakTable(b.StreakRewards)
	} else {
		s.StreakTable = streak.DefaultTable()
	}

	for _, g := range b.Games {
		if g.IsActive {
			s.games[g.GameType] = g
		}
	}
	order, err := SkillOrder(b.Skills)
	if err != nil {
		return nil, err
	}
	s.skillOrder = order
	for _, sk := range b.Skills {
		s.skills[sk.ID] = sk
	}
	for _, bd := range b.Badges {
		if !bd.IsActive {
			continue
		}
		s.badges = append(s.badges, bd)
		s.badgeByID[bd.ID] = bd
	}
	sort.Slice(s.badges, func(i, j int) bool { return s.badges[i].ID < s.badges[j].ID })
	for _, m := range b.Missions {
		if m.IsActive {
			s.templates = append(s.templates, m)
		}
	}
	sort.Slice(s.templates, func(i, j int) bool { return s.templates[i].ID < s.templates[j].ID })
	for _, it := range b.Items {
		s.itemByID[it.ID] = it
		if it.IsActive {
			s.items = append(s.items, it)
		}
	}
	sort.Slice(s.items, func(i, j int) bool { return s.items[i].ID < s.items[j].ID })
	return s, nil
}

func (s *Snapshot) Game(gameType string) *types.GameConfig { return s.games[gameType] }

func (s *Snapshot) Skill(id string) *types.Skill { return s.skills[id] }

// SkillsInOrder returns skills parents-first.
func (s *Snapshot) SkillsInOrder() []*types.Skill {
	out := make([]*types.Skill, 0, len(s.skillOrder))
	for _, id := range s.skillOrder {
		out = append(out, s.skills[id])
	}
	return out
}

func (s *Snapshot) Badge(id string) *types.Badge { return s.badgeByID[id] }

// Badges returns active badges, optionally narrowed to kinds.
func (s *Snapshot) Badges(kinds ...types.BadgeKind) []*types.Badge {
	if len(kinds) == 0 {
		return s.badges
	}
	want := map[types.BadgeKind]bool{}
	for _, k := range kinds {
		want[k] = true
	}
	var out []*types.Badge
	for _, b := range s.badges {
		if want[b.Kind] {
			out = append(out, b)
		}
	}
	return out
}

func (s *Snapshot) Templates(period string) []*types.MissionTemplate {
	var out []*types.MissionTemplate
	for _, t := range s.templates {
		if t.Period == period {
			out = append(out, t)
		}
	}
	return out
}

// Item looks up any item, active or not, so owned items stay resolvable.
func (s *Snapshot) Item(id string) *types.MarketplaceItem { return s.itemByID[id] }

func (s *Snapshot) ActiveItems() []*types.MarketplaceItem { return s.items }

// Registry serves the current snapshot and swaps it atomically on reload.
type Registry struct {
	store Store
	log   *logger.Logger
	snap  atomic.Pointer[Snapshot]
}

func NewRegistry(store Store, baseLog *logger.Logger) *Registry {
	r := &Registry{store: store, log: baseLog.With("component", "CatalogRegistry")}
	empty, _ := NewSnapshot(nil)
	r.snap.Store(empty)
	return r
}

func (r *Registry) Snapshot() *Snapshot { return r.snap.Load() }

// Refresh rebuilds the snapshot from the store.
func (r *Registry) Refresh(ctx context.Context) error {
	b, err := r.store.LoadAll(dbctx.Of(ctx))
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	s, err := NewSnapshot(b)
	if err != nil {
		return err
	}
	r.snap.Store(s)
	r.log.Info("catalog loaded",
		"games", len(s.games),
		"skills", len(s.skills),
		"badges", len(s.badges),
		"missions", len(s.templates),
		"items", len(s.items),
	)
	return nil
}

// Seed validates and persists a bundle, then refreshes.
func (r *Registry) Seed(ctx context.Context, b *types.CatalogBundle) error {
	if err := Validate(b); err != nil {
		return err
	}
	if err := r.store.ReplaceAll(dbctx.Of(ctx), b); err != nil {
		return fmt.Errorf("persist catalog: %w", err)
	}
	return r.Refresh(ctx)
}

// Reload reads path (or the embedded default), seeds it and refreshes.
func (r *Registry) Reload(ctx context.Context, path string) error {
	b, err := Load(path)
	if err != nil {
		return err
	}
	return r.Seed(ctx, b)
}

// Empty reports whether nothing has been seeded yet.
func (s *Snapshot) Empty() bool {
	return len(s.games) == 0 && len(s.badges) == 0 && len(s.templates) == 0 && len(s.items) == 0
}

// Bootstrap loads the catalog at boot. An explicit path is always seeded;
// otherwise the stored catalog is used and the embedded default seeds an
// empty database.
func (r *Registry) Bootstrap(ctx context.Context, path string) error {
	if strings.TrimSpace(path) != "" {
		return r.Reload(ctx, path)
	}
	if err := r.Refresh(ctx); err != nil {
		return err
	}
	if r.Snapshot().Empty() {
		r.log.Info("catalog empty; seeding embedded default")
		return r.Reload(ctx, "")
	}
	return nil
}
