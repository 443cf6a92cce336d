// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"log"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const tombstoneTTL = 30 * 24 * time.Hour
const gcInterval = 12 * time.Hour

// Registry is the in-memory index of games and teams. It supports the
// listing and lookup endpoints without scanning (or decrypting) every
// file, and garbage-collects expired tombstones.
type Registry struct {
	gameStore *GameStore
	teamStore *TeamStore

	mu sync.RWMutex

	// Metadata cache; also acts as tombstone cache.
	gameMetadata *lru.Cache[string, GameMetadata]
	teamMetadata *lru.Cache[string, TeamMetadata]

	// teamGames maps teamId -> set of gameIds.
	teamGames map[string]map[string]bool

	gameCount int
	teamCount int

	// Access policy cache, replicated through the raft log.
	accessPolicy *UserAccessPolicy

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewRegistry creates a new Registry and builds the team->games index
// by scanning metadata sidecars.
func NewRegistry(gs *GameStore, ts *TeamStore) *Registry {
	gmCache, _ := lru.New[string, GameMetadata](5000)
	tmCache, _ := lru.New[string, TeamMetadata](2000)

	r := &Registry{
		gameStore:    gs,
		teamStore:    ts,
		gameMetadata: gmCache,
		teamMetadata: tmCache,
		teamGames:    make(map[string]map[string]bool),
		stopChan:     make(chan struct{}),
	}

	r.Rebuild()
	r.StartGC()

	return r
}

// UpdateAccessPolicy updates the cached access policy.
func (r *Registry) UpdateAccessPolicy(policy *UserAccessPolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accessPolicy = policy
}

// GetAccessPolicy returns the current access policy.
func (r *Registry) GetAccessPolicy() *UserAccessPolicy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.accessPolicy
}

// StartGC starts the background tombstone garbage collector.
func (r *Registry) StartGC() {
	go func() {
		ticker := time.NewTicker(gcInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.PurgeOldTombstones()
			case <-r.stopChan:
				return
			}
		}
	}()
}

// StopGC stops the background tombstone garbage collector.
func (r *Registry) StopGC() {
	r.stopOnce.Do(func() {
		close(r.stopChan)
	})
}

// PurgeOldTombstones permanently deletes expired tombstones from disk.
func (r *Registry) PurgeOldTombstones() {
	log.Println("Registry: Garbage collection of expired tombstones started...")
	now := time.Now().UnixNano()
	cutoff := now - tombstoneTTL.Nanoseconds()

	var purgedTeams int
	var purgedGames int

	for t, err := range r.teamStore.ListAllTeamMetadata() {
		if err == nil && t.Status == "deleted" && t.DeletedAt > 0 && t.DeletedAt < cutoff {
			if err := r.teamStore.PurgeTeam(t.ID); err == nil {
				r.teamMetadata.Remove(t.ID)
				purgedTeams++
			}
		}
	}

	for g, err := range r.gameStore.ListAllGameMetadata() {
		if err == nil && g.DeletedAt > 0 && g.DeletedAt < cutoff {
			if err := r.gameStore.PurgeGame(g.ID); err == nil {
				r.gameMetadata.Remove(g.ID)
				purgedGames++
			}
		}
	}

	if purgedTeams > 0 || purgedGames > 0 {
		log.Printf("Registry: GC complete. Purged %d games, %d teams.", purgedGames, purgedTeams)
	}
}

// Rebuild reconstructs the index by scanning the underlying stores.
func (r *Registry) Rebuild() {
	log.Println("Registry: Rebuild started...")

	var localGameCount int
	var localTeamCount int
	teamGames := make(map[string]map[string]bool)

	for t, err := range r.teamStore.ListAllTeamMetadata() {
		if err != nil {
			log.Printf("Registry: Error listing teams: %v", err)
			break
		}
		r.teamMetadata.Add(t.ID, t)
		if t.Status != "deleted" {
			localTeamCount++
		}
	}

	for g, err := range r.gameStore.ListAllGameMetadata() {
		if err != nil {
			log.Printf("Registry: Error listing games: %v", err)
			break
		}
		r.gameMetadata.Add(g.ID, g)
		if g.DeletedAt > 0 {
			continue
		}
		localGameCount++
		if g.TeamID != "" {
			if teamGames[g.TeamID] == nil {
				teamGames[g.TeamID] = make(map[string]bool)
			}
			teamGames[g.TeamID][g.ID] = true
		}
	}

	r.mu.Lock()
	r.gameCount = localGameCount
	r.teamCount = localTeamCount
	r.teamGames = teamGames
	r.mu.Unlock()

	log.Printf("Registry: Rebuild complete. Indexed %d games, %d teams.", localGameCount, localTeamCount)
}

// UpdateGame indexes a saved game.
func (r *Registry) UpdateGame(g *Game) {
	meta := gameMeta(g)
	isNew := true
	if old, ok := r.gameMetadata.Peek(g.ID); ok && old.DeletedAt == 0 {
		isNew = false
	}
	r.gameMetadata.Add(g.ID, meta)

	r.mu.Lock()
	defer r.mu.Unlock()
	if g.TeamID != "" {
		if r.teamGames[g.TeamID] == nil {
			r.teamGames[g.TeamID] = make(map[string]bool)
		}
		r.teamGames[g.TeamID][g.ID] = true
	}
	if isNew {
		r.gameCount++
	}
}

// UpdateTeam indexes a saved team.
func (r *Registry) UpdateTeam(t *Team) {
	meta := TeamMetadata{
		ID: t.ID, Name: t.Name, OwnerID: t.OwnerID, Roles: t.Roles,
		UpdatedAt: t.UpdatedAt, Status: t.Status, DeletedAt: t.DeletedAt,
	}
	isNew := true
	if old, ok := r.teamMetadata.Peek(t.ID); ok && old.Status != "deleted" {
		isNew = false
	}
	r.teamMetadata.Add(t.ID, meta)

	if t.Status != "deleted" && isNew {
		r.mu.Lock()
		r.teamCount++
		r.mu.Unlock()
	}
}

// DeleteGame marks a game deleted in the index.
func (r *Registry) DeleteGame(gameId string) {
	meta, ok := r.gameMetadata.Peek(gameId)
	if ok && meta.DeletedAt > 0 {
		return
	}

	r.mu.Lock()
	r.gameCount--
	if ok && meta.TeamID != "" && r.teamGames[meta.TeamID] != nil {
		delete(r.teamGames[meta.TeamID], gameId)
	}
	r.mu.Unlock()

	r.gameMetadata.Add(gameId, GameMetadata{
		ID: gameId, DeletedAt: time.Now().UnixNano(),
	})
}

// DeleteTeam marks a team deleted in the index.
func (r *Registry) DeleteTeam(teamId string) {
	if m, ok := r.teamMetadata.Peek(teamId); ok && m.Status == "deleted" {
		return
	}

	r.mu.Lock()
	r.teamCount--
	delete(r.teamGames, teamId)
	r.mu.Unlock()

	r.teamMetadata.Add(teamId, TeamMetadata{
		ID: teamId, Status: "deleted", DeletedAt: time.Now().UnixNano(),
	})
}

func (r *Registry) getGameMeta(id string) (GameMetadata, bool) {
	if m, ok := r.gameMetadata.Get(id); ok {
		return m, true
	}
	g, err := r.gameStore.LoadGame(id)
	if err != nil {
		return GameMetadata{}, false
	}
	m := gameMeta(g)
	r.gameMetadata.Add(id, m)
	return m, true
}

func (r *Registry) getTeamMeta(id string) (TeamMetadata, bool) {
	if m, ok := r.teamMetadata.Get(id); ok {
		return m, true
	}
	t, err := r.teamStore.LoadTeam(id)
	if err != nil {
		return TeamMetadata{}, false
	}
	m := TeamMetadata{
		ID: t.ID, Name: t.Name, OwnerID: t.OwnerID, Roles: t.Roles,
		UpdatedAt: t.UpdatedAt, Status: t.Status, DeletedAt: t.DeletedAt,
	}
	r.teamMetadata.Add(id, m)
	return m, true
}

// IsGameDeleted reports whether the game is a tombstone.
func (r *Registry) IsGameDeleted(id string) bool {
	if m, ok := r.getGameMeta(id); ok {
		return m.DeletedAt > 0
	}
	return false
}

// IsTeamDeleted reports whether the team is a tombstone.
func (r *Registry) IsTeamDeleted(id string) bool {
	if m, ok := r.getTeamMeta(id); ok {
		return m.Status == "deleted"
	}
	return false
}

// GameExists reports whether the game exists and is not deleted.
func (r *Registry) GameExists(id string) bool {
	m, ok := r.getGameMeta(id)
	return ok && m.DeletedAt == 0
}

// TeamExists reports whether the team exists and is not deleted.
func (r *Registry) TeamExists(id string) bool {
	m, ok := r.getTeamMeta(id)
	return ok && m.Status != "deleted"
}

// GameTeamID returns the teamId a game belongs to, or "".
func (r *Registry) GameTeamID(gameId string) string {
	if m, ok := r.getGameMeta(gameId); ok {
		return m.TeamID
	}
	return ""
}

func (r *Registry) CountTotalGames() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gameCount
}

func (r *Registry) CountTotalTeams() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.teamCount
}

// ListGames returns metadata for a team's games, optionally filtered by
// season (year prefix of the start time), newest first.
func (r *Registry) ListGames(teamId, season string) []GameMetadata {
	r.mu.RLock()
	ids := make([]string, 0, len(r.teamGames[teamId]))
	for id := range r.teamGames[teamId] {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	var out []GameMetadata
	for _, id := range ids {
		m, ok := r.getGameMeta(id)
		if !ok || m.DeletedAt > 0 {
			continue
		}
		if season != "" && (len(m.Start) < 4 || m.Start[:4] != season) {
			continue
		}
		out = append(out, m)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start > out[j].Start
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// ListTeams returns metadata for the teams the user belongs to in any
// role. An empty userId lists nothing.
func (r *Registry) ListTeams(userId string) []TeamMetadata {
	userId = normalizeEmail(userId)
	if userId == "" {
		return nil
	}

	var out []TeamMetadata
	for t, err := range r.teamStore.ListAllTeamMetadata() {
		if err != nil {
			log.Printf("Registry: Error listing teams: %v", err)
			break
		}
		if t.Status == "deleted" {
			continue
		}
		if teamRoleLevel(userId, t.OwnerID, t.Roles) > AccessNone {
			out = append(out, t)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// FindPreviousGame returns the most recent game of the team that started
// before the given time and has been played (any status). Used to copy a
// lineup into a new game.
func (r *Registry) FindPreviousGame(teamId, before string) (GameMetadata, bool) {
	var best GameMetadata
	found := false
	for _, m := range r.ListGames(teamId, "") {
		if m.Status == nil {
			continue
		}
		if before != "" && m.Start >= before {
			continue
		}
		if !found || m.Start > best.Start {
			best = m
			found = true
		}
	}
	return best, found
}

// HasTeamAccess reports whether the user has at least read access to
// the team, using cached metadata only.
func (r *Registry) HasTeamAccess(userId, teamId string) bool {
	m, ok := r.getTeamMeta(teamId)
	if !ok || m.Status == "deleted" {
		return false
	}
	return teamRoleLevel(normalizeEmail(userId), m.OwnerID, m.Roles) > AccessNone
}

// HasGameAccess reports whether the user has at least read access to
// the game through its team.
func (r *Registry) HasGameAccess(userId, gameId string) bool {
	teamId := r.GameTeamID(gameId)
	if teamId == "" {
		return false
	}
	return r.HasTeamAccess(userId, teamId)
}

// CountOwnedTeams counts the teams the user owns. Used for quota
// enforcement.
func (r *Registry) CountOwnedTeams(userId string) int {
	userId = normalizeEmail(userId)
	if userId == "" {
		return 0
	}
	count := 0
	for t, err := range r.teamStore.ListAllTeamMetadata() {
		if err != nil {
			log.Printf("Registry: Error listing teams: %v", err)
			break
		}
		if t.Status != "deleted" && normalizeEmail(t.OwnerID) == userId {
			count++
		}
	}
	return count
}

// CountOwnedGames counts the games of the teams the user owns. Used
// for quota enforcement.
func (r *Registry) CountOwnedGames(userId string) int {
	userId = normalizeEmail(userId)
	if userId == "" {
		return 0
	}
	count := 0
	for t, err := range r.teamStore.ListAllTeamMetadata() {
		if err != nil {
			log.Printf("Registry: Error listing teams: %v", err)
			break
		}
		if t.Status == "deleted" || normalizeEmail(t.OwnerID) != userId {
			continue
		}
		r.mu.RLock()
		count += len(r.teamGames[t.ID])
		r.mu.RUnlock()
	}
	return count
}
