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
	"encoding/json"
	"fmt"
	"iter"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/c2FmZQ/storage"
)

// Player is one roster member of a team.
type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Number string `json:"number,omitempty"`
	Pos    string `json:"pos,omitempty"`
	// Goal is the player's personal season goal, shown on the portal.
	Goal string `json:"goal,omitempty"`
}

// TeamRoles defines the members of a team by their role (email addresses).
// Managers administer the team, scorers record games, players get the
// portal (read + own attendance/goal), spectators read only.
type TeamRoles struct {
	Managers   []string `json:"managers"`
	Scorers    []string `json:"scorers"`
	Players    []string `json:"players"`
	Spectators []string `json:"spectators"`
}

func (r *TeamRoles) normalize() {
	if r.Managers == nil {
		r.Managers = make([]string, 0)
	}
	if r.Scorers == nil {
		r.Scorers = make([]string, 0)
	}
	if r.Players == nil {
		r.Players = make([]string, 0)
	}
	if r.Spectators == nil {
		r.Spectators = make([]string, 0)
	}
}

// Team holds a club's roster, reference lists and permissions.
type Team struct {
	ID            string    `json:"id"`
	SchemaVersion int       `json:"schemaVersion"`
	Name          string    `json:"name,omitempty"`
	ShortName     string    `json:"shortName,omitempty"`
	Color         string    `json:"color,omitempty"`
	Roster        []Player  `json:"roster,omitempty"`
	OwnerID       string    `json:"ownerId"`
	Roles         TeamRoles `json:"roles,omitempty"`
	UpdatedAt     int64     `json:"updatedAt,omitempty"`

	// Reference lists offered when scheduling a game.
	Grounds   []string `json:"grounds,omitempty"`
	Leagues   []string `json:"leagues,omitempty"`
	Opponents []string `json:"opponents,omitempty"`

	// Status can be "active" (default/empty) or "deleted"
	Status string `json:"status,omitempty"`
	// DeletedAt is the timestamp (Unix Nano) when the team was deleted.
	DeletedAt int64 `json:"deletedAt,omitempty"`

	// LastRaftIndex tracks the index of the last Raft log entry applied
	// to this team. Used for idempotency during log replay.
	LastRaftIndex uint64 `json:"lastRaftIndex,omitempty"`
}

func (t *Team) normalize() {
	if t.SchemaVersion == 0 {
		t.SchemaVersion = SchemaVersionV1
	}
	if t.Roster == nil {
		t.Roster = make([]Player, 0)
	}
	t.Roles.normalize()
}

// FindPlayer returns the roster entry with the given id, or nil.
func (t *Team) FindPlayer(playerId string) *Player {
	for i := range t.Roster {
		if t.Roster[i].ID == playerId {
			return &t.Roster[i]
		}
	}
	return nil
}

// TeamStore manages team persistence to disk.
type TeamStore struct {
	DataDir string
	storage *storage.Storage
	mu      sync.Map // *sync.Mutex per teamId
	cache   sync.Map // latest marshaled []byte per teamId

	dirtyMu sync.Mutex
	dirty   map[string]bool
}

// NewTeamStore creates a new TeamStore.
func NewTeamStore(dataDir string, s *storage.Storage) *TeamStore {
	return &TeamStore{
		DataDir: dataDir,
		storage: s,
		dirty:   make(map[string]bool),
	}
}

func teamFilename(teamId string) string {
	return filepath.Join("teams", fmt.Sprintf("%s.json", url.PathEscape(teamId)))
}

// SaveTeam saves the team data atomically.
func (ts *TeamStore) SaveTeam(team *Team) error {
	m, _ := ts.mu.LoadOrStore(team.ID, &sync.Mutex{})
	mutex := m.(*sync.Mutex)

	mutex.Lock()
	defer mutex.Unlock()

	if err := ts.storage.SaveDataFile(teamFilename(team.ID), team); err != nil {
		return fmt.Errorf("storage.SaveDataFile: %w", err)
	}

	if jsonBytes, err := json.Marshal(team); err == nil {
		ts.cache.Store(team.ID, jsonBytes)
	}

	ts.dirtyMu.Lock()
	delete(ts.dirty, team.ID)
	ts.dirtyMu.Unlock()

	return nil
}

// SaveTeamInMemory updates the in-memory cache and marks the team as
// dirty. If forceSync is true, it writes to disk immediately.
func (ts *TeamStore) SaveTeamInMemory(team *Team, forceSync bool) error {
	jsonBytes, err := json.Marshal(team)
	if err != nil {
		return err
	}
	ts.cache.Store(team.ID, jsonBytes)

	if forceSync {
		return ts.SaveTeam(team)
	}

	ts.dirtyMu.Lock()
	ts.dirty[team.ID] = true
	ts.dirtyMu.Unlock()

	return nil
}

// Flush persists a specific team to disk if it is dirty.
func (ts *TeamStore) Flush(teamId string) error {
	ts.dirtyMu.Lock()
	if !ts.dirty[teamId] {
		ts.dirtyMu.Unlock()
		return nil
	}
	ts.dirtyMu.Unlock()

	val, ok := ts.cache.Load(teamId)
	if !ok {
		ts.dirtyMu.Lock()
		delete(ts.dirty, teamId)
		ts.dirtyMu.Unlock()
		return fmt.Errorf("team %s marked dirty but not found in cache", teamId)
	}

	var t Team
	if err := json.Unmarshal(val.([]byte), &t); err != nil {
		return fmt.Errorf("failed to unmarshal team from cache for flush: %w", err)
	}

	return ts.SaveTeam(&t)
}

// FlushAll persists all dirty teams to disk.
func (ts *TeamStore) FlushAll() error {
	ts.dirtyMu.Lock()
	dirtyIds := make([]string, 0, len(ts.dirty))
	for id := range ts.dirty {
		dirtyIds = append(dirtyIds, id)
	}
	ts.dirtyMu.Unlock()

	for _, id := range dirtyIds {
		if err := ts.Flush(id); err != nil {
			return fmt.Errorf("failed to flush team %s: %w", id, err)
		}
	}
	return nil
}

// LoadTeam loads the team data by ID.
func (ts *TeamStore) LoadTeam(teamId string) (*Team, error) {
	if val, ok := ts.cache.Load(teamId); ok {
		var t Team
		if err := json.Unmarshal(val.([]byte), &t); err == nil {
			t.normalize()
			return &t, nil
		}
		ts.cache.Delete(teamId)
	}

	var t Team
	err := ts.storage.ReadDataFile(teamFilename(teamId), &t)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("ReadDataFile: %w", err)
	}
	t.normalize()

	if jsonBytes, err := json.Marshal(&t); err == nil {
		ts.cache.Store(teamId, jsonBytes)
	}

	return &t, nil
}

// LoadTeamAsJSON is a helper for API handlers that just want bytes.
func (ts *TeamStore) LoadTeamAsJSON(teamId string) ([]byte, error) {
	t, err := ts.LoadTeam(teamId)
	if err != nil {
		return nil, err
	}
	return json.Marshal(t)
}

// TeamMetadata contains only the fields needed for indexing.
type TeamMetadata struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"ownerId"`
	Roles     TeamRoles `json:"roles"`
	UpdatedAt int64     `json:"updatedAt"`
	Status    string    `json:"status"`
	DeletedAt int64     `json:"deletedAt"`
}

// ListAllTeamIDs returns the IDs of all team files on disk.
func (ts *TeamStore) ListAllTeamIDs() ([]string, error) {
	teamsDir := filepath.Join(ts.DataDir, "teams")
	files, err := os.ReadDir(teamsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("could not read teams directory: %w", err)
	}
	var ids []string
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		if id, err := url.PathUnescape(strings.TrimSuffix(file.Name(), ".json")); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// RestoreTeam writes a team during snapshot restore.
func (ts *TeamStore) RestoreTeam(t *Team) error {
	return ts.SaveTeam(t)
}

// ListAllTeamMetadata returns an iterator over metadata for all teams.
func (ts *TeamStore) ListAllTeamMetadata() iter.Seq2[TeamMetadata, error] {
	return func(yield func(TeamMetadata, error) bool) {
		teamsDir := filepath.Join(ts.DataDir, "teams")
		files, err := os.ReadDir(teamsDir)
		if err != nil {
			if !os.IsNotExist(err) {
				yield(TeamMetadata{}, fmt.Errorf("could not read teams directory: %w", err))
			}
			return
		}

		for _, file := range files {
			if !file.IsDir() && strings.HasSuffix(file.Name(), ".json") {
				teamId, err := url.PathUnescape(strings.TrimSuffix(file.Name(), ".json"))
				if err != nil {
					continue
				}

				t, err := ts.LoadTeam(teamId)
				if err != nil {
					continue
				}

				if !yield(TeamMetadata{
					ID:        t.ID,
					Name:      t.Name,
					OwnerID:   t.OwnerID,
					Roles:     t.Roles,
					UpdatedAt: t.UpdatedAt,
					Status:    t.Status,
					DeletedAt: t.DeletedAt,
				}, nil) {
					return
				}
			}
		}
	}
}

// ListAllTeams returns an iterator over all teams in the teams directory.
func (ts *TeamStore) ListAllTeams() iter.Seq2[*Team, error] {
	return func(yield func(*Team, error) bool) {
		teamsDir := filepath.Join(ts.DataDir, "teams")
		files, err := os.ReadDir(teamsDir)
		if err != nil {
			if !os.IsNotExist(err) {
				yield(nil, fmt.Errorf("could not read teams directory: %w", err))
			}
			return
		}

		for _, file := range files {
			if !file.IsDir() && strings.HasSuffix(file.Name(), ".json") {
				teamId, err := url.PathUnescape(strings.TrimSuffix(file.Name(), ".json"))
				if err != nil {
					continue
				}

				t, err := ts.LoadTeam(teamId)
				if err != nil {
					log.Printf("Warning: could not load team '%s': %v", teamId, err)
					continue
				}
				if !yield(t, nil) {
					return
				}
			}
		}
	}
}

// DeleteTeam deletes a specific team by overwriting it with a tombstone.
func (ts *TeamStore) DeleteTeam(teamId string) error {
	t, err := ts.LoadTeam(teamId)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	m, _ := ts.mu.LoadOrStore(teamId, &sync.Mutex{})
	mutex := m.(*sync.Mutex)

	mutex.Lock()
	defer mutex.Unlock()

	tombstone := &Team{
		ID:            teamId,
		SchemaVersion: SchemaVersionV1,
		OwnerID:       t.OwnerID,
		Status:        "deleted",
		DeletedAt:     time.Now().UnixNano(),
	}

	if err := ts.storage.SaveDataFile(teamFilename(teamId), tombstone); err != nil {
		return fmt.Errorf("storage.SaveDataFile (tombstone): %w", err)
	}

	if jsonBytes, err := json.Marshal(tombstone); err == nil {
		ts.cache.Store(teamId, jsonBytes)
	}
	return nil
}

// PurgeTeam permanently deletes the team file.
func (ts *TeamStore) PurgeTeam(teamId string) error {
	m, _ := ts.mu.LoadOrStore(teamId, &sync.Mutex{})
	mutex := m.(*sync.Mutex)

	mutex.Lock()
	defer mutex.Unlock()

	ts.cache.Delete(teamId)

	fullPath := filepath.Join(ts.DataDir, teamFilename(teamId))

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil // Already gone
		}
		return fmt.Errorf("could not purge team file: %w", err)
	}
	return nil
}
