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

// BattingResult is one occupancy of a batting order slot. BattingIndex is
// the insertion order of the row (contiguous, strictly increasing across
// the whole lineup); BattingOrder is the 1..N slot the occupant bats in.
// Positions is the occupant's position history; the last entry is current.
type BattingResult struct {
	BattingIndex int      `json:"battingIndex"`
	BattingOrder int      `json:"battingOrder"`
	PlayerID     string   `json:"playerId"`
	Positions    []string `json:"positions"`
	Run          int      `json:"run"`
	Steal        int      `json:"steal"`
	StealMiss    int      `json:"stealMiss"`
	FieldError   int      `json:"fieldError"`
}

// CurrentPosition returns the occupant's latest position, or "".
func (b *BattingResult) CurrentPosition() string {
	if len(b.Positions) == 0 {
		return ""
	}
	return b.Positions[len(b.Positions)-1]
}

// BattingDetail records one turn through the order for one occupant.
// InningIndex is a zero-based pointer into the game's innings array.
// Result may be empty: the turn came around but no plate appearance
// happened (skipped). Absence of a row means the slot never came up.
type BattingDetail struct {
	BattingIndex int    `json:"battingIndex"`
	InningIndex  int    `json:"inningIndex"`
	Result       string `json:"result,omitempty"`
	Direction    string `json:"direction,omitempty"`
	RBI          int    `json:"rbi,omitempty"`
}

// PitchingResult is one pitching appearance. PitchingOrder is the 1..N
// appearance order and is unique within a game.
type PitchingResult struct {
	PitchingOrder int    `json:"pitchingOrder"`
	PlayerID      string `json:"playerId"`
	Innings       int    `json:"innings"`
	Outs          int    `json:"outs"`
	Runs          int    `json:"runs"`
	Strikeouts    int    `json:"strikeouts"`
	Walks         int    `json:"walks"`
	HitByPitch    int    `json:"hitByPitch"`
	Hits          int    `json:"hits"`
	HomeRuns      int    `json:"homeRuns"`
	Decision      string `json:"decision,omitempty"`
	Hold          bool   `json:"hold,omitempty"`
	Save          bool   `json:"save,omitempty"`
}

// Game is the full game state as stored on disk: the schedule row plus
// every batting, detail and pitching row. Keeping all of it in one file
// makes multi-row mutations (lineup rewrites, substitution index shifts)
// a single atomic write.
type Game struct {
	ID            string `json:"id"`
	SchemaVersion int    `json:"schemaVersion"`
	TeamID        string `json:"teamId"`
	Start         string `json:"start,omitempty"` // RFC3339
	Opponent      string `json:"opponent,omitempty"`
	Ground        string `json:"ground,omitempty"`
	League        string `json:"league,omitempty"`
	Comment       string `json:"comment,omitempty"`

	// Status is nil until the game starts, then one of the Status*
	// constants. StatusInProgress is 0, so a pointer keeps "not yet
	// played" distinct from "in progress".
	Status *int `json:"status,omitempty"`

	IsBattingFirst bool `json:"isBattingFirst"`
	NowInning      int  `json:"nowInning,omitempty"`
	NowIsTop       bool `json:"nowIsTop"`

	// Parallel per-inning arrays. Innings holds the displayed labels
	// (renumbering is allowed), TopPoints/BottomPoints the runs scored
	// in each half.
	Innings      []int `json:"innings,omitempty"`
	TopPoints    []int `json:"topPoints,omitempty"`
	BottomPoints []int `json:"bottomPoints,omitempty"`

	Batting  []BattingResult  `json:"batting,omitempty"`
	Details  []BattingDetail  `json:"details,omitempty"`
	Pitching []PitchingResult `json:"pitching,omitempty"`

	// Attendance maps playerId to "yes"|"no"|"maybe".
	Attendance map[string]string `json:"attendance,omitempty"`

	// Stats holds the derived box score, refreshed synchronously on
	// every result-affecting action.
	Stats *GameStats `json:"stats,omitempty"`

	ActionLog    []json.RawMessage `json:"actionLog,omitempty"`
	LastActionID string            `json:"lastActionId,omitempty"`

	// DeletedAt is the timestamp (Unix Nano) when the game was deleted.
	DeletedAt int64 `json:"deletedAt,omitempty"`

	// LastRaftIndex tracks the index of the last Raft log entry applied
	// to this game. Used for idempotency during log replay.
	LastRaftIndex uint64 `json:"lastRaftIndex,omitempty"`
}

func (g *Game) normalize() {
	if g.SchemaVersion == 0 {
		g.SchemaVersion = SchemaVersionV1
	}
	if g.ActionLog == nil {
		g.ActionLog = make([]json.RawMessage, 0)
	}
	if g.Attendance == nil {
		g.Attendance = make(map[string]string)
	}
}

// HasStarted reports whether the game has a status at all.
func (g *Game) HasStarted() bool {
	return g.Status != nil
}

// IsConcluded reports whether the game reached a terminal status.
func (g *Game) IsConcluded() bool {
	return g.Status != nil && *g.Status != StatusInProgress
}

func (g *Game) setStatus(s int) {
	g.Status = &s
}

// GameStore manages game persistence to disk.
type GameStore struct {
	DataDir string
	Debug   bool
	storage *storage.Storage
	mu      sync.Map // *sync.RWMutex per gameId
	cache   sync.Map // latest marshaled []byte per gameId

	dirtyMu sync.Mutex
	dirty   map[string]bool
}

// NewGameStore creates a new GameStore.
func NewGameStore(dataDir string, s *storage.Storage) *GameStore {
	return &GameStore{
		DataDir: dataDir,
		storage: s,
		dirty:   make(map[string]bool),
	}
}

func gameFilenames(gameId string) (string, string) {
	encoded := url.PathEscape(gameId)
	return filepath.Join("games", fmt.Sprintf("%s.json", encoded)),
		filepath.Join("games", fmt.Sprintf("%s.meta.json", encoded))
}

// SaveGame saves the game data atomically.
func (gs *GameStore) SaveGame(game *Game) error {
	gameId := game.ID
	m, _ := gs.mu.LoadOrStore(gameId, &sync.RWMutex{})
	mutex := m.(*sync.RWMutex)

	mutex.Lock()
	defer mutex.Unlock()

	filename, metaFilename := gameFilenames(gameId)

	if err := gs.storage.SaveDataFile(filename, game); err != nil {
		return fmt.Errorf("storage.SaveDataFile: %w", err)
	}

	// The sidecar lets the registry index games without decrypting
	// full action logs.
	meta := gameMeta(game)
	if err := gs.storage.SaveDataFile(metaFilename, &meta); err != nil {
		log.Printf("Warning: Failed to save metadata sidecar for game %s: %v", gameId, err)
		// Non-fatal, we can fall back to the main file.
	}

	if jsonBytes, err := json.Marshal(game); err == nil {
		gs.cache.Store(gameId, jsonBytes)
	}

	gs.dirtyMu.Lock()
	delete(gs.dirty, gameId)
	gs.dirtyMu.Unlock()

	return nil
}

// SaveGameInMemory updates the in-memory cache and marks the game as
// dirty. If forceSync is true, it writes to disk immediately.
func (gs *GameStore) SaveGameInMemory(game *Game, forceSync bool) error {
	jsonBytes, err := json.Marshal(game)
	if err != nil {
		return err
	}
	gs.cache.Store(game.ID, jsonBytes)

	if forceSync {
		return gs.SaveGame(game)
	}

	gs.dirtyMu.Lock()
	gs.dirty[game.ID] = true
	gs.dirtyMu.Unlock()

	return nil
}

// Flush persists a specific game to disk if it is dirty.
func (gs *GameStore) Flush(gameId string) error {
	gs.dirtyMu.Lock()
	if !gs.dirty[gameId] {
		gs.dirtyMu.Unlock()
		return nil
	}
	gs.dirtyMu.Unlock()

	val, ok := gs.cache.Load(gameId)
	if !ok {
		// Dirty but not cached means the entry was lost; nothing
		// left to write.
		gs.dirtyMu.Lock()
		delete(gs.dirty, gameId)
		gs.dirtyMu.Unlock()
		return fmt.Errorf("game %s marked dirty but not found in cache", gameId)
	}

	var g Game
	if err := json.Unmarshal(val.([]byte), &g); err != nil {
		return fmt.Errorf("failed to unmarshal game from cache for flush: %w", err)
	}

	// SaveGame clears the dirty flag.
	return gs.SaveGame(&g)
}

// FlushAll persists all dirty games to disk.
func (gs *GameStore) FlushAll() error {
	gs.dirtyMu.Lock()
	dirtyIds := make([]string, 0, len(gs.dirty))
	for id := range gs.dirty {
		dirtyIds = append(dirtyIds, id)
	}
	gs.dirtyMu.Unlock()

	for _, id := range dirtyIds {
		if err := gs.Flush(id); err != nil {
			return fmt.Errorf("failed to flush game %s: %w", id, err)
		}
	}
	return nil
}

// LoadGame loads the game data by game ID.
func (gs *GameStore) LoadGame(gameId string) (*Game, error) {
	if val, ok := gs.cache.Load(gameId); ok {
		var g Game
		if err := json.Unmarshal(val.([]byte), &g); err == nil {
			if gs.Debug {
				log.Printf("[CACHE] Hit for game %s", gameId)
			}
			g.normalize()
			return &g, nil
		}
		gs.cache.Delete(gameId)
	}
	if gs.Debug {
		log.Printf("[CACHE] Miss for game %s", gameId)
	}

	m, _ := gs.mu.LoadOrStore(gameId, &sync.RWMutex{})
	mutex := m.(*sync.RWMutex)

	mutex.RLock()
	defer mutex.RUnlock()

	filename, _ := gameFilenames(gameId)

	var g Game
	err := gs.storage.ReadDataFile(filename, &g)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("ReadDataFile: %w", err)
	}
	g.normalize()

	if jsonBytes, err := json.Marshal(&g); err == nil {
		gs.cache.Store(gameId, jsonBytes)
	}

	return &g, nil
}

// LoadGameAsJSON is a helper for API handlers that just want bytes.
func (gs *GameStore) LoadGameAsJSON(gameId string) ([]byte, error) {
	g, err := gs.LoadGame(gameId)
	if err != nil {
		return nil, err
	}
	return json.Marshal(g)
}

// DeleteGame deletes a game by overwriting it with a tombstone.
func (gs *GameStore) DeleteGame(gameId string) error {
	g, err := gs.LoadGame(gameId)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	m, _ := gs.mu.LoadOrStore(gameId, &sync.RWMutex{})
	mutex := m.(*sync.RWMutex)

	mutex.Lock()
	defer mutex.Unlock()

	tombstone := &Game{
		ID:            gameId,
		SchemaVersion: SchemaVersionV1,
		TeamID:        g.TeamID,
		DeletedAt:     time.Now().UnixNano(),
	}

	filename, metaFilename := gameFilenames(gameId)

	if err := gs.storage.SaveDataFile(filename, tombstone); err != nil {
		return fmt.Errorf("storage.SaveDataFile (tombstone): %w", err)
	}

	meta := gameMeta(tombstone)
	if err := gs.storage.SaveDataFile(metaFilename, &meta); err != nil {
		log.Printf("Warning: Failed to save metadata tombstone for game %s: %v", gameId, err)
	}

	if jsonBytes, err := json.Marshal(tombstone); err == nil {
		gs.cache.Store(gameId, jsonBytes)
	}

	return nil
}

// PurgeGame permanently deletes the game file.
func (gs *GameStore) PurgeGame(gameId string) error {
	m, _ := gs.mu.LoadOrStore(gameId, &sync.RWMutex{})
	mutex := m.(*sync.RWMutex)

	mutex.Lock()
	defer mutex.Unlock()

	gs.cache.Delete(gameId)

	filename, metaFilename := gameFilenames(gameId)
	fullPath := filepath.Join(gs.DataDir, filename)
	fullMetaPath := filepath.Join(gs.DataDir, metaFilename)

	if err := os.Remove(fullPath); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("could not purge game file: %w", err)
		}
	}
	if err := os.Remove(fullMetaPath); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: could not purge meta file for game %s: %v", gameId, err)
		}
	}
	return nil
}

// GameMetadata contains only the fields needed for indexing and listing.
type GameMetadata struct {
	ID        string `json:"id"`
	TeamID    string `json:"teamId"`
	Start     string `json:"start,omitempty"`
	Opponent  string `json:"opponent,omitempty"`
	Ground    string `json:"ground,omitempty"`
	League    string `json:"league,omitempty"`
	Status    *int   `json:"status,omitempty"`
	DeletedAt int64  `json:"deletedAt,omitempty"`
}

func gameMeta(g *Game) GameMetadata {
	return GameMetadata{
		ID:        g.ID,
		TeamID:    g.TeamID,
		Start:     g.Start,
		Opponent:  g.Opponent,
		Ground:    g.Ground,
		League:    g.League,
		Status:    g.Status,
		DeletedAt: g.DeletedAt,
	}
}

// ListAllGameIDs returns the IDs of all game files on disk.
func (gs *GameStore) ListAllGameIDs() ([]string, error) {
	gamesDir := filepath.Join(gs.DataDir, "games")
	files, err := os.ReadDir(gamesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("could not read games directory: %w", err)
	}
	var ids []string
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".meta.json") {
			continue
		}
		if id, err := url.PathUnescape(strings.TrimSuffix(name, ".json")); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// RestoreGame writes a game during snapshot restore.
func (gs *GameStore) RestoreGame(g *Game) error {
	return gs.SaveGame(g)
}

// ListAllGameMetadata returns metadata for all games without loading
// full action logs.
func (gs *GameStore) ListAllGameMetadata() iter.Seq2[GameMetadata, error] {
	return func(yield func(GameMetadata, error) bool) {
		gamesDir := filepath.Join(gs.DataDir, "games")
		files, err := os.ReadDir(gamesDir)
		if err != nil && !os.IsNotExist(err) {
			yield(GameMetadata{}, fmt.Errorf("could not read games directory: %w", err))
			return
		}

		hasMeta := make(map[string]bool)
		hasGame := make(map[string]bool)

		for _, file := range files {
			if file.IsDir() {
				continue
			}
			name := file.Name()
			if strings.HasSuffix(name, ".meta.json") {
				if id, err := url.PathUnescape(strings.TrimSuffix(name, ".meta.json")); err == nil {
					hasMeta[id] = true
				}
			} else if strings.HasSuffix(name, ".json") {
				if id, err := url.PathUnescape(strings.TrimSuffix(name, ".json")); err == nil {
					hasGame[id] = true
				}
			}
		}

		processed := make(map[string]bool)

		for id := range hasMeta {
			processed[id] = true

			_, metaFilename := gameFilenames(id)
			var meta GameMetadata
			if err := gs.storage.ReadDataFile(metaFilename, &meta); err != nil {
				log.Printf("Registry Warning: failed to load metadata for %s: %v. Falling back to main file.", id, err)
				hasGame[id] = true
				processed[id] = false
				continue
			}

			if !yield(meta, nil) {
				return
			}
		}

		for id := range hasGame {
			if processed[id] {
				continue
			}
			processed[id] = true

			g, err := gs.LoadGame(id)
			if err != nil {
				log.Printf("Registry Warning: failed to load game %s from disk: %v", id, err)
				continue
			}

			if !yield(gameMeta(g), nil) {
				return
			}
		}

		// Games created in memory but not yet flushed.
		gs.dirtyMu.Lock()
		dirtyIds := make([]string, 0, len(gs.dirty))
		for id := range gs.dirty {
			dirtyIds = append(dirtyIds, id)
		}
		gs.dirtyMu.Unlock()

		for _, id := range dirtyIds {
			if processed[id] {
				continue
			}

			g, err := gs.LoadGame(id)
			if err != nil {
				log.Printf("Error: Failed to load dirty game %s: %v", id, err)
				continue
			}

			if !yield(gameMeta(g), nil) {
				return
			}
		}
	}
}

// ListAllGames returns an iterator over all games in the games directory.
func (gs *GameStore) ListAllGames() iter.Seq2[*Game, error] {
	return func(yield func(*Game, error) bool) {
		gamesDir := filepath.Join(gs.DataDir, "games")
		files, err := os.ReadDir(gamesDir)
		if err != nil && !os.IsNotExist(err) {
			yield(nil, fmt.Errorf("could not read games directory: %w", err))
			return
		}

		seen := make(map[string]bool)

		for _, file := range files {
			name := file.Name()
			if file.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".meta.json") {
				continue
			}
			gameId, err := url.PathUnescape(strings.TrimSuffix(name, ".json"))
			if err != nil {
				continue
			}

			seen[gameId] = true

			g, err := gs.LoadGame(gameId)
			if err != nil {
				log.Printf("Warning: could not load game '%s': %v", gameId, err)
				continue
			}
			if !yield(g, nil) {
				return
			}
		}

		gs.dirtyMu.Lock()
		dirtyIds := make([]string, 0, len(gs.dirty))
		for id := range gs.dirty {
			dirtyIds = append(dirtyIds, id)
		}
		gs.dirtyMu.Unlock()

		for _, id := range dirtyIds {
			if seen[id] {
				continue
			}

			g, err := gs.LoadGame(id)
			if err != nil {
				log.Printf("Error: Failed to load dirty game %s: %v", id, err)
				continue
			}
			if !yield(g, nil) {
				return
			}
		}
	}
}
