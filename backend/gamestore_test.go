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
	"os"
	"path/filepath"
	"testing"

	"github.com/c2FmZQ/storage"
)

func TestGameStore(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "gamestore_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	s := storage.New(tempDir, nil)
	store := NewGameStore(tempDir, s)
	gameId := "11111111-1111-4111-8111-111111111111"
	teamId := "22222222-2222-4222-8222-222222222222"
	game := Game{
		SchemaVersion: SchemaVersionV1,
		ID:            gameId,
		TeamID:        teamId,
		Start:         "2026-04-04T10:00:00Z",
		Opponent:      "Harbor City Herons",
	}

	t.Run("SaveGame", func(t *testing.T) {
		if err := store.SaveGame(&game); err != nil {
			t.Errorf("SaveGame failed: %v", err)
		}

		expectedPath := filepath.Join(tempDir, "games", gameId+".json")
		if _, err := os.Stat(expectedPath); os.IsNotExist(err) {
			t.Errorf("Game file not created at %s", expectedPath)
		}
		// The metadata sidecar is written alongside.
		metaPath := filepath.Join(tempDir, "games", gameId+".meta.json")
		if _, err := os.Stat(metaPath); os.IsNotExist(err) {
			t.Errorf("Metadata sidecar not created at %s", metaPath)
		}
	})

	t.Run("LoadGame", func(t *testing.T) {
		loaded, err := store.LoadGame(gameId)
		if err != nil {
			t.Fatalf("LoadGame failed: %v", err)
		}
		if loaded.ID != gameId || loaded.TeamID != teamId {
			t.Errorf("Loaded data mismatch: %+v", loaded)
		}
		// normalize() fills the maps and slices the JSON may omit.
		if loaded.ActionLog == nil || loaded.Attendance == nil {
			t.Errorf("Loaded game not normalized: %+v", loaded)
		}
	})

	t.Run("LoadGameAsJSON", func(t *testing.T) {
		data, err := store.LoadGameAsJSON(gameId)
		if err != nil {
			t.Fatalf("LoadGameAsJSON failed: %v", err)
		}
		var g Game
		if err := json.Unmarshal(data, &g); err != nil {
			t.Errorf("Failed to unmarshal JSON data: %v", err)
		}
		if g.ID != gameId {
			t.Errorf("JSON data mismatch. Got %v, want %v", g.ID, gameId)
		}
	})

	t.Run("LoadGameNotFound", func(t *testing.T) {
		_, err := store.LoadGame("33333333-3333-4333-8333-333333333333")
		if !os.IsNotExist(err) {
			t.Errorf("Expected os.ErrNotExist, got %v", err)
		}
	})

	t.Run("SaveGameInMemoryAndFlush", func(t *testing.T) {
		dirtyId := "44444444-4444-4444-8444-444444444444"
		g := Game{SchemaVersion: SchemaVersionV1, ID: dirtyId, TeamID: teamId}
		if err := store.SaveGameInMemory(&g, false); err != nil {
			t.Fatalf("SaveGameInMemory failed: %v", err)
		}

		// Not on disk yet, but loadable from cache.
		diskPath := filepath.Join(tempDir, "games", dirtyId+".json")
		if _, err := os.Stat(diskPath); !os.IsNotExist(err) {
			t.Errorf("Dirty game written to disk before flush")
		}
		if _, err := store.LoadGame(dirtyId); err != nil {
			t.Errorf("Dirty game not loadable from cache: %v", err)
		}

		// Dirty games appear in listings.
		found := false
		for meta, err := range store.ListAllGameMetadata() {
			if err != nil {
				t.Fatalf("ListAllGameMetadata error: %v", err)
			}
			if meta.ID == dirtyId {
				found = true
			}
		}
		if !found {
			t.Error("Dirty game missing from metadata listing")
		}

		if err := store.FlushAll(); err != nil {
			t.Fatalf("FlushAll failed: %v", err)
		}
		if _, err := os.Stat(diskPath); err != nil {
			t.Errorf("Game not on disk after flush: %v", err)
		}
	})

	t.Run("DeleteGame", func(t *testing.T) {
		if err := store.DeleteGame(gameId); err != nil {
			t.Fatalf("DeleteGame failed: %v", err)
		}

		// The file remains as a tombstone that keeps its team binding.
		loaded, err := store.LoadGame(gameId)
		if err != nil {
			t.Fatalf("LoadGame failed: %v", err)
		}
		if loaded.DeletedAt == 0 {
			t.Error("Expected DeletedAt to be set")
		}
		if loaded.TeamID != teamId {
			t.Errorf("Tombstone lost teamId: %q", loaded.TeamID)
		}
		if loaded.Opponent != "" {
			t.Errorf("Tombstone kept game content: %q", loaded.Opponent)
		}
	})

	t.Run("PurgeGame", func(t *testing.T) {
		if err := store.PurgeGame(gameId); err != nil {
			t.Fatalf("PurgeGame failed: %v", err)
		}
		expectedPath := filepath.Join(tempDir, "games", gameId+".json")
		if _, err := os.Stat(expectedPath); !os.IsNotExist(err) {
			t.Errorf("Game file still exists after purge at %s", expectedPath)
		}
	})
}

func TestGameStoreMetadataFallback(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "gamestore_meta_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	s := storage.New(tempDir, nil)
	store := NewGameStore(tempDir, s)
	gameId := "55555555-5555-4555-8555-555555555555"
	game := Game{SchemaVersion: SchemaVersionV1, ID: gameId, Opponent: "Herons"}
	if err := store.SaveGame(&game); err != nil {
		t.Fatalf("SaveGame failed: %v", err)
	}

	// Remove the sidecar; the listing must fall back to the main file.
	if err := os.Remove(filepath.Join(tempDir, "games", gameId+".meta.json")); err != nil {
		t.Fatalf("Failed to remove sidecar: %v", err)
	}

	found := false
	for meta, err := range store.ListAllGameMetadata() {
		if err != nil {
			t.Fatalf("ListAllGameMetadata error: %v", err)
		}
		if meta.ID == gameId && meta.Opponent == "Herons" {
			found = true
		}
	}
	if !found {
		t.Error("Game missing from listing after sidecar loss")
	}
}
