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
	"testing"

	"github.com/google/uuid"
)

func TestRegistryIndex(t *testing.T) {
	reg, gStore, tStore := newTestRegistry(t)

	owner := "owner@example.com"
	team := &Team{ID: uuid.NewString(), Name: "Otters", OwnerID: owner}
	if err := tStore.SaveTeam(team); err != nil {
		t.Fatalf("SaveTeam failed: %v", err)
	}
	reg.UpdateTeam(team)

	win := StatusWin
	games := []*Game{
		{ID: uuid.NewString(), TeamID: team.ID, Start: "2026-04-04T10:00:00Z", Opponent: "Herons", Status: &win},
		{ID: uuid.NewString(), TeamID: team.ID, Start: "2026-05-02T10:00:00Z", Opponent: "Pelicans"},
		{ID: uuid.NewString(), TeamID: team.ID, Start: "2025-09-13T10:00:00Z", Opponent: "Gulls", Status: &win},
	}
	for _, g := range games {
		if err := gStore.SaveGame(g); err != nil {
			t.Fatalf("SaveGame failed: %v", err)
		}
		reg.UpdateGame(g)
	}

	if reg.CountTotalGames() != 3 || reg.CountTotalTeams() != 1 {
		t.Errorf("Counts = %d games, %d teams", reg.CountTotalGames(), reg.CountTotalTeams())
	}

	t.Run("ListGamesNewestFirst", func(t *testing.T) {
		list := reg.ListGames(team.ID, "")
		if len(list) != 3 {
			t.Fatalf("ListGames returned %d games", len(list))
		}
		if list[0].Opponent != "Pelicans" || list[2].Opponent != "Gulls" {
			t.Errorf("Wrong order: %s, %s, %s", list[0].Opponent, list[1].Opponent, list[2].Opponent)
		}
	})

	t.Run("ListGamesSeasonFilter", func(t *testing.T) {
		list := reg.ListGames(team.ID, "2025")
		if len(list) != 1 || list[0].Opponent != "Gulls" {
			t.Errorf("Season filter returned %+v", list)
		}
	})

	t.Run("GameTeamID", func(t *testing.T) {
		if got := reg.GameTeamID(games[0].ID); got != team.ID {
			t.Errorf("GameTeamID = %q", got)
		}
		if got := reg.GameTeamID(uuid.NewString()); got != "" {
			t.Errorf("Unknown game teamId = %q", got)
		}
	})

	t.Run("FindPreviousGame", func(t *testing.T) {
		// Only played games qualify; the scheduled Pelicans game is
		// skipped.
		meta, found := reg.FindPreviousGame(team.ID, "")
		if !found || meta.Opponent != "Herons" {
			t.Errorf("FindPreviousGame = %+v, found=%v", meta, found)
		}

		meta, found = reg.FindPreviousGame(team.ID, "2026-01-01T00:00:00Z")
		if !found || meta.Opponent != "Gulls" {
			t.Errorf("FindPreviousGame(before 2026) = %+v, found=%v", meta, found)
		}

		if _, found := reg.FindPreviousGame(team.ID, "2025-01-01T00:00:00Z"); found {
			t.Error("FindPreviousGame found a game before any were played")
		}
	})

	t.Run("DeleteGame", func(t *testing.T) {
		reg.DeleteGame(games[1].ID)
		if reg.CountTotalGames() != 2 {
			t.Errorf("Count after delete = %d", reg.CountTotalGames())
		}
		if !reg.IsGameDeleted(games[1].ID) {
			t.Error("Deleted game not tombstoned")
		}
		if reg.GameExists(games[1].ID) {
			t.Error("Deleted game still exists")
		}
		if got := len(reg.ListGames(team.ID, "")); got != 2 {
			t.Errorf("ListGames after delete = %d", got)
		}
	})

	t.Run("DeleteTeam", func(t *testing.T) {
		reg.DeleteTeam(team.ID)
		if reg.CountTotalTeams() != 0 {
			t.Errorf("Team count after delete = %d", reg.CountTotalTeams())
		}
		if !reg.IsTeamDeleted(team.ID) {
			t.Error("Deleted team not tombstoned")
		}
	})
}

func TestRegistryRebuild(t *testing.T) {
	reg, gStore, tStore := newTestRegistry(t)

	team := &Team{ID: uuid.NewString(), Name: "Otters", OwnerID: "owner@example.com"}
	if err := tStore.SaveTeam(team); err != nil {
		t.Fatalf("SaveTeam failed: %v", err)
	}
	g := &Game{ID: uuid.NewString(), TeamID: team.ID, Start: "2026-04-04T10:00:00Z"}
	if err := gStore.SaveGame(g); err != nil {
		t.Fatalf("SaveGame failed: %v", err)
	}

	// The registry was built before the files existed; a rebuild picks
	// them up from the metadata sidecars.
	reg.Rebuild()
	if reg.CountTotalGames() != 1 || reg.CountTotalTeams() != 1 {
		t.Errorf("Counts after rebuild = %d games, %d teams", reg.CountTotalGames(), reg.CountTotalTeams())
	}
	if got := len(reg.ListGames(team.ID, "")); got != 1 {
		t.Errorf("ListGames after rebuild = %d", got)
	}
}

func TestRegistryListTeams(t *testing.T) {
	reg, _, tStore := newTestRegistry(t)

	owner := "owner@example.com"
	teams := []*Team{
		{ID: uuid.NewString(), Name: "Bears", OwnerID: owner},
		{ID: uuid.NewString(), Name: "Antelopes", OwnerID: "other@example.com",
			Roles: TeamRoles{Players: []string{owner}}},
		{ID: uuid.NewString(), Name: "Crows", OwnerID: "other@example.com"},
	}
	for _, tm := range teams {
		if err := tStore.SaveTeam(tm); err != nil {
			t.Fatalf("SaveTeam failed: %v", err)
		}
		reg.UpdateTeam(tm)
	}

	// Membership in any role counts; sorted by name.
	list := reg.ListTeams(owner)
	if len(list) != 2 {
		t.Fatalf("ListTeams returned %d teams", len(list))
	}
	if list[0].Name != "Antelopes" || list[1].Name != "Bears" {
		t.Errorf("Wrong order: %s, %s", list[0].Name, list[1].Name)
	}

	if got := reg.ListTeams(""); got != nil {
		t.Errorf("Anonymous ListTeams = %+v", got)
	}
}

func TestRegistryAccessHelpers(t *testing.T) {
	reg, gStore, tStore := newTestRegistry(t)

	owner := "owner@example.com"
	team := &Team{ID: uuid.NewString(), Name: "Otters", OwnerID: owner,
		Roles: TeamRoles{Players: []string{"player@example.com"}}}
	if err := tStore.SaveTeam(team); err != nil {
		t.Fatalf("SaveTeam failed: %v", err)
	}
	reg.UpdateTeam(team)

	other := &Team{ID: uuid.NewString(), Name: "Crows", OwnerID: "other@example.com"}
	if err := tStore.SaveTeam(other); err != nil {
		t.Fatalf("SaveTeam failed: %v", err)
	}
	reg.UpdateTeam(other)

	g := &Game{ID: uuid.NewString(), TeamID: team.ID, Start: "2026-04-04T10:00:00Z"}
	if err := gStore.SaveGame(g); err != nil {
		t.Fatalf("SaveGame failed: %v", err)
	}
	reg.UpdateGame(g)
	g2 := &Game{ID: uuid.NewString(), TeamID: other.ID, Start: "2026-04-05T10:00:00Z"}
	if err := gStore.SaveGame(g2); err != nil {
		t.Fatalf("SaveGame failed: %v", err)
	}
	reg.UpdateGame(g2)

	if !reg.HasTeamAccess("player@example.com", team.ID) {
		t.Error("Player has no team access")
	}
	if reg.HasTeamAccess("player@example.com", other.ID) {
		t.Error("Player has access to unrelated team")
	}
	if !reg.HasGameAccess(owner, g.ID) {
		t.Error("Owner has no game access")
	}
	if reg.HasGameAccess(owner, g2.ID) {
		t.Error("Owner has access to unrelated game")
	}

	// Ownership-based counts for quota enforcement.
	if got := reg.CountOwnedTeams(owner); got != 1 {
		t.Errorf("CountOwnedTeams = %d, want 1", got)
	}
	if got := reg.CountOwnedGames(owner); got != 1 {
		t.Errorf("CountOwnedGames = %d, want 1", got)
	}
	if got := reg.CountOwnedGames("player@example.com"); got != 0 {
		t.Errorf("Player CountOwnedGames = %d, want 0", got)
	}
}
