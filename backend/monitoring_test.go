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

func TestBuildStatusSnapshot(t *testing.T) {
	reg, gStore, tStore := newTestRegistry(t)

	team := &Team{ID: uuid.NewString(), Name: "Otters", OwnerID: "owner@example.com"}
	if err := tStore.SaveTeam(team); err != nil {
		t.Fatalf("SaveTeam failed: %v", err)
	}
	reg.UpdateTeam(team)

	g := &Game{ID: uuid.NewString(), TeamID: team.ID, Start: "2026-04-04T10:00:00Z"}
	if err := gStore.SaveGame(g); err != nil {
		t.Fatalf("SaveGame failed: %v", err)
	}
	reg.UpdateGame(g)

	snap := buildStatusSnapshot(reg, NewHubManager(), nil)
	if snap.Games != 1 || snap.Teams != 1 {
		t.Errorf("Snapshot counts = %d games, %d teams", snap.Games, snap.Teams)
	}
	if snap.WSConnections != 0 {
		t.Errorf("WSConnections = %d, want 0", snap.WSConnections)
	}
	if snap.RaftEnabled || snap.RaftState != "" {
		t.Errorf("Raft fields set on standalone node: %+v", snap)
	}
	if snap.UptimeSeconds < 0 {
		t.Errorf("UptimeSeconds = %d", snap.UptimeSeconds)
	}
}
