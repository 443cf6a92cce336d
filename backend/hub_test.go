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
	"strings"
	"testing"

	"github.com/google/uuid"
)

// newTestHub builds a hub around a started game owned by
// owner@example.com, with the game persisted so the hub's stale-cache
// reload path works.
func newTestHub(t *testing.T) (*Hub, *GameStore, *TeamStore, *Team) {
	t.Helper()
	reg, gs, ts := newTestRegistry(t)

	team := &Team{ID: uuid.NewString(), Name: "Riverside Otters", OwnerID: "owner@example.com"}
	if err := ts.SaveTeam(team); err != nil {
		t.Fatalf("SaveTeam failed: %v", err)
	}
	reg.UpdateTeam(team)

	g := startedGame(t, true)
	g.ID = uuid.NewString()
	g.TeamID = team.ID
	if err := gs.SaveGame(g); err != nil {
		t.Fatalf("SaveGame failed: %v", err)
	}
	reg.UpdateGame(g)

	h := newHub(g.ID, false, gs, ts, reg, NewHubManager(), nil)
	h.gameData = g
	return h, gs, ts, team
}

func atBatAction(t *testing.T, battingIndex int, result string) json.RawMessage {
	t.Helper()
	return mkAction(t, ActionAtBat, AtBatPayload{BattingIndex: battingIndex, Result: result})
}

func TestProcessActionAppend(t *testing.T) {
	h, _, _, _ := newTestHub(t)
	head := getCurrentRevision(h.gameData.ActionLog)
	logLen := len(h.gameData.ActionLog)

	resp, broadcasts, err := h.processAction(Message{
		Type:         MsgTypeAction,
		BaseRevision: head,
		Action:       atBatAction(t, 0, ResultSingle),
	}, "owner@example.com")
	if err != nil {
		t.Fatalf("processAction failed: %v", err)
	}
	if resp.Type != MsgTypeAck {
		t.Fatalf("Expected ACK, got %s (%s)", resp.Type, resp.Error)
	}
	if len(broadcasts) != 1 || broadcasts[0].Type != MsgTypeAction {
		t.Errorf("Expected 1 action broadcast, got %+v", broadcasts)
	}
	if len(h.gameData.ActionLog) != logLen+1 {
		t.Errorf("Log length = %d, want %d", len(h.gameData.ActionLog), logLen+1)
	}
	if h.gameData.Stats == nil {
		t.Error("Stats not refreshed after action")
	}
}

func TestProcessActionIdempotentResend(t *testing.T) {
	h, _, _, _ := newTestHub(t)
	head := getCurrentRevision(h.gameData.ActionLog)
	action := atBatAction(t, 0, ResultSingle)

	resp, _, err := h.processAction(Message{
		Type: MsgTypeAction, BaseRevision: head, Action: action,
	}, "owner@example.com")
	if err != nil || resp.Type != MsgTypeAck {
		t.Fatalf("First apply failed: %v %+v", err, resp)
	}
	logLen := len(h.gameData.ActionLog)

	// The client retries the same action with the same base. The hub
	// must recognize the overlap and acknowledge without re-applying.
	resp, broadcasts, err := h.processAction(Message{
		Type: MsgTypeAction, BaseRevision: head, Action: action,
	}, "owner@example.com")
	if err != nil {
		t.Fatalf("Resend failed: %v", err)
	}
	if resp.Type != MsgTypeAck {
		t.Fatalf("Expected ACK on resend, got %s (%s)", resp.Type, resp.Error)
	}
	if len(broadcasts) != 0 {
		t.Errorf("Idempotent resend broadcast %d messages", len(broadcasts))
	}
	if len(h.gameData.ActionLog) != logLen {
		t.Errorf("Log grew on resend: %d, want %d", len(h.gameData.ActionLog), logLen)
	}
}

func TestProcessActionBaseNotFound(t *testing.T) {
	h, _, _, _ := newTestHub(t)
	head := getCurrentRevision(h.gameData.ActionLog)

	resp, _, err := h.processAction(Message{
		Type:         MsgTypeAction,
		BaseRevision: uuid.NewString(),
		Action:       atBatAction(t, 0, ResultSingle),
	}, "owner@example.com")
	if err != nil {
		t.Fatalf("processAction failed: %v", err)
	}
	if resp.Type != MsgTypeConflict || resp.Error != "Base revision not found" {
		t.Errorf("Expected base-not-found conflict, got %+v", resp)
	}
	if resp.BaseRevision != head {
		t.Errorf("Conflict should report server head %s, got %s", head, resp.BaseRevision)
	}
}

func TestProcessActionHistoryDivergence(t *testing.T) {
	h, _, _, _ := newTestHub(t)
	head := getCurrentRevision(h.gameData.ActionLog)

	resp, _, err := h.processAction(Message{
		Type: MsgTypeAction, BaseRevision: head, Action: atBatAction(t, 0, ResultSingle),
	}, "owner@example.com")
	if err != nil || resp.Type != MsgTypeAck {
		t.Fatalf("First apply failed: %v %+v", err, resp)
	}

	// A second client writes from the old head with a different action.
	resp, _, err = h.processAction(Message{
		Type: MsgTypeAction, BaseRevision: head, Action: atBatAction(t, 0, ResultHomeRun),
	}, "owner@example.com")
	if err != nil {
		t.Fatalf("processAction failed: %v", err)
	}
	if resp.Type != MsgTypeConflict || resp.Error != "History divergence" {
		t.Errorf("Expected divergence conflict, got %+v", resp)
	}
}

func TestProcessActionOverlapRemainder(t *testing.T) {
	h, _, _, _ := newTestHub(t)
	head := getCurrentRevision(h.gameData.ActionLog)
	a1 := atBatAction(t, 0, ResultSingle)
	a2 := atBatAction(t, 1, ResultDouble)

	resp, _, err := h.processAction(Message{
		Type: MsgTypeAction, BaseRevision: head, Action: a1,
	}, "owner@example.com")
	if err != nil || resp.Type != MsgTypeAck {
		t.Fatalf("First apply failed: %v %+v", err, resp)
	}
	logLen := len(h.gameData.ActionLog)

	// A retried batch that overlaps the server log: the already-applied
	// prefix is skipped and only the remainder is applied.
	resp, _, err = h.processAction(Message{
		Type: MsgTypeAction, BaseRevision: head, Actions: []json.RawMessage{a1, a2},
	}, "owner@example.com")
	if err != nil {
		t.Fatalf("processAction failed: %v", err)
	}
	if resp.Type != MsgTypeAck {
		t.Fatalf("Expected ACK, got %s (%s)", resp.Type, resp.Error)
	}
	if len(h.gameData.ActionLog) != logLen+1 {
		t.Errorf("Log length = %d, want %d", len(h.gameData.ActionLog), logLen+1)
	}
	if got := len(h.gameData.Details); got != 2 {
		t.Errorf("Details = %d, want 2", got)
	}
}

func TestProcessActionBatchTooLarge(t *testing.T) {
	h, _, _, _ := newTestHub(t)

	batch := make([]json.RawMessage, 101)
	for i := range batch {
		batch[i] = atBatAction(t, 0, ResultSingle)
	}
	resp, _, err := h.processAction(Message{Type: MsgTypeAction, Actions: batch}, "owner@example.com")
	if err != nil {
		t.Fatalf("processAction failed: %v", err)
	}
	if resp.Type != MsgTypeError || !strings.Contains(resp.Error, "Batch size too large") {
		t.Errorf("Expected batch size error, got %+v", resp)
	}
}

func TestProcessActionMalformed(t *testing.T) {
	h, _, _, _ := newTestHub(t)

	resp, _, err := h.processAction(Message{
		Type:   MsgTypeAction,
		Action: json.RawMessage(`{"id":"nope","type":"AT_BAT","payload":{}}`),
	}, "owner@example.com")
	if err != nil {
		t.Fatalf("processAction failed: %v", err)
	}
	if resp.Type != MsgTypeError || !strings.Contains(resp.Error, "Malformed action") {
		t.Errorf("Expected malformed action error, got %+v", resp)
	}
}

func TestProcessActionAccessDenied(t *testing.T) {
	h, _, _, _ := newTestHub(t)
	head := getCurrentRevision(h.gameData.ActionLog)
	action := atBatAction(t, 0, ResultSingle)

	resp, _, err := h.processAction(Message{
		Type: MsgTypeAction, BaseRevision: head, Action: action,
	}, "stranger@example.com")
	if err != nil {
		t.Fatalf("processAction failed: %v", err)
	}
	if resp.Type != MsgTypeError || !strings.Contains(resp.Error, "Forbidden") {
		t.Errorf("Expected Forbidden, got %+v", resp)
	}

	resp, _, err = h.processAction(Message{
		Type: MsgTypeAction, BaseRevision: head, Action: action,
	}, "")
	if err != nil {
		t.Fatalf("processAction failed: %v", err)
	}
	if resp.Type != MsgTypeError || !strings.Contains(resp.Error, "Unauthenticated") {
		t.Errorf("Expected Unauthenticated, got %+v", resp)
	}
}

func TestProcessActionScheduleBootstrap(t *testing.T) {
	h0, gs, ts, team := newTestHub(t)

	newGameId := uuid.NewString()
	h := newHub(newGameId, false, gs, ts, h0.r, NewHubManager(), nil)
	h.gameData = &Game{ID: newGameId}

	schedule := mkAction(t, ActionGameSchedule, GameSchedulePayload{
		TeamID:   team.ID,
		Start:    "2026-05-02T10:00:00Z",
		Opponent: "Harbor City Herons",
	})

	// A stranger cannot bootstrap a game on someone else's team.
	resp, _, err := h.processAction(Message{Type: MsgTypeAction, Action: schedule}, "stranger@example.com")
	if err != nil {
		t.Fatalf("processAction failed: %v", err)
	}
	if resp.Type != MsgTypeError || !strings.Contains(resp.Error, "Forbidden") {
		t.Errorf("Expected Forbidden, got %+v", resp)
	}

	// The team owner can.
	resp, _, err = h.processAction(Message{Type: MsgTypeAction, Action: schedule}, "owner@example.com")
	if err != nil {
		t.Fatalf("processAction failed: %v", err)
	}
	if resp.Type != MsgTypeAck {
		t.Fatalf("Expected ACK, got %s (%s)", resp.Type, resp.Error)
	}

	g, err := gs.LoadGame(newGameId)
	if err != nil {
		t.Fatalf("Game not created: %v", err)
	}
	if g.TeamID != team.ID || g.Opponent != "Harbor City Herons" {
		t.Errorf("Schedule not applied: %+v", g)
	}
}

func TestProcessActionMissingGame(t *testing.T) {
	h, _, _, _ := newTestHub(t)

	// A batch that elevates through GAME_SCHEDULE on an empty hub still
	// conflicts when the game doesn't exist and the batch has no schedule.
	emptyId := uuid.NewString()
	h2 := newHub(emptyId, false, h.gs, h.ts, h.r, NewHubManager(), nil)
	h2.gameData = &Game{ID: emptyId}

	resp, _, err := h2.processAction(Message{
		Type:   MsgTypeAction,
		Action: atBatAction(t, 0, ResultSingle),
	}, "owner@example.com")
	if err != nil {
		t.Fatalf("processAction failed: %v", err)
	}
	// The empty game grants no access, so the write is rejected before
	// the existence check.
	if resp.Type != MsgTypeError || !strings.Contains(resp.Error, "Forbidden") {
		t.Errorf("Expected Forbidden, got %+v", resp)
	}
}
