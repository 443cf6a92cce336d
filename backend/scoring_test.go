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
	"testing"
	"time"

	"github.com/google/uuid"
)

// mkAction builds a raw action the way a recorder client would.
func mkAction(t *testing.T, actionType string, payload any) json.RawMessage {
	t.Helper()
	p, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Failed to marshal payload: %v", err)
	}
	raw, err := json.Marshal(BaseAction{
		ID:        uuid.NewString(),
		Type:      actionType,
		Payload:   p,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		t.Fatalf("Failed to marshal action: %v", err)
	}
	return raw
}

func mustApply(t *testing.T, g *Game, raw json.RawMessage) {
	t.Helper()
	changed, err := ApplyAction(g, raw)
	if err != nil {
		t.Fatalf("ApplyAction failed: %v", err)
	}
	if !changed {
		t.Fatalf("ApplyAction reported no change")
	}
}

// testPlayers is a stable set of roster IDs used across the scoring tests.
var testPlayers = func() []string {
	ids := make([]string, 12)
	for i := range ids {
		ids[i] = uuid.NewString()
	}
	return ids
}()

func nineSlots() []LineupSlot {
	positions := []string{
		PosPitcher, PosCatcher, PosFirst, PosSecond, PosThird,
		PosShort, PosLeft, PosCenter, PosRight,
	}
	slots := make([]LineupSlot, 9)
	for i := range slots {
		slots[i] = LineupSlot{PlayerID: testPlayers[i], Position: positions[i]}
	}
	return slots
}

// startedGame returns a game with a nine-slot lineup, started.
func startedGame(t *testing.T, battingFirst bool) *Game {
	t.Helper()
	g := &Game{ID: uuid.NewString()}
	mustApply(t, g, mkAction(t, ActionLineupSave, LineupSavePayload{Slots: nineSlots()}))
	mustApply(t, g, mkAction(t, ActionGameStart, GameStartPayload{IsBattingFirst: &battingFirst}))
	return g
}

// checkContiguous verifies battingIndex values are exactly 0..len-1.
func checkContiguous(t *testing.T, g *Game) {
	t.Helper()
	seen := make(map[int]bool)
	for _, b := range g.Batting {
		if seen[b.BattingIndex] {
			t.Errorf("Duplicate battingIndex %d", b.BattingIndex)
		}
		seen[b.BattingIndex] = true
	}
	for i := 0; i < len(g.Batting); i++ {
		if !seen[i] {
			t.Errorf("Missing battingIndex %d (have %d rows)", i, len(g.Batting))
		}
	}
}

func TestLineupSave(t *testing.T) {
	g := &Game{ID: uuid.NewString()}
	mustApply(t, g, mkAction(t, ActionLineupSave, LineupSavePayload{
		Slots:    nineSlots(),
		Opponent: "Harbor City Herons",
	}))

	if len(g.Batting) != 9 {
		t.Fatalf("Expected 9 batting rows, got %d", len(g.Batting))
	}
	for i, b := range g.Batting {
		if b.BattingIndex != i {
			t.Errorf("Row %d: battingIndex = %d", i, b.BattingIndex)
		}
		if b.BattingOrder != i+1 {
			t.Errorf("Row %d: battingOrder = %d", i, b.BattingOrder)
		}
	}
	if g.Opponent != "Harbor City Herons" {
		t.Errorf("Opponent not set: %q", g.Opponent)
	}

	// The slot marked P becomes pitching appearance #1.
	if len(g.Pitching) != 1 || g.Pitching[0].PitchingOrder != 1 {
		t.Fatalf("Expected pitching appearance #1, got %+v", g.Pitching)
	}
	if g.Pitching[0].PlayerID != testPlayers[0] {
		t.Errorf("Starting pitcher = %s, want %s", g.Pitching[0].PlayerID, testPlayers[0])
	}

	if got := Phase(g); got != PhaseConfirming {
		t.Errorf("Phase = %s, want %s", got, PhaseConfirming)
	}

	// Re-saving replaces the lineup entirely.
	slots := nineSlots()
	slots[0], slots[1] = slots[1], slots[0]
	mustApply(t, g, mkAction(t, ActionLineupSave, LineupSavePayload{Slots: slots}))
	if len(g.Batting) != 9 {
		t.Fatalf("Expected 9 batting rows after re-save, got %d", len(g.Batting))
	}
	if g.Batting[0].PlayerID != testPlayers[1] {
		t.Errorf("Re-save did not replace slot 1")
	}
}

func TestGameStart(t *testing.T) {
	g := startedGame(t, true)

	if !g.HasStarted() || *g.Status != StatusInProgress {
		t.Fatalf("Game not in progress: %+v", g.Status)
	}
	if len(g.Innings) != 1 || g.Innings[0] != 1 {
		t.Errorf("Innings = %v, want [1]", g.Innings)
	}
	if len(g.TopPoints) != 1 || len(g.BottomPoints) != 1 {
		t.Errorf("Point arrays = %v / %v, want one zero each", g.TopPoints, g.BottomPoints)
	}
	if g.NowInning != 1 || !g.NowIsTop {
		t.Errorf("Cursor = inning %d top=%v, want 1/true", g.NowInning, g.NowIsTop)
	}
	if got := Phase(g); got != PhaseBatting {
		t.Errorf("Phase = %s, want %s (batting first)", got, PhaseBatting)
	}

	g2 := startedGame(t, false)
	if got := Phase(g2); got != PhaseFielding {
		t.Errorf("Phase = %s, want %s (batting second)", got, PhaseFielding)
	}
}

func TestGameStartRejectedWithoutLineup(t *testing.T) {
	g := &Game{ID: uuid.NewString()}
	b := true
	_, err := ApplyAction(g, mkAction(t, ActionGameStart, GameStartPayload{IsBattingFirst: &b}))
	if err == nil {
		t.Fatal("Expected error starting a game without a lineup")
	}
	if g.HasStarted() {
		t.Error("Game started despite error")
	}
}

func TestActionIdempotency(t *testing.T) {
	g := startedGame(t, true)
	raw := mkAction(t, ActionAtBat, AtBatPayload{BattingIndex: 0, Result: ResultSingle})

	mustApply(t, g, raw)
	logLen := len(g.ActionLog)

	changed, err := ApplyAction(g, raw)
	if err != nil {
		t.Fatalf("Duplicate apply returned error: %v", err)
	}
	if changed {
		t.Error("Duplicate action reported as applied")
	}
	if len(g.ActionLog) != logLen {
		t.Errorf("Duplicate action appended to log: %d -> %d", logLen, len(g.ActionLog))
	}
	if len(g.Details) != 1 {
		t.Errorf("Duplicate action created a second detail: %d", len(g.Details))
	}
}

func TestAtBatUpsert(t *testing.T) {
	g := startedGame(t, true)

	mustApply(t, g, mkAction(t, ActionAtBat, AtBatPayload{
		BattingIndex: 0, Result: ResultGroundOut,
	}))
	if len(g.Details) != 1 || g.Details[0].InningIndex != 0 {
		t.Fatalf("First at-bat: %+v", g.Details)
	}

	// Review-mode correction addresses the existing record.
	idx := 0
	mustApply(t, g, mkAction(t, ActionAtBat, AtBatPayload{
		BattingIndex: 0, InningIndex: &idx, Result: ResultHomeRun, RBI: 1,
	}))
	if len(g.Details) != 1 {
		t.Fatalf("Correction created a new detail: %d", len(g.Details))
	}
	if g.Details[0].Result != ResultHomeRun || g.Details[0].RBI != 1 {
		t.Errorf("Correction not applied: %+v", g.Details[0])
	}

	// Addressing a record that does not exist is an error.
	bad := 5
	if _, err := ApplyAction(g, mkAction(t, ActionAtBat, AtBatPayload{
		BattingIndex: 0, InningIndex: &bad, Result: ResultSingle,
	})); err == nil {
		t.Error("Expected error for unknown inning index")
	}
}

func TestFullCircuitOpensNextInningIndex(t *testing.T) {
	g := startedGame(t, true)

	for i := 0; i < 9; i++ {
		mustApply(t, g, mkAction(t, ActionAtBat, AtBatPayload{
			BattingIndex: i, Result: ResultSingle,
		}))
	}
	for _, d := range g.Details {
		if d.InningIndex != 0 {
			t.Fatalf("First circuit detail at index %d", d.InningIndex)
		}
	}

	// The order has come all the way around: slot 1's next plate
	// appearance opens index 1.
	mustApply(t, g, mkAction(t, ActionAtBat, AtBatPayload{
		BattingIndex: 0, Result: ResultDouble,
	}))
	last := g.Details[len(g.Details)-1]
	if last.BattingIndex != 0 || last.InningIndex != 1 {
		t.Errorf("Tenth at-bat landed at inningIndex %d, want 1", last.InningIndex)
	}
}

func TestSkipTurn(t *testing.T) {
	g := startedGame(t, true)

	mustApply(t, g, mkAction(t, ActionSkipTurn, SkipTurnPayload{BattingIndex: 0}))
	if len(g.Details) != 1 || g.Details[0].Result != "" {
		t.Fatalf("Skip should record an empty result: %+v", g.Details)
	}

	// A skipped turn is not a plate appearance.
	for _, l := range g.Stats.Batting {
		if l.PlayerID == testPlayers[0] && l.PlateAppearances != 0 {
			t.Errorf("Skip counted as plate appearance: %+v", l)
		}
	}

	// The skip can later be replaced with a real result.
	idx := 0
	mustApply(t, g, mkAction(t, ActionAtBat, AtBatPayload{
		BattingIndex: 0, InningIndex: &idx, Result: ResultWalk,
	}))
	if len(g.Details) != 1 || g.Details[0].Result != ResultWalk {
		t.Errorf("Skip not replaced: %+v", g.Details)
	}

	// Skipping a turn that already has a result is an error.
	if _, err := ApplyAction(g, mkAction(t, ActionSkipTurn, SkipTurnPayload{BattingIndex: 0})); err == nil {
		t.Error("Expected error skipping a recorded at-bat")
	}
}

func TestPinchHitter(t *testing.T) {
	g := startedGame(t, true)
	pinch := testPlayers[9]

	mustApply(t, g, mkAction(t, ActionPinchHitter, PinchPayload{
		BattingIndex: 3, PlayerID: pinch,
	}))

	if len(g.Batting) != 10 {
		t.Fatalf("Expected 10 batting rows, got %d", len(g.Batting))
	}
	checkContiguous(t, g)

	// The new occupancy row sits right after the replaced one, in the
	// same order slot.
	row := findBatting(g, 4)
	if row == nil || row.PlayerID != pinch {
		t.Fatalf("Pinch hitter not at battingIndex 4: %+v", row)
	}
	if row.BattingOrder != 4 {
		t.Errorf("Pinch hitter order = %d, want 4", row.BattingOrder)
	}
	if row.CurrentPosition() != PosPinchHitter {
		t.Errorf("Pinch hitter position = %q", row.CurrentPosition())
	}

	// The live lineup shows the pinch hitter in slot 4.
	occ := CurrentOccupants(g)
	if len(occ) != 9 || occ[3].PlayerID != pinch {
		t.Errorf("CurrentOccupants slot 4 = %s, want %s", occ[3].PlayerID, pinch)
	}
	// The starting lineup still shows the original batter.
	start := StartingLineup(g)
	if start[3].PlayerID != testPlayers[3] {
		t.Errorf("StartingLineup slot 4 = %s, want %s", start[3].PlayerID, testPlayers[3])
	}
}

func TestPinchHitterRejectedAfterAtBat(t *testing.T) {
	g := startedGame(t, true)
	mustApply(t, g, mkAction(t, ActionAtBat, AtBatPayload{
		BattingIndex: 3, Result: ResultSingle,
	}))
	if _, err := ApplyAction(g, mkAction(t, ActionPinchHitter, PinchPayload{
		BattingIndex: 3, PlayerID: testPlayers[9],
	})); err == nil {
		t.Error("Expected error pinch hitting for a completed at-bat")
	}

	// A pinch runner enters after the at-bat, so it is allowed.
	mustApply(t, g, mkAction(t, ActionPinchRunner, PinchPayload{
		BattingIndex: 3, PlayerID: testPlayers[9],
	}))
	if row := findBatting(g, 4); row == nil || row.CurrentPosition() != PosPinchRunner {
		t.Errorf("Pinch runner not recorded: %+v", row)
	}
}

func TestPinchShiftsLaterDetails(t *testing.T) {
	g := startedGame(t, true)
	mustApply(t, g, mkAction(t, ActionAtBat, AtBatPayload{
		BattingIndex: 5, Result: ResultTriple,
	}))

	mustApply(t, g, mkAction(t, ActionPinchHitter, PinchPayload{
		BattingIndex: 2, PlayerID: testPlayers[9],
	}))

	// The detail recorded for old index 5 follows its row to index 6.
	if d := findDetail(g, 6, 0); d == nil || d.Result != ResultTriple {
		t.Errorf("Detail did not shift with its row: %+v", g.Details)
	}
	if d := findDetail(g, 5, 0); d != nil {
		t.Errorf("Stale detail left at old index: %+v", d)
	}
}

func TestAddSlot(t *testing.T) {
	g := startedGame(t, true)

	// Append a tenth slot at the end of the order.
	mustApply(t, g, mkAction(t, ActionAddSlot, AddSlotPayload{
		AfterBattingIndex: 8, PlayerID: testPlayers[9],
	}))
	occ := CurrentOccupants(g)
	if len(occ) != 10 || occ[9].PlayerID != testPlayers[9] {
		t.Fatalf("Slot 10 = %+v", occ)
	}
	checkContiguous(t, g)

	// A new leadoff slot pushes every other slot down.
	mustApply(t, g, mkAction(t, ActionAddSlot, AddSlotPayload{
		AfterBattingIndex: -1, PlayerID: testPlayers[10],
	}))
	occ = CurrentOccupants(g)
	if len(occ) != 11 {
		t.Fatalf("Expected 11 slots, got %d", len(occ))
	}
	if occ[0].PlayerID != testPlayers[10] || occ[0].BattingOrder != 1 {
		t.Errorf("New leadoff = %+v", occ[0])
	}
	if occ[1].PlayerID != testPlayers[0] || occ[1].BattingOrder != 2 {
		t.Errorf("Old leadoff not pushed to slot 2: %+v", occ[1])
	}
	checkContiguous(t, g)

	for i, b := range occ {
		if b.BattingOrder != i+1 {
			t.Errorf("Order slot %d = %d", i+1, b.BattingOrder)
		}
	}
}

func TestReplaceBatter(t *testing.T) {
	g := startedGame(t, true)
	mustApply(t, g, mkAction(t, ActionAtBat, AtBatPayload{
		BattingIndex: 0, Result: ResultSingle,
	}))

	mustApply(t, g, mkAction(t, ActionReplaceBatter, ReplaceBatterPayload{
		BattingIndex: 0, PlayerID: testPlayers[9],
	}))

	// Identity changes, results stay.
	if g.Batting[0].PlayerID != testPlayers[9] {
		t.Errorf("PlayerID not replaced: %s", g.Batting[0].PlayerID)
	}
	if len(g.Batting) != 9 {
		t.Errorf("Replace created a new row: %d", len(g.Batting))
	}
	if d := findDetail(g, 0, 0); d == nil || d.Result != ResultSingle {
		t.Errorf("Recorded result lost: %+v", g.Details)
	}
	// The stats now credit the corrected player.
	found := false
	for _, l := range g.Stats.Batting {
		if l.PlayerID == testPlayers[9] && l.Hits == 1 {
			found = true
		}
	}
	if !found {
		t.Errorf("Stats not recomputed for replacement: %+v", g.Stats.Batting)
	}
}

func TestPitcherChange(t *testing.T) {
	g := startedGame(t, false) // fielding first
	reliever := testPlayers[9]

	mustApply(t, g, mkAction(t, ActionPitcherChange, PitcherChangePayload{PlayerID: reliever}))

	if len(g.Pitching) != 2 {
		t.Fatalf("Expected 2 pitching appearances, got %d", len(g.Pitching))
	}
	orders := make(map[int]bool)
	for _, p := range g.Pitching {
		if orders[p.PitchingOrder] {
			t.Errorf("Duplicate pitchingOrder %d", p.PitchingOrder)
		}
		orders[p.PitchingOrder] = true
	}
	if p := findPitching(g, 2); p == nil || p.PlayerID != reliever {
		t.Errorf("Appearance #2 = %+v", p)
	}

	// The reliever also takes the pitcher's batting slot.
	occ := CurrentOccupants(g)
	if occ[0].PlayerID != reliever || occ[0].CurrentPosition() != PosPitcher {
		t.Errorf("Reliever not in slot 1: %+v", occ[0])
	}
	checkContiguous(t, g)

	// A third pitcher keeps the order sequence unique.
	mustApply(t, g, mkAction(t, ActionPitcherChange, PitcherChangePayload{PlayerID: testPlayers[10]}))
	if p := findPitching(g, 3); p == nil || p.PlayerID != testPlayers[10] {
		t.Errorf("Appearance #3 = %+v", p)
	}
}

func TestFieldingChange(t *testing.T) {
	g := startedGame(t, false)

	// Same player, new position: history appends.
	mustApply(t, g, mkAction(t, ActionFieldingChange, FieldingChangePayload{
		BattingIndex: 1, Position: PosFirst,
	}))
	b := findBatting(g, 1)
	if len(b.Positions) != 2 || b.CurrentPosition() != PosFirst {
		t.Errorf("Position history = %v", b.Positions)
	}

	// New player moving to P: substitution plus a pitching appearance.
	sub := testPlayers[9]
	mustApply(t, g, mkAction(t, ActionFieldingChange, FieldingChangePayload{
		BattingIndex: 2, Position: PosPitcher, PlayerID: sub,
	}))
	checkContiguous(t, g)
	occ := CurrentOccupants(g)
	if occ[2].PlayerID != sub || occ[2].CurrentPosition() != PosPitcher {
		t.Errorf("Substitute not in slot 3 at P: %+v", occ[2])
	}
	if p := findPitching(g, 2); p == nil || p.PlayerID != sub {
		t.Errorf("No pitching appearance for substitute: %+v", g.Pitching)
	}
}

func TestPitcherReplace(t *testing.T) {
	g := startedGame(t, false)
	mustApply(t, g, mkAction(t, ActionPitcherReplace, PitcherReplacePayload{
		PitchingOrder: 1, PlayerID: testPlayers[9],
	}))
	if g.Pitching[0].PlayerID != testPlayers[9] {
		t.Errorf("Appearance #1 player = %s", g.Pitching[0].PlayerID)
	}
	if _, err := ApplyAction(g, mkAction(t, ActionPitcherReplace, PitcherReplacePayload{
		PitchingOrder: 7, PlayerID: testPlayers[9],
	})); err == nil {
		t.Error("Expected error replacing an unknown appearance")
	}
}

func TestPitcherStats(t *testing.T) {
	g := startedGame(t, false)
	half := 2
	mustApply(t, g, mkAction(t, ActionPitcherStats, PitcherStatsPayload{
		PitchingOrder: 1,
		Line: PitchingLine{
			Innings: 3, Outs: 1, Runs: 2, Strikeouts: 4, Walks: 1, Hits: 3,
		},
		HalfScore: &half,
	}))
	p := findPitching(g, 1)
	if p.Innings != 3 || p.Outs != 1 || p.Strikeouts != 4 {
		t.Errorf("Line not applied: %+v", p)
	}
	// Fielding in the top half: the opponent's runs go to topPoints.
	if g.TopPoints[0] != 2 {
		t.Errorf("TopPoints = %v, want [2]", g.TopPoints)
	}
}

func TestHalfInningEnd(t *testing.T) {
	g := startedGame(t, true)
	half := 3
	mustApply(t, g, mkAction(t, ActionHalfInningEnd, HalfInningEndPayload{HalfScore: &half}))

	// Top of 1 ended: only the flag moves.
	if g.NowIsTop {
		t.Error("NowIsTop still true after top half ended")
	}
	if g.NowInning != 1 || len(g.Innings) != 1 {
		t.Errorf("Inning advanced early: inning=%d innings=%v", g.NowInning, g.Innings)
	}
	if g.TopPoints[0] != 3 {
		t.Errorf("TopPoints = %v, want [3]", g.TopPoints)
	}

	// Bottom of 1 ended: a new inning opens.
	mustApply(t, g, mkAction(t, ActionHalfInningEnd, HalfInningEndPayload{}))
	if !g.NowIsTop || g.NowInning != 2 {
		t.Errorf("Cursor = inning %d top=%v, want 2/true", g.NowInning, g.NowIsTop)
	}
	if len(g.Innings) != 2 || g.Innings[1] != 2 {
		t.Errorf("Innings = %v, want [1 2]", g.Innings)
	}
	if len(g.TopPoints) != 2 || len(g.BottomPoints) != 2 {
		t.Errorf("Point arrays not extended: %v / %v", g.TopPoints, g.BottomPoints)
	}
	if g.TopPoints[1] != 0 || g.BottomPoints[1] != 0 {
		t.Errorf("New inning not zeroed: %v / %v", g.TopPoints, g.BottomPoints)
	}
}

func TestGameConcludeComputedResult(t *testing.T) {
	for _, tc := range []struct {
		name       string
		top        []int
		bottom     []int
		wantStatus int
	}{
		{"Win", []int{1, 0, 2}, []int{0, 1, 1}, StatusWin},
		{"Loss", []int{0, 1}, []int{2, 1}, StatusLoss},
		{"Tie", []int{2, 0}, []int{1, 1}, StatusTie},
	} {
		t.Run(tc.name, func(t *testing.T) {
			g := startedGame(t, true)
			g.TopPoints = tc.top
			g.BottomPoints = tc.bottom
			g.Innings = make([]int, len(tc.top))
			g.NowInning = len(tc.top)

			mustApply(t, g, mkAction(t, ActionGameConclude, GameConcludePayload{}))
			if *g.Status != tc.wantStatus {
				t.Errorf("Status = %d, want %d", *g.Status, tc.wantStatus)
			}
			if got := Phase(g); got != PhaseConcluded {
				t.Errorf("Phase = %s, want %s", got, PhaseConcluded)
			}
		})
	}
}

func TestGameConcludeBattingSecond(t *testing.T) {
	g := startedGame(t, false)

	// Batting second the server cannot infer the result.
	if _, err := ApplyAction(g, mkAction(t, ActionGameConclude, GameConcludePayload{})); err == nil {
		t.Fatal("Expected error concluding a batting-second game without a status")
	}
	if g.IsConcluded() {
		t.Fatal("Game concluded despite error")
	}

	status := StatusWin
	mustApply(t, g, mkAction(t, ActionGameConclude, GameConcludePayload{Status: &status}))
	if *g.Status != StatusWin {
		t.Errorf("Status = %d, want %d", *g.Status, StatusWin)
	}
}

func TestGameConcludeExplicitOverride(t *testing.T) {
	g := startedGame(t, true)
	g.TopPoints = []int{9}
	g.BottomPoints = []int{0}

	// An explicit status wins over the computed result (forfeits).
	status := StatusForfeitLoss
	mustApply(t, g, mkAction(t, ActionGameConclude, GameConcludePayload{Status: &status}))
	if *g.Status != StatusForfeitLoss {
		t.Errorf("Status = %d, want %d", *g.Status, StatusForfeitLoss)
	}
}

func TestConcludedGameRejectsScoring(t *testing.T) {
	g := startedGame(t, true)
	mustApply(t, g, mkAction(t, ActionGameConclude, GameConcludePayload{}))

	if _, err := ApplyAction(g, mkAction(t, ActionAtBat, AtBatPayload{
		BattingIndex: 0, Result: ResultSingle,
	})); err == nil {
		t.Error("AT_BAT accepted on a concluded game")
	}
	// Attendance is not phase-gated; the portal keeps working.
	mustApply(t, g, mkAction(t, ActionAttendanceSet, AttendanceSetPayload{
		PlayerID: testPlayers[0], Value: "yes",
	}))
	if g.Attendance[testPlayers[0]] != "yes" {
		t.Errorf("Attendance = %v", g.Attendance)
	}
}

func TestRunnerUpdateClampsAtZero(t *testing.T) {
	g := startedGame(t, true)
	mustApply(t, g, mkAction(t, ActionRunnerUpdate, RunnerUpdatePayload{
		Updates: []RunnerDelta{
			{BattingIndex: 0, Counter: CounterRun, Delta: 2},
			{BattingIndex: 0, Counter: CounterSteal, Delta: 1},
		},
	}))
	b := findBatting(g, 0)
	if b.Run != 2 || b.Steal != 1 {
		t.Errorf("Counters = run %d steal %d", b.Run, b.Steal)
	}

	mustApply(t, g, mkAction(t, ActionRunnerUpdate, RunnerUpdatePayload{
		Updates: []RunnerDelta{{BattingIndex: 0, Counter: CounterRun, Delta: -5}},
	}))
	if b := findBatting(g, 0); b.Run != 0 {
		t.Errorf("Run = %d, want 0 (clamped)", b.Run)
	}

	if _, err := ApplyAction(g, mkAction(t, ActionRunnerUpdate, RunnerUpdatePayload{
		Updates: []RunnerDelta{{BattingIndex: 77, Counter: CounterRun, Delta: 1}},
	})); err == nil {
		t.Error("Expected error for unknown batting index")
	}
}

func TestGameSchedule(t *testing.T) {
	g := &Game{ID: uuid.NewString()}
	teamId := uuid.NewString()
	mustApply(t, g, mkAction(t, ActionGameSchedule, GameSchedulePayload{
		TeamID:   teamId,
		Start:    "2026-05-02T10:00:00Z",
		Opponent: "Harbor City Herons",
		Ground:   "Riverside Park",
	}))
	if g.TeamID != teamId || g.Opponent != "Harbor City Herons" {
		t.Errorf("Schedule not applied: %+v", g)
	}

	// Editing clears nothing that was not sent.
	opp := "Bayview Pelicans"
	mustApply(t, g, mkAction(t, ActionGameEdit, GameEditPayload{Opponent: &opp}))
	if g.Opponent != "Bayview Pelicans" || g.Ground != "Riverside Park" {
		t.Errorf("Edit applied incorrectly: %+v", g)
	}

	// Once started, the schedule row is frozen.
	mustApply(t, g, mkAction(t, ActionLineupSave, LineupSavePayload{Slots: nineSlots()}))
	b := true
	mustApply(t, g, mkAction(t, ActionGameStart, GameStartPayload{IsBattingFirst: &b}))
	if _, err := ApplyAction(g, mkAction(t, ActionGameSchedule, GameSchedulePayload{
		TeamID: teamId, Start: "2026-06-01T10:00:00Z", Opponent: "X",
	})); err == nil {
		t.Error("GAME_SCHEDULE accepted after start")
	}
}

func TestMoveOrder(t *testing.T) {
	for _, tc := range []struct {
		slot, delta, n, want int
	}{
		{1, 1, 9, 2},
		{9, 1, 9, 1},
		{1, -1, 9, 9},
		{5, 18, 9, 5},
		{3, 0, 9, 3},
		{2, 1, 0, 3}, // n defaults to nine slots
	} {
		if got := MoveOrder(tc.slot, tc.delta, tc.n); got != tc.want {
			t.Errorf("MoveOrder(%d, %d, %d) = %d, want %d", tc.slot, tc.delta, tc.n, got, tc.want)
		}
	}
}
