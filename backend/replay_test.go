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

	"github.com/pmezard/go-difflib/difflib"
)

// The action log is the source of truth: replaying it against a fresh
// game must reproduce the recorded state exactly, whether the actions
// arrive one at a time or as a batch.
func TestReplayReproducesState(t *testing.T) {
	first := true
	two := 2
	actions := []json.RawMessage{
		mkAction(t, ActionGameSchedule, GameSchedulePayload{
			TeamID:   testPlayers[0],
			Start:    "2026-05-02T10:00:00Z",
			Opponent: "Harbor City Herons",
		}),
		mkAction(t, ActionLineupSave, LineupSavePayload{Slots: nineSlots()}),
		mkAction(t, ActionGameStart, GameStartPayload{IsBattingFirst: &first}),
		mkAction(t, ActionAtBat, AtBatPayload{BattingIndex: 0, Result: ResultSingle}),
		mkAction(t, ActionAtBat, AtBatPayload{BattingIndex: 1, Result: ResultHomeRun, RBI: 2}),
		mkAction(t, ActionRunnerUpdate, RunnerUpdatePayload{
			Updates: []RunnerDelta{{BattingIndex: 0, Counter: CounterRun, Delta: 1}},
		}),
		mkAction(t, ActionHalfInningEnd, HalfInningEndPayload{HalfScore: &two}),
		mkAction(t, ActionPitcherStats, PitcherStatsPayload{
			PitchingOrder: 1,
			Line:          PitchingLine{Innings: 1, Strikeouts: 2},
		}),
	}

	sequential := &Game{}
	for _, a := range actions {
		if _, err := ApplyAction(sequential, a); err != nil {
			t.Fatalf("ApplyAction failed: %v", err)
		}
	}

	batched := &Game{}
	if _, err := ApplyActions(batched, actions); err != nil {
		t.Fatalf("ApplyActions failed: %v", err)
	}

	want, err := json.MarshalIndent(sequential, "", "  ")
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	got, err := json.MarshalIndent(batched, "", "  ")
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	if string(want) != string(got) {
		diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(string(want)),
			B:        difflib.SplitLines(string(got)),
			FromFile: "Sequential",
			ToFile:   "Batched",
			Context:  3,
		})
		t.Errorf("Replay mismatch:\n%s", diff)
	}

	// A third replay from the recorded log itself.
	replayed := &Game{}
	if _, err := ApplyActions(replayed, sequential.ActionLog); err != nil {
		t.Fatalf("Replay from log failed: %v", err)
	}
	replayedJSON, _ := json.MarshalIndent(replayed, "", "  ")
	if string(replayedJSON) != string(want) {
		diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(string(want)),
			B:        difflib.SplitLines(string(replayedJSON)),
			FromFile: "Recorded",
			ToFile:   "Replayed",
			Context:  3,
		})
		t.Errorf("Log replay mismatch:\n%s", diff)
	}
}
