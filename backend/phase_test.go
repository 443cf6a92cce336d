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

import "testing"

func TestPhase(t *testing.T) {
	inProgress := StatusInProgress
	win := StatusWin

	lineup := func(n int) []BattingResult {
		rows := make([]BattingResult, n)
		for i := range rows {
			rows[i] = BattingResult{BattingIndex: i, BattingOrder: i + 1, PlayerID: testPlayers[i%len(testPlayers)]}
		}
		return rows
	}

	tests := []struct {
		name string
		game Game
		want GamePhase
	}{
		{"Empty", Game{}, PhaseBuilding},
		{"ShortLineup", Game{Batting: lineup(8)}, PhaseBuilding},
		{"FullLineup", Game{Batting: lineup(9)}, PhaseConfirming},
		{
			"BattingFirstTop",
			Game{Status: &inProgress, Batting: lineup(9), IsBattingFirst: true, NowIsTop: true},
			PhaseBatting,
		},
		{
			"BattingFirstBottom",
			Game{Status: &inProgress, Batting: lineup(9), IsBattingFirst: true, NowIsTop: false},
			PhaseFielding,
		},
		{
			"BattingSecondTop",
			Game{Status: &inProgress, Batting: lineup(9), IsBattingFirst: false, NowIsTop: true},
			PhaseFielding,
		},
		{
			"BattingSecondBottom",
			Game{Status: &inProgress, Batting: lineup(9), IsBattingFirst: false, NowIsTop: false},
			PhaseBatting,
		},
		{"Concluded", Game{Status: &win, Batting: lineup(9)}, PhaseConcluded},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Phase(&tc.game); got != tc.want {
				t.Errorf("Phase = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestPhaseAllowsAction(t *testing.T) {
	inProgress := StatusInProgress
	rows := make([]BattingResult, 9)
	for i := range rows {
		rows[i] = BattingResult{BattingIndex: i, BattingOrder: i + 1}
	}
	batting := Game{Status: &inProgress, Batting: rows, IsBattingFirst: true, NowIsTop: true}
	fielding := Game{Status: &inProgress, Batting: rows, IsBattingFirst: true, NowIsTop: false}
	building := Game{}

	tests := []struct {
		name   string
		game   *Game
		action string
		want   bool
	}{
		{"AtBatWhileBatting", &batting, ActionAtBat, true},
		{"AtBatWhileFielding", &fielding, ActionAtBat, false},
		{"PitcherStatsWhileFielding", &fielding, ActionPitcherStats, true},
		{"PitcherStatsWhileBatting", &batting, ActionPitcherStats, false},
		{"PitcherChangeWhileBatting", &batting, ActionPitcherChange, false},
		{"FieldingChangeEitherHalf", &batting, ActionFieldingChange, true},
		{"LineupSaveInProgress", &batting, ActionLineupSave, false},
		{"LineupSaveBuilding", &building, ActionLineupSave, true},
		{"GameStartBuilding", &building, ActionGameStart, false},
		{"HalfInningEnd", &fielding, ActionHalfInningEnd, true},
		{"ConcludeWhileBatting", &batting, ActionGameConclude, true},
		// Ungated actions pass in any phase.
		{"ScheduleUngated", &batting, ActionGameSchedule, true},
		{"AttendanceUngated", &building, ActionAttendanceSet, true},
		{"EditUngated", &fielding, ActionGameEdit, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := PhaseAllowsAction(tc.game, tc.action); got != tc.want {
				t.Errorf("PhaseAllowsAction(%s) = %v, want %v", tc.action, got, tc.want)
			}
		})
	}
}
