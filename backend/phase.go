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

// GamePhase identifies where a game is in the scoring workflow. It is
// derived entirely from persisted game state so that every node, and a
// restarted node, computes the same phase.
type GamePhase string

const (
	// PhaseBuilding: the game has not started; the lineup can still be
	// edited and the schedule row changed.
	PhaseBuilding GamePhase = "building"
	// PhaseConfirming: a lineup of at least nine slots exists but the
	// game has not started; the pre-game confirmation screen.
	PhaseConfirming GamePhase = "confirming"
	// PhaseBatting: game in progress, our team is at bat.
	PhaseBatting GamePhase = "batting"
	// PhaseFielding: game in progress, our team is in the field.
	PhaseFielding GamePhase = "fielding"
	// PhaseConcluded: the game reached a terminal status.
	PhaseConcluded GamePhase = "concluded"
)

// MinLineupSlots is the smallest lineup that can take the field.
const MinLineupSlots = 9

// Phase computes the game's current phase.
func Phase(g *Game) GamePhase {
	if g.IsConcluded() {
		return PhaseConcluded
	}
	if !g.HasStarted() {
		if len(CurrentOccupants(g)) >= MinLineupSlots {
			return PhaseConfirming
		}
		return PhaseBuilding
	}
	// In progress. Batting first means we bat in the top half.
	if g.NowIsTop == g.IsBattingFirst {
		return PhaseBatting
	}
	return PhaseFielding
}

// phaseAllows maps each action type to the phases it is valid in. Actions
// not listed here are not phase-gated (schedule edits, attendance, etc.).
var phaseAllows = map[string][]GamePhase{
	ActionLineupSave:    {PhaseBuilding, PhaseConfirming},
	ActionGameStart:     {PhaseConfirming},
	ActionAtBat:         {PhaseBatting},
	ActionRunnerUpdate:  {PhaseBatting},
	ActionPinchHitter:   {PhaseBatting},
	ActionPinchRunner:   {PhaseBatting},
	ActionSkipTurn:      {PhaseBatting},
	ActionAddSlot:       {PhaseBatting},
	ActionReplaceBatter: {PhaseBatting, PhaseFielding},
	ActionPitcherStats:  {PhaseFielding},
	ActionPitcherChange: {PhaseFielding},
	ActionFieldingChange: {
		PhaseFielding, PhaseBatting,
	},
	ActionPitcherReplace: {PhaseFielding, PhaseBatting},
	ActionHalfInningEnd:  {PhaseBatting, PhaseFielding},
	ActionGameConclude:   {PhaseBatting, PhaseFielding},
}

// PhaseAllowsAction reports whether the action type may be applied to the
// game in its current phase.
func PhaseAllowsAction(g *Game, actionType string) bool {
	allowed, ok := phaseAllows[actionType]
	if !ok {
		return true
	}
	phase := Phase(g)
	for _, p := range allowed {
		if p == phase {
			return true
		}
	}
	return false
}
