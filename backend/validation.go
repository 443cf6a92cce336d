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
	"net/mail"
	"regexp"
	"time"
)

// uuidRegex is a regex for standard UUIDs (8-4-4-4-12 hex digits)
var uuidRegex = regexp.MustCompile(`^[a-fA-F0-9]{8}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{12}$`)

// isValidUUID checks if the string is a valid UUID.
func isValidUUID(id string) bool {
	return uuidRegex.MatchString(id)
}

// isValidEmail checks if the string is a valid email address.
func isValidEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

const (
	CurrentProtocolVersion = 1
	CurrentAppVersion      = "0.1.0"
)

// ActionTypes constants
const (
	ActionGameSchedule   = "GAME_SCHEDULE"
	ActionGameEdit       = "GAME_EDIT"
	ActionLineupSave     = "LINEUP_SAVE"
	ActionGameStart      = "GAME_START"
	ActionAtBat          = "AT_BAT"
	ActionRunnerUpdate   = "RUNNER_UPDATE"
	ActionPinchHitter    = "PINCH_HITTER"
	ActionPinchRunner    = "PINCH_RUNNER"
	ActionSkipTurn       = "SKIP_TURN"
	ActionAddSlot        = "ADD_SLOT"
	ActionReplaceBatter  = "REPLACE_BATTER"
	ActionPitcherStats   = "PITCHER_STATS"
	ActionPitcherChange  = "PITCHER_CHANGE"
	ActionFieldingChange = "FIELDING_CHANGE"
	ActionPitcherReplace = "PITCHER_REPLACE"
	ActionHalfInningEnd  = "HALF_INNING_END"
	ActionGameConclude   = "GAME_CONCLUDE"
	ActionAttendanceSet  = "ATTENDANCE_SET"
)

// BaseAction represents the common fields of an action.
type BaseAction struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Payload       json.RawMessage `json:"payload"`
	Timestamp     int64           `json:"timestamp"`
	SchemaVersion int             `json:"schemaVersion,omitempty"`
}

// ValidateGameData validates the entire game data structure including the action log.
func ValidateGameData(data []byte) error {
	var game struct {
		ID        string            `json:"id"`
		ActionLog []json.RawMessage `json:"actionLog"`
	}
	if err := json.Unmarshal(data, &game); err != nil {
		return fmt.Errorf("invalid game JSON: %w", err)
	}

	if !isValidUUID(game.ID) {
		return fmt.Errorf("invalid game ID format: %s", game.ID)
	}

	for i, rawAction := range game.ActionLog {
		if err := ValidateAction(rawAction); err != nil {
			return fmt.Errorf("invalid action at index %d: %w", i, err)
		}
	}

	return nil
}

// ValidateAction validates a single action from raw JSON.
func ValidateAction(raw json.RawMessage) error {
	var action BaseAction
	if err := json.Unmarshal(raw, &action); err != nil {
		return fmt.Errorf("malformed action JSON")
	}

	if !isValidUUID(action.ID) {
		return fmt.Errorf("invalid action ID: %s", action.ID)
	}
	if action.Type == "" {
		return fmt.Errorf("missing action type")
	}

	return validateActionPayload(action.Type, action.Payload)
}

// validateActionPayload validates the payload based on the action type.
func validateActionPayload(actionType string, payload json.RawMessage) error {
	switch actionType {
	case ActionGameSchedule:
		return validateGameSchedule(payload)
	case ActionGameEdit:
		return validateGameEdit(payload)
	case ActionLineupSave:
		return validateLineupSave(payload)
	case ActionGameStart:
		return validateGameStart(payload)
	case ActionAtBat:
		return validateAtBat(payload)
	case ActionRunnerUpdate:
		return validateRunnerUpdate(payload)
	case ActionPinchHitter, ActionPinchRunner:
		return validatePinch(payload)
	case ActionSkipTurn:
		return validateSkipTurn(payload)
	case ActionAddSlot:
		return validateAddSlot(payload)
	case ActionReplaceBatter:
		return validateReplaceBatter(payload)
	case ActionPitcherStats:
		return validatePitcherStats(payload)
	case ActionPitcherChange:
		return validatePitcherChange(payload)
	case ActionFieldingChange:
		return validateFieldingChange(payload)
	case ActionPitcherReplace:
		return validatePitcherReplace(payload)
	case ActionHalfInningEnd:
		return validateHalfInningEnd(payload)
	case ActionGameConclude:
		return validateGameConclude(payload)
	case ActionAttendanceSet:
		return validateAttendanceSet(payload)
	default:
		return fmt.Errorf("unknown action type: %s", actionType)
	}
}

// validateStringLen checks if the string length is within the limit.
func validateStringLen(s string, max int, name string) error {
	if len(s) > max {
		return fmt.Errorf("%s too long (max %d chars)", name, max)
	}
	return nil
}

// --- Specific Payload Validators ---

func validateScheduleFields(start, opponent, ground, league, comment string) error {
	if start != "" {
		if _, err := time.Parse(time.RFC3339, start); err != nil {
			return fmt.Errorf("invalid start time: %v", err)
		}
	}
	if err := validateStringLen(opponent, 50, "opponent"); err != nil {
		return err
	}
	if err := validateStringLen(ground, 100, "ground"); err != nil {
		return err
	}
	if err := validateStringLen(league, 100, "league"); err != nil {
		return err
	}
	return validateStringLen(comment, 500, "comment")
}

func validateGameSchedule(payload json.RawMessage) error {
	var p GameSchedulePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	if !isValidUUID(p.TeamID) {
		return fmt.Errorf("invalid team ID in payload")
	}
	if p.Start == "" {
		return fmt.Errorf("missing start time")
	}
	if p.Opponent == "" {
		return fmt.Errorf("missing opponent")
	}
	return validateScheduleFields(p.Start, p.Opponent, p.Ground, p.League, p.Comment)
}

func validateGameEdit(payload json.RawMessage) error {
	var p GameEditPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	var start, opponent, ground, league, comment string
	if p.Start != nil {
		start = *p.Start
		if start == "" {
			return fmt.Errorf("start time cannot be cleared")
		}
	}
	if p.Opponent != nil {
		opponent = *p.Opponent
	}
	if p.Ground != nil {
		ground = *p.Ground
	}
	if p.League != nil {
		league = *p.League
	}
	if p.Comment != nil {
		comment = *p.Comment
	}
	return validateScheduleFields(start, opponent, ground, league, comment)
}

func validateLineupSave(payload json.RawMessage) error {
	var p LineupSavePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	if len(p.Slots) < MinLineupSlots {
		return fmt.Errorf("lineup needs at least %d slots, got %d", MinLineupSlots, len(p.Slots))
	}
	for i, s := range p.Slots {
		if !isValidUUID(s.PlayerID) {
			return fmt.Errorf("slot %d: invalid player ID", i+1)
		}
		if s.Position != "" && !validPositions[s.Position] {
			return fmt.Errorf("slot %d: invalid position %q", i+1, s.Position)
		}
	}
	return validateScheduleFields(p.Start, p.Opponent, p.Ground, p.League, p.Comment)
}

func validateGameStart(payload json.RawMessage) error {
	var p GameStartPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	// The bat/field choice must be explicit, not defaulted.
	if p.IsBattingFirst == nil {
		return fmt.Errorf("missing isBattingFirst")
	}
	return nil
}

func validateRunnerDeltas(runners []RunnerDelta) error {
	for _, r := range runners {
		if r.BattingIndex < 0 || r.BattingIndex > 999 {
			return fmt.Errorf("invalid batting index: %d", r.BattingIndex)
		}
		switch r.Counter {
		case CounterRun, CounterSteal, CounterStealMiss, CounterFieldError:
		default:
			return fmt.Errorf("invalid runner counter: %s", r.Counter)
		}
		if r.Delta < -99 || r.Delta > 99 {
			return fmt.Errorf("invalid runner delta: %d", r.Delta)
		}
	}
	return nil
}

func validateAtBat(payload json.RawMessage) error {
	var p AtBatPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	if p.BattingIndex < 0 || p.BattingIndex > 999 {
		return fmt.Errorf("invalid batting index: %d", p.BattingIndex)
	}
	if p.Result == "" {
		return fmt.Errorf("missing result")
	}
	if !validResults[p.Result] {
		return fmt.Errorf("invalid result: %s", p.Result)
	}
	if p.Direction != "" && !validPositions[p.Direction] {
		return fmt.Errorf("invalid direction: %s", p.Direction)
	}
	if p.RBI < 0 || p.RBI > 4 {
		return fmt.Errorf("invalid rbi: %d", p.RBI)
	}
	if p.HalfScore != nil && (*p.HalfScore < 0 || *p.HalfScore > 99) {
		return fmt.Errorf("invalid half score: %d", *p.HalfScore)
	}
	return validateRunnerDeltas(p.Runners)
}

func validateRunnerUpdate(payload json.RawMessage) error {
	var p RunnerUpdatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	if len(p.Updates) == 0 {
		return fmt.Errorf("missing updates")
	}
	return validateRunnerDeltas(p.Updates)
}

func validatePinch(payload json.RawMessage) error {
	var p PinchPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	if p.BattingIndex < 0 || p.BattingIndex > 999 {
		return fmt.Errorf("invalid batting index: %d", p.BattingIndex)
	}
	if !isValidUUID(p.PlayerID) {
		return fmt.Errorf("invalid player ID")
	}
	return nil
}

func validateSkipTurn(payload json.RawMessage) error {
	var p SkipTurnPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	if p.BattingIndex < 0 || p.BattingIndex > 999 {
		return fmt.Errorf("invalid batting index: %d", p.BattingIndex)
	}
	return nil
}

func validateAddSlot(payload json.RawMessage) error {
	var p AddSlotPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	if p.AfterBattingIndex < -1 || p.AfterBattingIndex > 999 {
		return fmt.Errorf("invalid batting index: %d", p.AfterBattingIndex)
	}
	if !isValidUUID(p.PlayerID) {
		return fmt.Errorf("invalid player ID")
	}
	if p.Position != "" && !validPositions[p.Position] {
		return fmt.Errorf("invalid position: %s", p.Position)
	}
	return nil
}

func validateReplaceBatter(payload json.RawMessage) error {
	var p ReplaceBatterPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	if p.BattingIndex < 0 || p.BattingIndex > 999 {
		return fmt.Errorf("invalid batting index: %d", p.BattingIndex)
	}
	if !isValidUUID(p.PlayerID) {
		return fmt.Errorf("invalid player ID")
	}
	return nil
}

func validatePitchingLine(line PitchingLine) error {
	if line.Innings < 0 || line.Innings > 99 {
		return fmt.Errorf("invalid innings: %d", line.Innings)
	}
	if line.Outs < 0 || line.Outs > 2 {
		return fmt.Errorf("invalid outs: %d", line.Outs)
	}
	for name, v := range map[string]int{
		"runs": line.Runs, "strikeouts": line.Strikeouts, "walks": line.Walks,
		"hitByPitch": line.HitByPitch, "hits": line.Hits, "homeRuns": line.HomeRuns,
	} {
		if v < 0 || v > 99 {
			return fmt.Errorf("invalid %s: %d", name, v)
		}
	}
	if line.Decision != "" && line.Decision != DecisionWin && line.Decision != DecisionLose {
		return fmt.Errorf("invalid decision: %s", line.Decision)
	}
	return nil
}

func validatePitcherStats(payload json.RawMessage) error {
	var p PitcherStatsPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	if p.PitchingOrder < 1 || p.PitchingOrder > 99 {
		return fmt.Errorf("invalid pitching order: %d", p.PitchingOrder)
	}
	if p.HalfScore != nil && (*p.HalfScore < 0 || *p.HalfScore > 99) {
		return fmt.Errorf("invalid half score: %d", *p.HalfScore)
	}
	return validatePitchingLine(p.Line)
}

func validatePitcherChange(payload json.RawMessage) error {
	var p PitcherChangePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	if !isValidUUID(p.PlayerID) {
		return fmt.Errorf("invalid player ID")
	}
	return nil
}

func validateFieldingChange(payload json.RawMessage) error {
	var p FieldingChangePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	if p.BattingIndex < 0 || p.BattingIndex > 999 {
		return fmt.Errorf("invalid batting index: %d", p.BattingIndex)
	}
	if !validPositions[p.Position] {
		return fmt.Errorf("invalid position: %s", p.Position)
	}
	if p.PlayerID != "" && !isValidUUID(p.PlayerID) {
		return fmt.Errorf("invalid player ID")
	}
	return nil
}

func validatePitcherReplace(payload json.RawMessage) error {
	var p PitcherReplacePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	if p.PitchingOrder < 1 || p.PitchingOrder > 99 {
		return fmt.Errorf("invalid pitching order: %d", p.PitchingOrder)
	}
	if !isValidUUID(p.PlayerID) {
		return fmt.Errorf("invalid player ID")
	}
	return nil
}

func validateHalfInningEnd(payload json.RawMessage) error {
	var p HalfInningEndPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	if p.HalfScore != nil && (*p.HalfScore < 0 || *p.HalfScore > 99) {
		return fmt.Errorf("invalid half score: %d", *p.HalfScore)
	}
	if p.PitcherStats != nil {
		if err := validatePitchingLine(p.PitcherStats.Line); err != nil {
			return err
		}
	}
	return validateRunnerDeltas(p.Runners)
}

func validateGameConclude(payload json.RawMessage) error {
	var p GameConcludePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	if p.HalfScore != nil && (*p.HalfScore < 0 || *p.HalfScore > 99) {
		return fmt.Errorf("invalid half score: %d", *p.HalfScore)
	}
	if p.Status != nil && !validStatuses[*p.Status] {
		return fmt.Errorf("invalid status: %d", *p.Status)
	}
	if p.PitcherStats != nil {
		if err := validatePitchingLine(p.PitcherStats.Line); err != nil {
			return err
		}
	}
	return validateRunnerDeltas(p.Runners)
}

func validateAttendanceSet(payload json.RawMessage) error {
	var p AttendanceSetPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	if !isValidUUID(p.PlayerID) {
		return fmt.Errorf("invalid player ID")
	}
	switch p.Value {
	case "yes", "no", "maybe":
	default:
		return fmt.Errorf("invalid attendance value: %s", p.Value)
	}
	return nil
}

// ValidateActions validates a list of actions.
func ValidateActions(actions []json.RawMessage) error {
	for i, raw := range actions {
		if err := ValidateAction(raw); err != nil {
			return fmt.Errorf("invalid action at index %d: %w", i, err)
		}
	}
	return nil
}
