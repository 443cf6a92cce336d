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
	"sort"
)

// --- Action payloads ---

// LineupSlot is one entry of a LINEUP_SAVE payload, in list order.
type LineupSlot struct {
	PlayerID string `json:"playerId"`
	Position string `json:"position,omitempty"`
}

type LineupSavePayload struct {
	Slots    []LineupSlot `json:"slots"`
	Start    string       `json:"start,omitempty"`
	Opponent string       `json:"opponent,omitempty"`
	Ground   string       `json:"ground,omitempty"`
	League   string       `json:"league,omitempty"`
	Comment  string       `json:"comment,omitempty"`
}

type GameStartPayload struct {
	IsBattingFirst *bool `json:"isBattingFirst"`
}

// RunnerDelta adjusts one cumulative counter on one occupant.
type RunnerDelta struct {
	BattingIndex int    `json:"battingIndex"`
	Counter      string `json:"counter"`
	Delta        int    `json:"delta"`
}

type AtBatPayload struct {
	BattingIndex int    `json:"battingIndex"`
	Result       string `json:"result"`
	Direction    string `json:"direction,omitempty"`
	RBI          int    `json:"rbi,omitempty"`
	// InningIndex addresses an existing detail when re-submitting from
	// review mode. When nil the server computes the index for a new
	// plate appearance.
	InningIndex *int          `json:"inningIndex,omitempty"`
	HalfScore   *int          `json:"halfScore,omitempty"`
	Runners     []RunnerDelta `json:"runners,omitempty"`
}

type RunnerUpdatePayload struct {
	Updates []RunnerDelta `json:"updates"`
}

type PinchPayload struct {
	BattingIndex int    `json:"battingIndex"`
	PlayerID     string `json:"playerId"`
}

type SkipTurnPayload struct {
	BattingIndex int `json:"battingIndex"`
}

type AddSlotPayload struct {
	// AfterBattingIndex is the occupancy row the new slot goes after.
	// -1 inserts a new leadoff slot.
	AfterBattingIndex int    `json:"afterBattingIndex"`
	PlayerID          string `json:"playerId"`
	Position          string `json:"position,omitempty"`
}

type ReplaceBatterPayload struct {
	BattingIndex int    `json:"battingIndex"`
	PlayerID     string `json:"playerId"`
}

// PitchingLine is the editable stat block of a pitching appearance.
type PitchingLine struct {
	Innings    int    `json:"innings"`
	Outs       int    `json:"outs"`
	Runs       int    `json:"runs"`
	Strikeouts int    `json:"strikeouts"`
	Walks      int    `json:"walks"`
	HitByPitch int    `json:"hitByPitch"`
	Hits       int    `json:"hits"`
	HomeRuns   int    `json:"homeRuns"`
	Decision   string `json:"decision,omitempty"`
	Hold       bool   `json:"hold,omitempty"`
	Save       bool   `json:"save,omitempty"`
}

type PitcherStatsPayload struct {
	PitchingOrder int          `json:"pitchingOrder"`
	Line          PitchingLine `json:"line"`
	HalfScore     *int         `json:"halfScore,omitempty"`
}

type PitcherChangePayload struct {
	PlayerID string `json:"playerId"`
}

type FieldingChangePayload struct {
	BattingIndex int    `json:"battingIndex"`
	Position     string `json:"position"`
	// PlayerID, when set to a different player, substitutes that player
	// into the slot at the same time.
	PlayerID string `json:"playerId,omitempty"`
}

type PitcherReplacePayload struct {
	PitchingOrder int    `json:"pitchingOrder"`
	PlayerID      string `json:"playerId"`
}

type HalfInningEndPayload struct {
	HalfScore    *int                 `json:"halfScore,omitempty"`
	Runners      []RunnerDelta        `json:"runners,omitempty"`
	PitcherStats *PitcherStatsPayload `json:"pitcherStats,omitempty"`
}

type GameConcludePayload struct {
	HalfScore    *int                 `json:"halfScore,omitempty"`
	Runners      []RunnerDelta        `json:"runners,omitempty"`
	PitcherStats *PitcherStatsPayload `json:"pitcherStats,omitempty"`
	// Status is required to conclude a game in which the team batted
	// second, and overrides the computed result otherwise (forfeits,
	// cancellations).
	Status *int `json:"status,omitempty"`
}

type GameSchedulePayload struct {
	TeamID   string `json:"teamId"`
	Start    string `json:"start"`
	Opponent string `json:"opponent"`
	Ground   string `json:"ground,omitempty"`
	League   string `json:"league,omitempty"`
	Comment  string `json:"comment,omitempty"`
}

type GameEditPayload struct {
	Start    *string `json:"start,omitempty"`
	Opponent *string `json:"opponent,omitempty"`
	Ground   *string `json:"ground,omitempty"`
	League   *string `json:"league,omitempty"`
	Comment  *string `json:"comment,omitempty"`
}

type AttendanceSetPayload struct {
	PlayerID string `json:"playerId"`
	Value    string `json:"value"`
}

// --- Lineup queries ---

// CurrentOccupants returns the latest occupant of each batting order
// slot, sorted by batting order. This is the live lineup.
func CurrentOccupants(g *Game) []BattingResult {
	latest := make(map[int]BattingResult)
	for _, b := range g.Batting {
		cur, ok := latest[b.BattingOrder]
		if !ok || b.BattingIndex > cur.BattingIndex {
			latest[b.BattingOrder] = b
		}
	}
	out := make([]BattingResult, 0, len(latest))
	for _, b := range latest {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BattingOrder < out[j].BattingOrder })
	return out
}

// StartingLineup returns the first occupant of each batting order slot,
// sorted by batting order. Used to copy a lineup from a previous game.
func StartingLineup(g *Game) []BattingResult {
	first := make(map[int]BattingResult)
	for _, b := range g.Batting {
		cur, ok := first[b.BattingOrder]
		if !ok || b.BattingIndex < cur.BattingIndex {
			first[b.BattingOrder] = b
		}
	}
	out := make([]BattingResult, 0, len(first))
	for _, b := range first {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BattingOrder < out[j].BattingOrder })
	return out
}

// MoveOrder returns the 1-based batting order slot reached by moving
// delta steps from slot, wrapping around n slots. This mirrors the
// recorder's cursor movement and is used when replaying logs.
func MoveOrder(slot, delta, n int) int {
	if n <= 0 {
		n = MinLineupSlots
	}
	s := (slot - 1 + delta) % n
	if s < 0 {
		s += n
	}
	return s + 1
}

func findBatting(g *Game, battingIndex int) *BattingResult {
	for i := range g.Batting {
		if g.Batting[i].BattingIndex == battingIndex {
			return &g.Batting[i]
		}
	}
	return nil
}

func findDetail(g *Game, battingIndex, inningIndex int) *BattingDetail {
	for i := range g.Details {
		if g.Details[i].BattingIndex == battingIndex && g.Details[i].InningIndex == inningIndex {
			return &g.Details[i]
		}
	}
	return nil
}

func findPitching(g *Game, order int) *PitchingResult {
	for i := range g.Pitching {
		if g.Pitching[i].PitchingOrder == order {
			return &g.Pitching[i]
		}
	}
	return nil
}

func maxPitchingOrder(g *Game) int {
	max := 0
	for _, p := range g.Pitching {
		if p.PitchingOrder > max {
			max = p.PitchingOrder
		}
	}
	return max
}

// nextInningIndex computes the innings-array index the next new plate
// appearance belongs to. The newest detail's index is reused until every
// live slot has a record there; a full circuit of the order opens the
// next index. A half-inning transition also moves the floor forward.
func nextInningIndex(g *Game) int {
	cur := g.NowInning - 1
	if cur < 0 {
		cur = 0
	}
	if len(g.Details) == 0 {
		return cur
	}
	idx := g.Details[len(g.Details)-1].InningIndex
	count := 0
	for _, d := range g.Details {
		if d.InningIndex == idx {
			count++
		}
	}
	if n := len(CurrentOccupants(g)); n > 0 && count >= n {
		idx++
	}
	if idx < cur {
		idx = cur
	}
	return idx
}

// insertBattingAt inserts an occupancy row at the given battingIndex,
// shifting the index of every later row (and of its details) up by one.
// The whole shift commits with the single game file write.
func insertBattingAt(g *Game, battingIndex int, row BattingResult) {
	for i := range g.Batting {
		if g.Batting[i].BattingIndex >= battingIndex {
			g.Batting[i].BattingIndex++
		}
	}
	for i := range g.Details {
		if g.Details[i].BattingIndex >= battingIndex {
			g.Details[i].BattingIndex++
		}
	}
	row.BattingIndex = battingIndex
	g.Batting = append(g.Batting, row)
	sort.Slice(g.Batting, func(i, j int) bool {
		return g.Batting[i].BattingIndex < g.Batting[j].BattingIndex
	})
}

// insertPitchingAt inserts a pitching appearance at the given order.
// Later appearances shift up by one, applied in descending order so no
// two rows ever share an order number.
func insertPitchingAt(g *Game, order int, row PitchingResult) {
	idx := make([]int, 0, len(g.Pitching))
	for i := range g.Pitching {
		if g.Pitching[i].PitchingOrder >= order {
			idx = append(idx, i)
		}
	}
	sort.Slice(idx, func(a, b int) bool {
		return g.Pitching[idx[a]].PitchingOrder > g.Pitching[idx[b]].PitchingOrder
	})
	for _, i := range idx {
		g.Pitching[i].PitchingOrder++
	}
	row.PitchingOrder = order
	g.Pitching = append(g.Pitching, row)
	sort.Slice(g.Pitching, func(i, j int) bool {
		return g.Pitching[i].PitchingOrder < g.Pitching[j].PitchingOrder
	})
}

func upsertDetail(g *Game, d BattingDetail) {
	if existing := findDetail(g, d.BattingIndex, d.InningIndex); existing != nil {
		*existing = d
		return
	}
	g.Details = append(g.Details, d)
}

func applyRunnerDeltas(g *Game, deltas []RunnerDelta) error {
	for _, r := range deltas {
		b := findBatting(g, r.BattingIndex)
		if b == nil {
			return fmt.Errorf("no occupant at batting index %d", r.BattingIndex)
		}
		var field *int
		switch r.Counter {
		case CounterRun:
			field = &b.Run
		case CounterSteal:
			field = &b.Steal
		case CounterStealMiss:
			field = &b.StealMiss
		case CounterFieldError:
			field = &b.FieldError
		default:
			return fmt.Errorf("invalid runner counter: %s", r.Counter)
		}
		*field += r.Delta
		if *field < 0 {
			*field = 0
		}
	}
	return nil
}

// applyHalfScore overwrites the run total for the half-inning currently
// being edited.
func applyHalfScore(g *Game, halfScore *int) error {
	if halfScore == nil {
		return nil
	}
	i := g.NowInning - 1
	if i < 0 || i >= len(g.Innings) {
		return fmt.Errorf("no inning open")
	}
	if g.NowIsTop {
		g.TopPoints[i] = *halfScore
	} else {
		g.BottomPoints[i] = *halfScore
	}
	return nil
}

func applyPitchingLine(g *Game, p *PitcherStatsPayload) error {
	row := findPitching(g, p.PitchingOrder)
	if row == nil {
		return fmt.Errorf("no pitching appearance at order %d", p.PitchingOrder)
	}
	row.Innings = p.Line.Innings
	row.Outs = p.Line.Outs
	row.Runs = p.Line.Runs
	row.Strikeouts = p.Line.Strikeouts
	row.Walks = p.Line.Walks
	row.HitByPitch = p.Line.HitByPitch
	row.Hits = p.Line.Hits
	row.HomeRuns = p.Line.HomeRuns
	row.Decision = p.Line.Decision
	row.Hold = p.Line.Hold
	row.Save = p.Line.Save
	return nil
}

// --- Action application ---

// ApplyActions appends multiple actions to the game state.
func ApplyActions(g *Game, actions []json.RawMessage) (bool, error) {
	anyChanged := false
	for _, raw := range actions {
		changed, err := ApplyAction(g, raw)
		if err != nil {
			return anyChanged, err
		}
		if changed {
			anyChanged = true
		}
	}
	return anyChanged, nil
}

// ApplyAction applies an action to the game state and appends it to the
// action log. It assumes validation and authorization have already been
// performed. Returns true if the action was applied, false if it was a
// duplicate.
func ApplyAction(g *Game, raw json.RawMessage) (bool, error) {
	var action BaseAction
	if err := json.Unmarshal(raw, &action); err != nil {
		return false, fmt.Errorf("failed to unmarshal action for apply: %w", err)
	}

	// Idempotency check: scan backwards through the action log for a
	// duplicate ID. The scan is capped so huge logs don't turn every
	// apply into an O(N) pass; retries and double-submissions land
	// within the window in practice.
	const maxScan = 100
	for i, count := len(g.ActionLog)-1, 0; i >= 0 && count < maxScan; i, count = i-1, count+1 {
		var existing BaseAction
		if err := json.Unmarshal(g.ActionLog[i], &existing); err == nil {
			if existing.ID == action.ID {
				return false, nil // Already applied
			}
		}
	}

	if !PhaseAllowsAction(g, action.Type) {
		return false, fmt.Errorf("action %s not allowed in phase %s", action.Type, Phase(g))
	}

	if err := applyActionPayload(g, action.Type, action.Payload); err != nil {
		return false, err
	}

	g.ActionLog = append(g.ActionLog, raw)
	g.LastActionID = action.ID

	// The derived box score is part of the same write; it can never go
	// stale relative to the rows it summarizes.
	refreshStats(g)
	return true, nil
}

func applyActionPayload(g *Game, actionType string, payload json.RawMessage) error {
	switch actionType {
	case ActionGameSchedule:
		var p GameSchedulePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		return applyGameSchedule(g, &p)
	case ActionGameEdit:
		var p GameEditPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		return applyGameEdit(g, &p)
	case ActionLineupSave:
		var p LineupSavePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		return applyLineupSave(g, &p)
	case ActionGameStart:
		var p GameStartPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		return applyGameStart(g, &p)
	case ActionAtBat:
		var p AtBatPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		return applyAtBat(g, &p)
	case ActionRunnerUpdate:
		var p RunnerUpdatePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		return applyRunnerDeltas(g, p.Updates)
	case ActionPinchHitter:
		var p PinchPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		return applyPinch(g, &p, PosPinchHitter)
	case ActionPinchRunner:
		var p PinchPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		return applyPinch(g, &p, PosPinchRunner)
	case ActionSkipTurn:
		var p SkipTurnPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		return applySkipTurn(g, &p)
	case ActionAddSlot:
		var p AddSlotPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		return applyAddSlot(g, &p)
	case ActionReplaceBatter:
		var p ReplaceBatterPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		return applyReplaceBatter(g, &p)
	case ActionPitcherStats:
		var p PitcherStatsPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		if err := applyPitchingLine(g, &p); err != nil {
			return err
		}
		return applyHalfScore(g, p.HalfScore)
	case ActionPitcherChange:
		var p PitcherChangePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		return applyPitcherChange(g, &p)
	case ActionFieldingChange:
		var p FieldingChangePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		return applyFieldingChange(g, &p)
	case ActionPitcherReplace:
		var p PitcherReplacePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		return applyPitcherReplace(g, &p)
	case ActionHalfInningEnd:
		var p HalfInningEndPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		return applyHalfInningEnd(g, &p)
	case ActionGameConclude:
		var p GameConcludePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		return applyGameConclude(g, &p)
	case ActionAttendanceSet:
		var p AttendanceSetPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		return applyAttendanceSet(g, &p)
	default:
		return fmt.Errorf("unknown action type: %s", actionType)
	}
}

func applyGameSchedule(g *Game, p *GameSchedulePayload) error {
	if g.HasStarted() {
		return fmt.Errorf("game already started")
	}
	if g.TeamID == "" {
		g.TeamID = p.TeamID
	}
	g.Start = p.Start
	g.Opponent = p.Opponent
	g.Ground = p.Ground
	g.League = p.League
	g.Comment = p.Comment
	return nil
}

func applyGameEdit(g *Game, p *GameEditPayload) error {
	if p.Start != nil {
		g.Start = *p.Start
	}
	if p.Opponent != nil {
		g.Opponent = *p.Opponent
	}
	if p.Ground != nil {
		g.Ground = *p.Ground
	}
	if p.League != nil {
		g.League = *p.League
	}
	if p.Comment != nil {
		g.Comment = *p.Comment
	}
	return nil
}

// applyLineupSave is a full replacement of the batting order: the
// payload's slot list becomes the lineup in list order.
func applyLineupSave(g *Game, p *LineupSavePayload) error {
	g.Batting = g.Batting[:0]
	g.Details = g.Details[:0]
	for i, s := range p.Slots {
		row := BattingResult{
			BattingIndex: i,
			BattingOrder: i + 1,
			PlayerID:     s.PlayerID,
		}
		if s.Position != "" {
			row.Positions = []string{s.Position}
		}
		g.Batting = append(g.Batting, row)

		// The starting pitcher gets pitching appearance #1.
		if s.Position == PosPitcher {
			if row := findPitching(g, 1); row != nil {
				row.PlayerID = s.PlayerID
			} else {
				g.Pitching = append(g.Pitching, PitchingResult{
					PitchingOrder: 1,
					PlayerID:      s.PlayerID,
				})
			}
		}
	}
	if p.Start != "" {
		g.Start = p.Start
	}
	if p.Opponent != "" {
		g.Opponent = p.Opponent
	}
	if p.Ground != "" {
		g.Ground = p.Ground
	}
	if p.League != "" {
		g.League = p.League
	}
	if p.Comment != "" {
		g.Comment = p.Comment
	}
	return nil
}

func applyGameStart(g *Game, p *GameStartPayload) error {
	if p.IsBattingFirst == nil {
		return fmt.Errorf("missing isBattingFirst")
	}
	if len(CurrentOccupants(g)) < MinLineupSlots {
		return fmt.Errorf("lineup not complete")
	}
	g.setStatus(StatusInProgress)
	g.IsBattingFirst = *p.IsBattingFirst
	g.Innings = []int{1}
	g.TopPoints = []int{0}
	g.BottomPoints = []int{0}
	g.NowInning = 1
	g.NowIsTop = true
	return nil
}

func applyAtBat(g *Game, p *AtBatPayload) error {
	if findBatting(g, p.BattingIndex) == nil {
		return fmt.Errorf("no occupant at batting index %d", p.BattingIndex)
	}
	idx := 0
	if p.InningIndex != nil {
		// Review-mode resubmission must address an existing record.
		idx = *p.InningIndex
		if findDetail(g, p.BattingIndex, idx) == nil {
			return fmt.Errorf("no plate appearance at batting index %d, inning index %d", p.BattingIndex, idx)
		}
	} else {
		idx = nextInningIndex(g)
	}
	upsertDetail(g, BattingDetail{
		BattingIndex: p.BattingIndex,
		InningIndex:  idx,
		Result:       p.Result,
		Direction:    p.Direction,
		RBI:          p.RBI,
	})
	if err := applyRunnerDeltas(g, p.Runners); err != nil {
		return err
	}
	return applyHalfScore(g, p.HalfScore)
}

func applyPinch(g *Game, p *PinchPayload, position string) error {
	b := findBatting(g, p.BattingIndex)
	if b == nil {
		return fmt.Errorf("no occupant at batting index %d", p.BattingIndex)
	}
	if position == PosPinchHitter {
		// A pinch hitter replaces an at-bat that has not happened yet.
		if findDetail(g, p.BattingIndex, nextInningIndex(g)) != nil {
			return fmt.Errorf("at-bat already recorded for batting index %d", p.BattingIndex)
		}
	}
	insertBattingAt(g, b.BattingIndex+1, BattingResult{
		BattingOrder: b.BattingOrder,
		PlayerID:     p.PlayerID,
		Positions:    []string{position},
	})
	return nil
}

func applySkipTurn(g *Game, p *SkipTurnPayload) error {
	if findBatting(g, p.BattingIndex) == nil {
		return fmt.Errorf("no occupant at batting index %d", p.BattingIndex)
	}
	idx := nextInningIndex(g)
	if d := findDetail(g, p.BattingIndex, idx); d != nil && d.Result != "" {
		return fmt.Errorf("at-bat already recorded for batting index %d", p.BattingIndex)
	}
	// Result stays empty: the turn came around, nothing happened. This
	// is distinct from having no record at all.
	upsertDetail(g, BattingDetail{
		BattingIndex: p.BattingIndex,
		InningIndex:  idx,
	})
	return nil
}

func applyAddSlot(g *Game, p *AddSlotPayload) error {
	newIndex := p.AfterBattingIndex + 1
	newOrder := 1
	if p.AfterBattingIndex >= 0 {
		b := findBatting(g, p.AfterBattingIndex)
		if b == nil {
			return fmt.Errorf("no occupant at batting index %d", p.AfterBattingIndex)
		}
		newOrder = b.BattingOrder + 1
	}
	// A new order slot pushes every later slot down.
	for i := range g.Batting {
		if g.Batting[i].BattingOrder >= newOrder {
			g.Batting[i].BattingOrder++
		}
	}
	row := BattingResult{
		BattingOrder: newOrder,
		PlayerID:     p.PlayerID,
	}
	if p.Position != "" {
		row.Positions = []string{p.Position}
	}
	insertBattingAt(g, newIndex, row)
	return nil
}

func applyReplaceBatter(g *Game, p *ReplaceBatterPayload) error {
	b := findBatting(g, p.BattingIndex)
	if b == nil {
		return fmt.Errorf("no occupant at batting index %d", p.BattingIndex)
	}
	// Retroactive correction: the recorded results stay, only the
	// identity changes.
	b.PlayerID = p.PlayerID
	return nil
}

func applyPitcherChange(g *Game, p *PitcherChangePayload) error {
	var cur *BattingResult
	for _, b := range CurrentOccupants(g) {
		if b.CurrentPosition() == PosPitcher {
			bb := findBatting(g, b.BattingIndex)
			cur = bb
			break
		}
	}
	if cur == nil {
		return fmt.Errorf("no current pitcher in the lineup")
	}
	insertBattingAt(g, cur.BattingIndex+1, BattingResult{
		BattingOrder: cur.BattingOrder,
		PlayerID:     p.PlayerID,
		Positions:    []string{PosPitcher},
	})
	insertPitchingAt(g, maxPitchingOrder(g)+1, PitchingResult{
		PlayerID: p.PlayerID,
	})
	return nil
}

func applyFieldingChange(g *Game, p *FieldingChangePayload) error {
	b := findBatting(g, p.BattingIndex)
	if b == nil {
		return fmt.Errorf("no occupant at batting index %d", p.BattingIndex)
	}
	fielder := b.PlayerID
	if p.PlayerID != "" && p.PlayerID != b.PlayerID {
		// Simultaneous substitution: a new occupant takes the slot and
		// the position.
		insertBattingAt(g, b.BattingIndex+1, BattingResult{
			BattingOrder: b.BattingOrder,
			PlayerID:     p.PlayerID,
			Positions:    []string{p.Position},
		})
		fielder = p.PlayerID
	} else if b.CurrentPosition() != p.Position {
		// Position history is append-only.
		b.Positions = append(b.Positions, p.Position)
	}
	if p.Position == PosPitcher {
		insertPitchingAt(g, maxPitchingOrder(g)+1, PitchingResult{
			PlayerID: fielder,
		})
	}
	return nil
}

func applyPitcherReplace(g *Game, p *PitcherReplacePayload) error {
	row := findPitching(g, p.PitchingOrder)
	if row == nil {
		return fmt.Errorf("no pitching appearance at order %d", p.PitchingOrder)
	}
	row.PlayerID = p.PlayerID
	return nil
}

func applyHalfInningEnd(g *Game, p *HalfInningEndPayload) error {
	if err := applyRunnerDeltas(g, p.Runners); err != nil {
		return err
	}
	if p.PitcherStats != nil {
		if err := applyPitchingLine(g, p.PitcherStats); err != nil {
			return err
		}
	}
	if err := applyHalfScore(g, p.HalfScore); err != nil {
		return err
	}
	if g.NowIsTop {
		g.NowIsTop = false
		return nil
	}
	// Bottom of the inning ended: open the next inning.
	next := 1
	if len(g.Innings) > 0 {
		next = g.Innings[len(g.Innings)-1] + 1
	}
	g.Innings = append(g.Innings, next)
	g.TopPoints = append(g.TopPoints, 0)
	g.BottomPoints = append(g.BottomPoints, 0)
	g.NowInning++
	g.NowIsTop = true
	return nil
}

func sumPoints(points []int) int {
	total := 0
	for _, p := range points {
		total += p
	}
	return total
}

func applyGameConclude(g *Game, p *GameConcludePayload) error {
	if err := applyRunnerDeltas(g, p.Runners); err != nil {
		return err
	}
	if p.PitcherStats != nil {
		if err := applyPitchingLine(g, p.PitcherStats); err != nil {
			return err
		}
	}
	if err := applyHalfScore(g, p.HalfScore); err != nil {
		return err
	}
	switch {
	case p.Status != nil:
		// Explicit outcome (forfeits, cancellations, or a game in
		// which the team batted second).
		g.setStatus(*p.Status)
	case g.IsBattingFirst:
		our := sumPoints(g.TopPoints)
		theirs := sumPoints(g.BottomPoints)
		switch {
		case our > theirs:
			g.setStatus(StatusWin)
		case our < theirs:
			g.setStatus(StatusLoss)
		default:
			g.setStatus(StatusTie)
		}
	default:
		// Batting second with no caller-supplied outcome: the game
		// stays in progress rather than guessing a result.
		return fmt.Errorf("missing status for a game batting second")
	}
	return nil
}

func applyAttendanceSet(g *Game, p *AttendanceSetPayload) error {
	if g.Attendance == nil {
		g.Attendance = make(map[string]string)
	}
	g.Attendance[p.PlayerID] = p.Value
	return nil
}
