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

// Schema Versions
const (
	SchemaVersionV1 = 1
)

// Game statuses. A game whose Status pointer is nil has not started yet
// (it is a schedule entry only).
const (
	StatusInProgress  = 0
	StatusWin         = 1
	StatusLoss        = 2
	StatusTie         = 3
	StatusForfeitWin  = 4
	StatusForfeitLoss = 5
	StatusCancelled   = 6
)

// Fielding positions. PH and PR are bookkeeping codes for substitutes
// that enter the order without a fielding assignment.
const (
	PosPitcher     = "P"
	PosCatcher     = "C"
	PosFirst       = "1B"
	PosSecond      = "2B"
	PosThird       = "3B"
	PosShort       = "SS"
	PosLeft        = "LF"
	PosCenter      = "CF"
	PosRight       = "RF"
	PosDH          = "DH"
	PosPinchHitter = "PH"
	PosPinchRunner = "PR"
)

// At-bat result codes. An empty result on a recorded detail means the
// slot's turn came around without a plate appearance (skipped turn).
const (
	ResultSingle     = "1B"
	ResultDouble     = "2B"
	ResultTriple     = "3B"
	ResultHomeRun    = "HR"
	ResultWalk       = "BB"
	ResultHitByPitch = "HBP"
	ResultStrikeout  = "SO"
	ResultGroundOut  = "GO"
	ResultFlyOut     = "FO"
	ResultLineOut    = "LO"
	ResultSacrifice  = "SAC"
	ResultFielderCh  = "FC"
	ResultError      = "E"
	ResultDoublePlay = "DP"
)

// Runner counter fields on a batting occupancy row.
const (
	CounterRun        = "run"
	CounterSteal      = "steal"
	CounterStealMiss  = "stealMiss"
	CounterFieldError = "fieldError"
)

// Pitching decisions.
const (
	DecisionWin  = "win"
	DecisionLose = "lose"
)

var validPositions = map[string]bool{
	PosPitcher: true, PosCatcher: true, PosFirst: true, PosSecond: true,
	PosThird: true, PosShort: true, PosLeft: true, PosCenter: true,
	PosRight: true, PosDH: true, PosPinchHitter: true, PosPinchRunner: true,
}

var validResults = map[string]bool{
	ResultSingle: true, ResultDouble: true, ResultTriple: true,
	ResultHomeRun: true, ResultWalk: true, ResultHitByPitch: true,
	ResultStrikeout: true, ResultGroundOut: true, ResultFlyOut: true,
	ResultLineOut: true, ResultSacrifice: true, ResultFielderCh: true,
	ResultError: true, ResultDoublePlay: true,
}

var hitResults = map[string]bool{
	ResultSingle: true, ResultDouble: true, ResultTriple: true, ResultHomeRun: true,
}

var validStatuses = map[int]bool{
	StatusInProgress: true, StatusWin: true, StatusLoss: true, StatusTie: true,
	StatusForfeitWin: true, StatusForfeitLoss: true, StatusCancelled: true,
}
