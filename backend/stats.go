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
	"sort"
	"strings"
)

// BattingLine is one player's derived batting totals.
type BattingLine struct {
	PlayerID         string `json:"playerId"`
	PlateAppearances int    `json:"plateAppearances"`
	AtBats           int    `json:"atBats"`
	Hits             int    `json:"hits"`
	Doubles          int    `json:"doubles"`
	Triples          int    `json:"triples"`
	HomeRuns         int    `json:"homeRuns"`
	Walks            int    `json:"walks"`
	HitByPitch       int    `json:"hitByPitch"`
	Strikeouts       int    `json:"strikeouts"`
	RBI              int    `json:"rbi"`
	Runs             int    `json:"runs"`
	Steals           int    `json:"steals"`
	StealMisses      int    `json:"stealMisses"`
	FieldErrors      int    `json:"fieldErrors"`
}

// Average returns the batting average, 0 when no at-bats.
func (l *BattingLine) Average() float64 {
	if l.AtBats == 0 {
		return 0
	}
	return float64(l.Hits) / float64(l.AtBats)
}

// GameStats is the derived box score stored on the game file. It is
// recomputed inside every action application, so it can never lag the
// rows it summarizes.
type GameStats struct {
	OurRuns   int           `json:"ourRuns"`
	TheirRuns int           `json:"theirRuns"`
	Batting   []BattingLine `json:"batting,omitempty"`
}

// notAtBat holds results that count as a plate appearance but not an
// at-bat.
var notAtBat = map[string]bool{
	ResultWalk: true, ResultHitByPitch: true, ResultSacrifice: true,
}

// refreshStats recomputes the derived box score from the game's rows.
func refreshStats(g *Game) {
	stats := &GameStats{}

	if g.IsBattingFirst {
		stats.OurRuns = sumPoints(g.TopPoints)
		stats.TheirRuns = sumPoints(g.BottomPoints)
	} else {
		stats.OurRuns = sumPoints(g.BottomPoints)
		stats.TheirRuns = sumPoints(g.TopPoints)
	}

	byPlayer := make(map[string]*BattingLine)
	lineFor := func(playerId string) *BattingLine {
		if l, ok := byPlayer[playerId]; ok {
			return l
		}
		l := &BattingLine{PlayerID: playerId}
		byPlayer[playerId] = l
		return l
	}

	byIndex := make(map[int]*BattingResult)
	for i := range g.Batting {
		byIndex[g.Batting[i].BattingIndex] = &g.Batting[i]
	}

	for _, d := range g.Details {
		if d.Result == "" {
			// Skipped turn: no plate appearance.
			continue
		}
		b, ok := byIndex[d.BattingIndex]
		if !ok {
			continue
		}
		l := lineFor(b.PlayerID)
		l.PlateAppearances++
		if !notAtBat[d.Result] {
			l.AtBats++
		}
		if hitResults[d.Result] {
			l.Hits++
		}
		switch d.Result {
		case ResultDouble:
			l.Doubles++
		case ResultTriple:
			l.Triples++
		case ResultHomeRun:
			l.HomeRuns++
		case ResultWalk:
			l.Walks++
		case ResultHitByPitch:
			l.HitByPitch++
		case ResultStrikeout:
			l.Strikeouts++
		}
		l.RBI += d.RBI
	}

	for _, b := range g.Batting {
		if b.Run == 0 && b.Steal == 0 && b.StealMiss == 0 && b.FieldError == 0 {
			continue
		}
		l := lineFor(b.PlayerID)
		l.Runs += b.Run
		l.Steals += b.Steal
		l.StealMisses += b.StealMiss
		l.FieldErrors += b.FieldError
	}

	for _, l := range byPlayer {
		stats.Batting = append(stats.Batting, *l)
	}
	sort.Slice(stats.Batting, func(i, j int) bool {
		return stats.Batting[i].PlayerID < stats.Batting[j].PlayerID
	})

	g.Stats = stats
}

// PitchingTotals is one player's aggregated pitching line over a season.
type PitchingTotals struct {
	PlayerID    string `json:"playerId"`
	Appearances int    `json:"appearances"`
	Innings     int    `json:"innings"`
	Outs        int    `json:"outs"`
	Runs        int    `json:"runs"`
	Strikeouts  int    `json:"strikeouts"`
	Walks       int    `json:"walks"`
	HitByPitch  int    `json:"hitByPitch"`
	Hits        int    `json:"hits"`
	HomeRuns    int    `json:"homeRuns"`
	Wins        int    `json:"wins"`
	Losses      int    `json:"losses"`
	Holds       int    `json:"holds"`
	Saves       int    `json:"saves"`
}

// SeasonStats aggregates a set of games for one team.
type SeasonStats struct {
	TeamID     string           `json:"teamId"`
	Season     string           `json:"season,omitempty"`
	Games      int              `json:"games"`
	Wins       int              `json:"wins"`
	Losses     int              `json:"losses"`
	Ties       int              `json:"ties"`
	Batting    []BattingLine    `json:"batting,omitempty"`
	Pitching   []PitchingTotals `json:"pitching,omitempty"`
	Attendance map[string]int   `json:"attendance,omitempty"`
}

// ComputeSeasonStats aggregates the played games of one team. Cancelled
// games do not count toward the record.
func ComputeSeasonStats(teamId, season string, games []*Game) *SeasonStats {
	out := &SeasonStats{
		TeamID:     teamId,
		Season:     season,
		Attendance: make(map[string]int),
	}

	batting := make(map[string]*BattingLine)
	pitching := make(map[string]*PitchingTotals)

	for _, g := range games {
		if !g.HasStarted() || *g.Status == StatusCancelled {
			continue
		}
		out.Games++
		switch *g.Status {
		case StatusWin, StatusForfeitWin:
			out.Wins++
		case StatusLoss, StatusForfeitLoss:
			out.Losses++
		case StatusTie:
			out.Ties++
		}

		if g.Stats == nil {
			gg := *g
			refreshStats(&gg)
			g = &gg
		}
		for _, l := range g.Stats.Batting {
			t, ok := batting[l.PlayerID]
			if !ok {
				t = &BattingLine{PlayerID: l.PlayerID}
				batting[l.PlayerID] = t
			}
			t.PlateAppearances += l.PlateAppearances
			t.AtBats += l.AtBats
			t.Hits += l.Hits
			t.Doubles += l.Doubles
			t.Triples += l.Triples
			t.HomeRuns += l.HomeRuns
			t.Walks += l.Walks
			t.HitByPitch += l.HitByPitch
			t.Strikeouts += l.Strikeouts
			t.RBI += l.RBI
			t.Runs += l.Runs
			t.Steals += l.Steals
			t.StealMisses += l.StealMisses
			t.FieldErrors += l.FieldErrors
		}

		for _, p := range g.Pitching {
			if p.PlayerID == "" {
				continue
			}
			t, ok := pitching[p.PlayerID]
			if !ok {
				t = &PitchingTotals{PlayerID: p.PlayerID}
				pitching[p.PlayerID] = t
			}
			t.Appearances++
			t.Innings += p.Innings
			t.Outs += p.Outs
			t.Runs += p.Runs
			t.Strikeouts += p.Strikeouts
			t.Walks += p.Walks
			t.HitByPitch += p.HitByPitch
			t.Hits += p.Hits
			t.HomeRuns += p.HomeRuns
			switch p.Decision {
			case DecisionWin:
				t.Wins++
			case DecisionLose:
				t.Losses++
			}
			if p.Hold {
				t.Holds++
			}
			if p.Save {
				t.Saves++
			}
		}

		for playerId, v := range g.Attendance {
			if v == "yes" {
				out.Attendance[playerId]++
			}
		}
	}

	for _, l := range batting {
		out.Batting = append(out.Batting, *l)
	}
	sort.Slice(out.Batting, func(i, j int) bool {
		return out.Batting[i].PlayerID < out.Batting[j].PlayerID
	})
	for _, p := range pitching {
		out.Pitching = append(out.Pitching, *p)
	}
	sort.Slice(out.Pitching, func(i, j int) bool {
		return out.Pitching[i].PlayerID < out.Pitching[j].PlayerID
	})

	return out
}

// GameSeason extracts the season (year) from a game's start time.
func GameSeason(g *Game) string {
	if len(g.Start) < 4 {
		return ""
	}
	year := g.Start[:4]
	for _, c := range year {
		if c < '0' || c > '9' {
			return ""
		}
	}
	return year
}

// MatchesSeason reports whether the game belongs to the given season.
// An empty season matches everything.
func MatchesSeason(g *Game, season string) bool {
	return season == "" || strings.HasPrefix(g.Start, season)
}
