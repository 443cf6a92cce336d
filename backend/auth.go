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
	"log"
	"net/http"
	"strings"
)

type contextKey struct{}

// userIDKey is the context key for the authenticated user's ID (email).
// The associated value is always a string.
var userIDKey contextKey

// getUserID returns the UserID from the request context, if present.
func getUserID(r *http.Request) string {
	if val := r.Context().Value(userIDKey); val != nil {
		if s, ok := val.(string); ok {
			return s
		}
	}
	return ""
}

// normalizeEmail ensures consistent casing and whitespace for User IDs.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// maskEmail obscures an email address for safe logging.
// e.g. "user@example.com" -> "u***@example.com"
func maskEmail(email string) string {
	if email == "" {
		return "<empty>"
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 || len(parts[0]) < 1 {
		return "****"
	}
	return string(parts[0][0]) + "***@" + parts[1]
}

type AccessLevel int

const (
	AccessNone AccessLevel = iota
	AccessRead
	AccessWrite
	AccessAdmin
)

// teamRoleLevel maps a user's team role to an access level. Managers
// administer, scorers write, players and spectators read.
func teamRoleLevel(userId, ownerId string, roles TeamRoles) AccessLevel {
	if userId == "" {
		return AccessNone
	}
	if normalizeEmail(ownerId) == userId {
		return AccessAdmin
	}
	for _, u := range roles.Managers {
		if normalizeEmail(u) == userId {
			return AccessAdmin
		}
	}
	for _, u := range roles.Scorers {
		if normalizeEmail(u) == userId {
			return AccessWrite
		}
	}
	for _, u := range roles.Players {
		if normalizeEmail(u) == userId {
			return AccessRead
		}
	}
	for _, u := range roles.Spectators {
		if normalizeEmail(u) == userId {
			return AccessRead
		}
	}
	return AccessNone
}

// GetTeamAccess calculates the effective access level for a user on a
// team.
func GetTeamAccess(userId string, team *Team) AccessLevel {
	return teamRoleLevel(normalizeEmail(userId), team.OwnerID, team.Roles)
}

// IsTeamPlayer reports whether the user is listed in the team's players
// role. Players may mark their own attendance even though their access
// level is read-only.
func IsTeamPlayer(userId string, team *Team) bool {
	userId = normalizeEmail(userId)
	for _, u := range team.Roles.Players {
		if normalizeEmail(u) == userId {
			return true
		}
	}
	return false
}

// GetGameAccess calculates the effective access level for a user on a
// game. Games inherit access from the team they belong to.
func GetGameAccess(userId string, game *Game, tStore *TeamStore) AccessLevel {
	userId = normalizeEmail(userId)

	log.Printf("[AUTH] Checking access for user=%s, gameId=%s, teamId=%s", maskEmail(userId), game.ID, game.TeamID)
	if userId == "" || game.TeamID == "" {
		return AccessNone
	}

	t, err := tStore.LoadTeam(game.TeamID)
	if err != nil {
		log.Printf("[AUTH] Could not load team %s: %v", game.TeamID, err)
		return AccessNone
	}
	return GetTeamAccess(userId, t)
}
