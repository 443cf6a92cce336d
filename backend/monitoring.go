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
	"sync/atomic"
	"time"
)

// GlobalRequestCounter counts every HTTP request handled by this node
// since startup.
var GlobalRequestCounter atomic.Uint64

var serverStartTime = time.Now()

// StatusSnapshot is the payload of the /api/status endpoint.
type StatusSnapshot struct {
	UptimeSeconds int64  `json:"uptimeSeconds"`
	Requests      uint64 `json:"requests"`
	Games         int    `json:"games"`
	Teams         int    `json:"teams"`
	WSConnections int    `json:"wsConnections"`

	RaftEnabled bool   `json:"raftEnabled"`
	RaftState   string `json:"raftState,omitempty"`
	LeaderAddr  string `json:"leaderAddr,omitempty"`
	NodeID      string `json:"nodeId,omitempty"`
	NodeCount   int    `json:"nodeCount,omitempty"`
}

func buildStatusSnapshot(r *Registry, hm *HubManager, rm *RaftManager) StatusSnapshot {
	s := StatusSnapshot{
		UptimeSeconds: int64(time.Since(serverStartTime).Seconds()),
		Requests:      GlobalRequestCounter.Load(),
		Games:         r.CountTotalGames(),
		Teams:         r.CountTotalTeams(),
		WSConnections: hm.GetTotalConnectionCount(),
	}
	if rm != nil {
		s.RaftEnabled = true
		s.NodeID = rm.NodeID
		if rm.Raft != nil {
			s.RaftState = rm.Raft.State().String()
		}
		s.LeaderAddr = rm.GetLeaderHTTPAddr()
		if rm.FSM != nil {
			s.NodeCount = rm.FSM.GetNodeCount()
		}
	}
	return s
}
