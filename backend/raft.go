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
	"bytes"
	"crypto/rand"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
)

var ErrNotLeader = errors.New("not leader")

// RaftManager wraps a hashicorp/raft node and the cluster HTTP API used
// for joining, leaving, and forwarding writes to the leader.
type RaftManager struct {
	Raft                  *raft.Raft
	FSM                   *FSM
	DataDir               string
	Bind                  string // "host:port" for Raft transport
	Advertise             string // "host:port" for advertising to other nodes
	ClusterAdvertise      string // "host:port" advertised for the cluster HTTP API
	ClusterAddr           string // "host:port" for the cluster HTTP API listener
	NodeID                string
	Secret                string
	Bootstrap             bool
	UseProductionTimeouts bool

	nodeAddrMap sync.Map // map[raft.ServerID]string

	shutdownCh     chan struct{}
	shutdownOnce   sync.Once
	readyCh        chan struct{}
	internalServer *http.Server
	httpClient     *http.Client
	AuthMiddleware func(http.Handler) http.Handler

	logStore    raft.LogStore
	stableStore raft.StableStore

	LogOutput  io.Writer // Optional: Redirect Raft logs
	UseGob     bool      // Optional: Use GOB encoding for log entries
	AppHandler http.Handler
	listener   net.Listener
}

func NewRaftManager(dataDir, bind, advertise, clusterAdvertise, clusterAddr, secret string, fsm *FSM) *RaftManager {
	rm := &RaftManager{
		DataDir:          dataDir,
		Bind:             bind,
		Advertise:        advertise,
		ClusterAdvertise: clusterAdvertise,
		ClusterAddr:      clusterAddr,
		Secret:           secret,
		FSM:              fsm,
		shutdownCh:       make(chan struct{}),
		readyCh:          make(chan struct{}),
		LogOutput:        os.Stderr,
		httpClient:       &http.Client{Timeout: 10 * time.Second},
	}
	if fsm != nil {
		fsm.rm = rm
	}
	return rm
}

func (rm *RaftManager) loadOrGenerateNodeID() error {
	if err := os.MkdirAll(rm.DataDir, 0755); err != nil {
		return err
	}
	idPath := filepath.Join(rm.DataDir, "node.id")
	if data, err := os.ReadFile(idPath); err == nil {
		id := strings.TrimSpace(string(data))
		if id != "" {
			rm.NodeID = id
			return nil
		}
	}
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return err
	}
	rm.NodeID = hex.EncodeToString(buf)
	return os.WriteFile(idPath, []byte(rm.NodeID), 0600)
}

func (rm *RaftManager) Start(bootstrap bool) error {
	rm.Bootstrap = bootstrap
	if err := rm.loadOrGenerateNodeID(); err != nil {
		return fmt.Errorf("failed to load node id: %v", err)
	}
	log.Printf("NodeID: %s", rm.NodeID)
	rm.nodeAddrMap.Store(raft.ServerID(rm.NodeID), rm.ClusterAdvertise)

	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(rm.NodeID)
	// Optimized for WAN / High Latency / Low Idle Traffic
	if rm.UseProductionTimeouts {
		config.HeartbeatTimeout = 5 * time.Second
		config.ElectionTimeout = 20 * time.Second
		config.LeaderLeaseTimeout = 5 * time.Second
	} else {
		// Faster timeouts for tests
		config.HeartbeatTimeout = 1000 * time.Millisecond
		config.ElectionTimeout = 1000 * time.Millisecond
		config.LeaderLeaseTimeout = 500 * time.Millisecond
	}
	config.CommitTimeout = 500 * time.Millisecond
	config.SnapshotInterval = 120 * time.Second
	config.SnapshotThreshold = 20480
	config.LogLevel = "INFO"
	config.MaxAppendEntries = 200
	if rm.LogOutput != nil {
		config.LogOutput = rm.LogOutput
	}

	// Setup Transport
	advertiseAddr := rm.Advertise
	if advertiseAddr == "" {
		advertiseAddr = rm.Bind
	}
	addr, err := net.ResolveTCPAddr("tcp", advertiseAddr)
	if err != nil {
		return fmt.Errorf("failed to resolve advertise address %s: %v", advertiseAddr, err)
	}
	transport, err := raft.NewTCPTransport(rm.Bind, addr, 3, 10*time.Second, rm.LogOutput)
	if err != nil {
		return err
	}

	// Setup Stores
	if err := os.MkdirAll(rm.DataDir, 0755); err != nil {
		return err
	}
	logStore, err := raftboltdb.NewBoltStore(filepath.Join(rm.DataDir, "raft-log.bolt"))
	if err != nil {
		return err
	}
	rm.logStore = logStore
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(rm.DataDir, "raft-stable.bolt"))
	if err != nil {
		return err
	}
	rm.stableStore = stableStore

	snapshotStore, err := raft.NewFileSnapshotStore(rm.DataDir, 1, rm.LogOutput)
	if err != nil {
		return err
	}

	r, err := raft.NewRaft(config, rm.FSM, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return err
	}
	rm.Raft = r
	close(rm.readyCh)

	if bootstrap {
		log.Printf("Bootstrapping Raft cluster with NodeID: %s", rm.NodeID)
		configuration := raft.Configuration{
			Servers: []raft.Server{
				{
					ID:      config.LocalID,
					Address: transport.LocalAddr(),
				},
			},
		}
		f := r.BootstrapCluster(configuration)
		if err := f.Error(); err != nil {
			log.Printf("Bootstrap error (might be already bootstrapped): %v", err)
		}

		// Propose own metadata once leader
		go func() {
			for {
				if r.State() == raft.Leader {
					break
				}
				select {
				case <-rm.shutdownCh:
					return
				case <-time.After(100 * time.Millisecond):
				}
			}
			cmd := RaftCommand{
				Type: CmdNodeMeta,
				NodeMeta: &NodeMeta{
					NodeID:          rm.NodeID,
					HttpAddr:        rm.ClusterAdvertise,
					AppVersion:      CurrentAppVersion,
					ProtocolVersion: CurrentProtocolVersion,
					SchemaVersion:   SchemaVersionV1,
				},
			}
			if _, err := rm.Propose(cmd); err != nil {
				log.Printf("Failed to propose bootstrap metadata: %v", err)
			}

			// Ingest existing data into the Raft log (migration from standalone)
			log.Printf("Ingesting existing data into Raft log...")
			gs, ts := rm.FSM.GetStores()

			for g, err := range gs.ListAllGames() {
				if err != nil {
					log.Printf("Failed to list games for ingestion: %v", err)
					break
				}
				// Reset LastRaftIndex on disk so the FSM accepts the new log entry
				g.LastRaftIndex = 0
				if err := gs.SaveGame(g); err != nil {
					log.Printf("Failed to reset index for game %s: %v", g.ID, err)
				}

				data, _ := json.Marshal(g)
				raw := json.RawMessage(data)
				cmd := RaftCommand{
					Type:     CmdSaveGame,
					ID:       g.ID,
					GameData: &raw,
					Force:    true,
				}
				if _, err := rm.Propose(cmd); err != nil {
					log.Printf("Failed to ingest game %s: %v", g.ID, err)
				}
			}

			for t, err := range ts.ListAllTeams() {
				if err != nil {
					log.Printf("Failed to list teams for ingestion: %v", err)
					break
				}
				t.LastRaftIndex = 0
				if err := ts.SaveTeam(t); err != nil {
					log.Printf("Failed to reset index for team %s: %v", t.ID, err)
				}

				data, _ := json.Marshal(t)
				raw := json.RawMessage(data)
				cmd := RaftCommand{
					Type:     CmdSaveTeam,
					ID:       t.ID,
					TeamData: &raw,
					Force:    true,
				}
				if _, err := rm.Propose(cmd); err != nil {
					log.Printf("Failed to ingest team %s: %v", t.ID, err)
				}
			}
			log.Printf("Ingestion complete.")
		}()
	}

	// Start the cluster HTTP API
	if rm.ClusterAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/api/cluster/status", rm.handleStatus)
		mux.HandleFunc("/api/cluster/join", rm.handleJoin)
		mux.HandleFunc("/api/cluster/remove", rm.handleRemove)
		mux.HandleFunc("/api/cluster/action", rm.handleAction)

		if rm.AppHandler != nil {
			mux.Handle("/", rm.AppHandler)
		}

		var handler http.Handler = mux
		if rm.AuthMiddleware != nil {
			handler = rm.AuthMiddleware(mux)
		}

		ln, err := net.Listen("tcp", rm.ClusterAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on cluster addr %s: %v", rm.ClusterAddr, err)
		}
		rm.listener = ln

		// Update ClusterAdvertise if we bound to a random port
		if strings.HasSuffix(rm.ClusterAdvertise, ":0") {
			_, port, _ := net.SplitHostPort(ln.Addr().String())
			host, _, _ := net.SplitHostPort(rm.ClusterAdvertise)
			rm.ClusterAdvertise = net.JoinHostPort(host, port)
			rm.nodeAddrMap.Store(raft.ServerID(rm.NodeID), rm.ClusterAdvertise)
		}

		server := &http.Server{Handler: handler}
		rm.internalServer = server

		go func() {
			log.Printf("Starting Cluster API on %s...", ln.Addr())
			if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
				log.Printf("Cluster Server Error: %v", err)
			}
		}()
	}

	// Store own HTTP address locally as fallback/immediate
	metaJSON := fmt.Sprintf(`{"nodeId":"%s","httpAddr":"%s"}`, rm.NodeID, rm.ClusterAdvertise)
	rm.FSM.applyNodeMeta(rm.NodeID, []byte(metaJSON))
	go rm.monitorConfiguration()

	return nil
}

// GetHTTPClient returns the reusable HTTP client for cluster communication.
func (rm *RaftManager) GetHTTPClient() *http.Client {
	return rm.httpClient
}

// WaitForSync blocks until the Raft FSM has applied all entries currently in
// the log. This prevents serving stale data immediately after a restart while
// the log is being replayed.
func (rm *RaftManager) WaitForSync(timeout time.Duration) error {
	if rm.Raft == nil {
		return nil
	}
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			return fmt.Errorf("timeout waiting for Raft sync (applied: %d, last: %d)", rm.Raft.AppliedIndex(), rm.Raft.LastIndex())
		case <-ticker.C:
			last := rm.Raft.LastIndex()
			applied := rm.Raft.AppliedIndex()
			if applied >= last {
				return nil
			}
		}
	}
}

// Propose proposes a command to the Raft cluster.
func (rm *RaftManager) Propose(cmd RaftCommand) (uint64, error) {
	if rm.Raft.State() != raft.Leader {
		return 0, ErrNotLeader
	}

	var data []byte
	var err error

	if rm.UseGob {
		var buf bytes.Buffer
		enc := gob.NewEncoder(&buf)
		if err := enc.Encode(cmd); err != nil {
			return 0, err
		}
		data = buf.Bytes()
	} else {
		data, err = json.Marshal(cmd)
		if err != nil {
			return 0, err
		}
	}

	f := rm.Raft.Apply(data, 5*time.Second)
	if err := f.Error(); err != nil {
		return 0, err
	}

	// f.Response() returns what FSM.Apply returns: error or nil.
	resp := f.Response()
	if resp != nil {
		if err, ok := resp.(error); ok {
			return f.Index(), err
		}
	}
	return f.Index(), nil
}

// Join adds a new node to the cluster.
func (rm *RaftManager) Join(nodeID, raftAddr, httpAddr string, nonVoter bool, appVer string, protoVer, schemaVer int) error {
	if rm.Raft.State() != raft.Leader {
		return ErrNotLeader
	}
	log.Printf("Received join request for remote node %s at Raft:%s, HTTP:%s (nonVoter: %v)", nodeID, raftAddr, httpAddr, nonVoter)

	cmd := RaftCommand{
		Type: CmdNodeMeta,
		NodeMeta: &NodeMeta{
			NodeID:          nodeID,
			HttpAddr:        httpAddr,
			AppVersion:      appVer,
			ProtocolVersion: protoVer,
			SchemaVersion:   schemaVer,
		},
	}
	if _, err := rm.Propose(cmd); err != nil {
		return fmt.Errorf("failed to store node metadata: %v", err)
	}

	var f raft.IndexFuture
	if nonVoter {
		f = rm.Raft.AddNonvoter(raft.ServerID(nodeID), raft.ServerAddress(raftAddr), 0, 0)
	} else {
		f = rm.Raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(raftAddr), 0, 0)
	}

	if err := f.Error(); err != nil {
		return err
	}

	rm.nodeAddrMap.Store(raft.ServerID(nodeID), httpAddr)
	log.Printf("Node %s joined successfully", nodeID)
	return nil
}

// Leave removes a node from the cluster.
func (rm *RaftManager) Leave(nodeID string) error {
	if rm.Raft.State() != raft.Leader {
		return ErrNotLeader
	}
	log.Printf("Received leave request for node %s", nodeID)

	f := rm.Raft.RemoveServer(raft.ServerID(nodeID), 0, 0)
	if err := f.Error(); err != nil {
		return err
	}

	cmd := RaftCommand{
		Type: CmdNodeLeft,
		NodeMeta: &NodeMeta{
			NodeID: nodeID,
		},
	}
	if _, err := rm.Propose(cmd); err != nil {
		log.Printf("Warning: Failed to broadcast node removal: %v", err)
	}

	rm.nodeAddrMap.Delete(raft.ServerID(nodeID))
	log.Printf("Node %s removed successfully", nodeID)
	return nil
}

func (rm *RaftManager) checkSecret(w http.ResponseWriter, r *http.Request) bool {
	secret := r.Header.Get("X-Raft-Secret")
	if rm.Secret == "" || secret != rm.Secret {
		http.Error(w, "Forbidden: Invalid Cluster Secret", http.StatusForbidden)
		return false
	}
	return true
}

func (rm *RaftManager) detectForwardingLoop(w http.ResponseWriter, r *http.Request) bool {
	if forwarded := r.Header.Get("X-Raft-Forwarded"); forwarded != "" {
		for _, id := range strings.Split(forwarded, ",") {
			if strings.TrimSpace(id) == rm.NodeID {
				http.Error(w, "Forwarding loop detected", http.StatusLoopDetected)
				return true
			}
		}
	}
	return false
}

func (rm *RaftManager) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Invalid method", http.StatusMethodNotAllowed)
		return
	}

	// Require the secret to prevent leaking topology.
	if !rm.checkSecret(w, r) {
		return
	}

	leaderAddr := rm.GetLeaderHTTPAddr()
	_, leaderID := rm.Raft.LeaderWithID()

	status := map[string]any{
		"nodeId":          rm.NodeID,
		"state":           rm.Raft.State().String(),
		"leaderId":        string(leaderID),
		"leaderAddr":      leaderAddr,
		"raftAddr":        rm.Advertise,
		"appVersion":      CurrentAppVersion,
		"protocolVersion": CurrentProtocolVersion,
		"schemaVersion":   SchemaVersionV1,
	}
	if status["raftAddr"] == "" {
		status["raftAddr"] = rm.Bind
	}

	configFuture := rm.Raft.GetConfiguration()
	if err := configFuture.Error(); err == nil {
		var nodes []map[string]any
		for _, s := range configFuture.Configuration().Servers {
			node := map[string]any{
				"id":       string(s.ID),
				"raftAddr": string(s.Address),
				"httpAddr": rm.FSM.GetNodeAddr(string(s.ID)),
				"suffrage": s.Suffrage.String(),
			}
			if meta := rm.FSM.GetNodeMeta(string(s.ID)); meta != nil {
				node["appVersion"] = meta.AppVersion
				node["protocolVersion"] = meta.ProtocolVersion
				node["schemaVersion"] = meta.SchemaVersion
			}
			nodes = append(nodes, node)
		}
		status["nodes"] = nodes
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (rm *RaftManager) handleJoin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Invalid method", http.StatusMethodNotAllowed)
		return
	}
	if rm.detectForwardingLoop(w, r) {
		return
	}
	if !rm.checkSecret(w, r) {
		return
	}

	if rm.Raft.State() != raft.Leader {
		rm.forwardRequestToLeader(w, r)
		return
	}

	var data struct {
		NodeID          string `json:"nodeId"`
		RaftAddr        string `json:"raftAddr"`
		HttpAddr        string `json:"httpAddr"`
		NonVoter        bool   `json:"nonVoter"`
		AppVersion      string `json:"appVersion"`
		ProtocolVersion int    `json:"protocolVersion"`
		SchemaVersion   int    `json:"schemaVersion"`
	}
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if data.HttpAddr == "" {
		http.Error(w, "Missing required field: httpAddr", http.StatusBadRequest)
		return
	}

	if data.NodeID == "" {
		// Attempt Discovery
		status, err := rm.discoverNode(data.HttpAddr)
		if err != nil {
			log.Printf("Discovery failed for %s: %v", data.HttpAddr, err)
			http.Error(w, fmt.Sprintf("Discovery failed: %v", err), http.StatusBadGateway)
			return
		}

		var ok bool
		if data.NodeID, ok = status["nodeId"].(string); !ok || data.NodeID == "" {
			http.Error(w, "Discovery failed: missing nodeId in response", http.StatusBadGateway)
			return
		}
		if data.RaftAddr, ok = status["raftAddr"].(string); !ok || data.RaftAddr == "" {
			http.Error(w, "Discovery failed: missing raftAddr in response", http.StatusBadGateway)
			return
		}
		if data.AppVersion, ok = status["appVersion"].(string); !ok {
			data.AppVersion = ""
		}
		if v, ok := status["protocolVersion"].(float64); ok {
			data.ProtocolVersion = int(v)
		}
		if v, ok := status["schemaVersion"].(float64); ok {
			data.SchemaVersion = int(v)
		}
	}

	// Validate Address Formats
	if _, _, err := net.SplitHostPort(data.RaftAddr); err != nil {
		http.Error(w, "Invalid RaftAddr: must be host:port", http.StatusBadRequest)
		return
	}
	if _, _, err := net.SplitHostPort(data.HttpAddr); err != nil {
		u, pErr := url.Parse(data.HttpAddr)
		if pErr != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			http.Error(w, "Invalid HttpAddr: must be host:port or valid URL", http.StatusBadRequest)
			return
		}
	}

	if err := rm.Join(data.NodeID, data.RaftAddr, data.HttpAddr, data.NonVoter, data.AppVersion, data.ProtocolVersion, data.SchemaVersion); err != nil {
		http.Error(w, fmt.Sprintf("Failed to join: %v", err), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "Node %s joined cluster", data.NodeID)
}

func (rm *RaftManager) discoverNode(targetAddr string) (map[string]any, error) {
	if !strings.HasPrefix(targetAddr, "http") {
		targetAddr = "http://" + targetAddr
	}
	u, err := url.Parse(targetAddr)
	if err != nil {
		return nil, err
	}
	u.Path = "/api/cluster/status"
	statusURL := u.String()

	req, err := http.NewRequest("GET", statusURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Raft-Secret", rm.Secret)

	resp, err := rm.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discoverNode(%q): %w", statusURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("node returned status %d: %s", resp.StatusCode, string(body))
	}

	var status map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, err
	}
	return status, nil
}

func (rm *RaftManager) handleRemove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Invalid method", http.StatusMethodNotAllowed)
		return
	}
	if rm.detectForwardingLoop(w, r) {
		return
	}
	if !rm.checkSecret(w, r) {
		return
	}

	if rm.Raft.State() != raft.Leader {
		rm.forwardRequestToLeader(w, r)
		return
	}

	var data struct {
		NodeID string `json:"nodeId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if err := rm.Leave(data.NodeID); err != nil {
		http.Error(w, fmt.Sprintf("Failed to remove node: %v", err), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "Node %s removed from cluster", data.NodeID)
}

func (rm *RaftManager) forwardRequestToLeader(w http.ResponseWriter, r *http.Request) {
	leaderAddr := rm.GetLeaderHTTPAddr()
	if leaderAddr == "" {
		http.Error(w, "No leader found", http.StatusServiceUnavailable)
		return
	}

	if !strings.HasPrefix(leaderAddr, "http") {
		leaderAddr = "http://" + leaderAddr
	}

	fwdURL := leaderAddr + r.URL.Path
	// Buffer the body to forward it
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusInternalServerError)
		return
	}

	req, err := http.NewRequest(r.Method, fwdURL, bytes.NewReader(body))
	if err != nil {
		http.Error(w, "Failed to create forward request", http.StatusInternalServerError)
		return
	}

	for k, v := range r.Header {
		req.Header[k] = v
	}
	req.Host = r.Host

	forwarded := req.Header.Get("X-Raft-Forwarded")
	if forwarded != "" {
		forwarded += "," + rm.NodeID
	} else {
		forwarded = rm.NodeID
	}
	req.Header.Set("X-Raft-Forwarded", forwarded)

	if rm.Secret != "" {
		req.Header.Set("X-Raft-Secret", rm.Secret)
	}

	resp, err := rm.httpClient.Do(req)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to forward request: %v", err), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for k, v := range resp.Header {
		w.Header()[k] = v
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

func (rm *RaftManager) handleAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}
	if rm.detectForwardingLoop(w, r) {
		return
	}
	if !rm.checkSecret(w, r) {
		return
	}

	userId := getUserID(r)

	var msg Message
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1048576)).Decode(&msg); err != nil {
		http.Error(w, "Bad Request: Malformed JSON", http.StatusBadRequest)
		return
	}

	gameId := msg.GameId
	if gameId == "" {
		http.Error(w, "Bad Request: gameId is missing", http.StatusBadRequest)
		return
	}

	// Serialize through the game's hub
	hub := rm.FSM.GetHub(gameId, false)
	reply := make(chan HubResponse)
	hub.requests <- HubRequest{
		Type:    ReqTypeHTTPAction,
		UserId:  userId,
		Headers: r.Header,
		Message: msg,
		Reply:   reply,
	}
	resp := <-reply

	if resp.Error != nil {
		log.Printf("Error processing forwarded HTTP action: %v", resp.Error)
		http.Error(w, resp.Error.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(resp.Data)
}

// GetLeaderHTTPAddr returns the HTTP address of the current leader.
func (rm *RaftManager) GetLeaderHTTPAddr() string {
	_, leaderID := rm.Raft.LeaderWithID()
	if leaderID == "" {
		return ""
	}
	return rm.FSM.GetNodeAddr(string(leaderID))
}

// Shutdown gracefully shuts down the Raft node.
func (rm *RaftManager) Shutdown() error {
	rm.shutdownOnce.Do(func() {
		close(rm.shutdownCh)
	})

	if rm.internalServer != nil {
		rm.internalServer.Close()
	}

	if rm.listener != nil {
		rm.listener.Close()
	}

	if rm.Raft == nil {
		rm.closeStores()
		return nil
	}

	// Attempt graceful leadership transfer if leader
	if rm.Raft.State() == raft.Leader {
		log.Printf("Attempting leadership transfer before shutdown...")
		f := rm.Raft.LeadershipTransfer()

		done := make(chan error, 1)
		go func() { done <- f.Error() }()

		select {
		case err := <-done:
			if err != nil {
				log.Printf("Leadership transfer failed (continuing): %v", err)
			} else {
				log.Printf("Leadership transfer successful.")
			}
		case <-time.After(5 * time.Second):
			log.Printf("Leadership transfer timed out (continuing).")
		}
	}

	raftErr := rm.Raft.Shutdown().Error()
	rm.closeStores()
	return raftErr
}

func (rm *RaftManager) closeStores() {
	if rm.logStore != nil {
		if c, ok := rm.logStore.(io.Closer); ok {
			c.Close()
		}
		rm.logStore = nil
	}
	if rm.stableStore != nil {
		if c, ok := rm.stableStore.(io.Closer); ok {
			c.Close()
		}
		rm.stableStore = nil
	}
}

func (rm *RaftManager) monitorConfiguration() {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-rm.shutdownCh:
			return
		case <-ticker.C:
			_, leaderID := rm.Raft.LeaderWithID()

			if leaderID == raft.ServerID(rm.NodeID) {
				// We are Leader: update our own metadata if needed
				currentHttpAddr := rm.FSM.GetNodeAddr(rm.NodeID)
				if currentHttpAddr != rm.ClusterAdvertise {
					log.Printf("[AutoConfig] Updating own HTTP address from %q to %q", currentHttpAddr, rm.ClusterAdvertise)
					cmd := RaftCommand{
						Type: CmdNodeMeta,
						NodeMeta: &NodeMeta{
							NodeID:          rm.NodeID,
							HttpAddr:        rm.ClusterAdvertise,
							AppVersion:      CurrentAppVersion,
							ProtocolVersion: CurrentProtocolVersion,
							SchemaVersion:   SchemaVersionV1,
						},
					}
					if _, err := rm.Propose(cmd); err != nil {
						log.Printf("[AutoConfig] Failed to update own metadata: %v", err)
					}
				}
				continue
			}

			// We are Follower (or lost candidate). Try to contact the leader,
			// or if unknown, any known peer to re-announce ourselves.
			var targetHTTP string
			if leaderID != "" {
				targetHTTP = rm.FSM.GetNodeAddr(string(leaderID))
			} else if rm.FSM.GetNodeCount() > 1 {
				allNodes := rm.FSM.GetAllNodes()
				for id, addr := range allNodes {
					if id != rm.NodeID && addr != "" {
						targetHTTP = addr
						break
					}
				}
			}

			if targetHTTP == "" {
				continue
			}

			if !strings.HasPrefix(targetHTTP, "http") {
				targetHTTP = "http://" + targetHTTP
			}

			raftAddr := rm.Advertise
			if raftAddr == "" {
				raftAddr = rm.Bind
			}

			payload := map[string]any{
				"nodeId":          rm.NodeID,
				"raftAddr":        raftAddr,
				"httpAddr":        rm.ClusterAdvertise,
				"appVersion":      CurrentAppVersion,
				"protocolVersion": CurrentProtocolVersion,
				"schemaVersion":   SchemaVersionV1,
			}

			// Preserve nonvoter status across re-announcements
			cfg := rm.Raft.GetConfiguration()
			if err := cfg.Error(); err == nil {
				for _, s := range cfg.Configuration().Servers {
					if s.ID == raft.ServerID(rm.NodeID) && s.Suffrage == raft.Nonvoter {
						payload["nonVoter"] = true
						break
					}
				}
			}

			data, _ := json.Marshal(payload)

			req, err := http.NewRequest("POST", fmt.Sprintf("%s/api/cluster/join", targetHTTP), bytes.NewBuffer(data))
			if err != nil {
				log.Printf("[AutoConfig] Failed to create join request: %v", err)
				return
			}
			req.Header.Set("X-Raft-Secret", rm.Secret)
			req.Header.Set("Content-Type", "application/json")

			resp, err := rm.httpClient.Do(req)
			if err != nil {
				log.Printf("[AutoConfig] Failed to contact node at %s: %v", targetHTTP, err)
				continue
			}
			resp.Body.Close()

			if resp.StatusCode == http.StatusOK {
				log.Printf("[AutoConfig] Successfully registered with node at %s", targetHTTP)
				return
			}

			log.Printf("[AutoConfig] Registration failed: HTTP %d", resp.StatusCode)
		}
	}
}
