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

// Command screenshots renders the embedded scoreboard and cluster
// dashboard pages in a remote Chrome instance and saves screenshots
// for the documentation.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/c2FmZQ/storage"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"github.com/ttbt-io/dugout/backend"
)

var (
	chromeURL = flag.String("chrome-url", "", "The url of the remote debugging port")
	outputDir = flag.String("output-dir", "/screenshots", "Directory to save screenshots")
)

func main() {
	flag.Parse()

	if *chromeURL == "" {
		log.Fatal("--chrome-url must be set")
	}

	baseURL, host, gameID := startServer()
	log.Printf("Server started at %s, game %s", baseURL, gameID)

	ctx, cancel := chromedp.NewRemoteAllocator(context.Background(), *chromeURL)
	defer cancel()

	ctx, cancel = chromedp.NewContext(ctx, chromedp.WithLogf(log.Printf))
	defer cancel()

	ctx, cancel = context.WithTimeout(ctx, 120*time.Second)
	defer cancel()

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("Failed to create output dir: %v", err)
	}

	// Authenticate the browser session with the mock auth cookie so the
	// scoreboard can load the game.
	if err := chromedp.Run(ctx,
		network.Enable(),
		network.SetCookie("mock_auth_user", "scorer@example.com").WithDomain(host).WithPath("/"),
	); err != nil {
		log.Fatalf("Failed to set auth cookie: %v", err)
	}

	log.Println("Capturing: Scoreboard")
	if err := capture(ctx, baseURL+"/scoreboard?gameId="+gameID, "#inning", "scoreboard.png"); err != nil {
		log.Fatalf("Failed to capture scoreboard: %v", err)
	}

	log.Println("Capturing: Cluster Dashboard")
	if err := capture(ctx, baseURL+"/api/cluster", "table", "cluster-dashboard.png"); err != nil {
		log.Fatalf("Failed to capture cluster dashboard: %v", err)
	}

	log.Println("Screenshots generated successfully.")
}

func capture(ctx context.Context, url, waitFor, filename string) error {
	var buf []byte
	if err := chromedp.Run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitVisible(waitFor),
		chromedp.Sleep(time.Second),
		chromedp.CaptureScreenshot(&buf),
	); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(*outputDir, filename), buf, 0644)
}

func startServer() (baseURL, host, gameID string) {
	dataDir, err := os.MkdirTemp("", "screenshots")
	if err != nil {
		log.Fatalf("Failed to create temp dir: %v", err)
	}
	s := storage.New(dataDir, nil)
	gs := backend.NewGameStore(dataDir, s)
	ts := backend.NewTeamStore(dataDir, s)

	teamID := uuid.NewString()
	gameID = uuid.NewString()
	status := backend.StatusInProgress

	team := &backend.Team{
		ID:      teamID,
		Name:    "Riverside Otters",
		OwnerID: "scorer@example.com",
	}
	if err := ts.SaveTeam(team); err != nil {
		log.Fatalf("Failed to seed team: %v", err)
	}

	game := &backend.Game{
		ID:             gameID,
		TeamID:         teamID,
		Opponent:       "Harbor City Herons",
		Start:          time.Now().Format(time.RFC3339),
		Status:         &status,
		IsBattingFirst: true,
		NowInning:      3,
		NowIsTop:       true,
		Innings:        []int{1, 2, 3},
		TopPoints:      []int{1, 0, 2},
		BottomPoints:   []int{0, 1},
	}
	if err := gs.SaveGame(game); err != nil {
		log.Fatalf("Failed to seed game: %v", err)
	}

	l, err := net.Listen("tcp", "0.0.0.0:0")
	if err != nil {
		log.Fatalf("Failed to listen: %v", err)
	}
	if _, err := backend.StartServer(backend.Options{
		Listener:    l,
		DataDir:     dataDir,
		Storage:     s,
		GameStore:   gs,
		TeamStore:   ts,
		UseMockAuth: true,
	}); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	_, port, _ := net.SplitHostPort(l.Addr().String())
	host = "devtest.local"
	return fmt.Sprintf("http://%s:%s", host, port), host, gameID
}
