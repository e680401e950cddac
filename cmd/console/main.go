// Command console is a terminal playtest client: it plays the hunt as a
// simulated LINE user through the API's /v1/play endpoint.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
)

type ConsoleConfig struct {
	APIBaseURL string
	UserID     string
	Timeout    time.Duration
}

func main() {
	cfg := &ConsoleConfig{
		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8080"),
		Timeout:    30 * time.Second,
	}
	flag.StringVar(&cfg.UserID, "user", "", "Player id to play as (default: a new random id)")
	flag.Parse()

	if cfg.UserID == "" {
		cfg.UserID = newPlayerID()
	}

	api := NewAPIClient(&http.Client{Timeout: cfg.Timeout}, cfg.APIBaseURL)

	if !api.testConnection() {
		fmt.Fprintf(os.Stderr, "Could not connect to API. Please ensure the API is running.\nTry: docker-compose up -d\n")
		os.Exit(1)
	}

	p := tea.NewProgram(NewConsoleUI(cfg, api),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

// newPlayerID mimics the shape of a LINE user id so logs look familiar.
func newPlayerID() string {
	return "Uconsole" + uuid.New().String()[:8]
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
