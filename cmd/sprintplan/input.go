package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/backlog"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/store"
)

// backlogDocument is the JSON shape accepted for backlog files: either a bare
// array of items or an object carrying items plus optional team and goals.
type backlogDocument struct {
	Items []backlog.Item       `json:"items"`
	Team  []backlog.TeamMember `json:"team,omitempty"`
	Goals []string             `json:"goals,omitempty"`
}

// loadBacklog reads a backlog JSON file and validates the items.
func loadBacklog(path string) (backlogDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return backlogDocument{}, fmt.Errorf("reading backlog %s: %w", path, err)
	}

	var doc backlogDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		// Bare arrays of items are accepted too.
		var items []backlog.Item
		if arrErr := json.Unmarshal(data, &items); arrErr != nil {
			return backlogDocument{}, fmt.Errorf("parsing backlog %s: %w", path, err)
		}
		doc = backlogDocument{Items: items}
	}

	if err := backlog.ValidateItems(doc.Items); err != nil {
		return backlogDocument{}, err
	}
	if err := backlog.ValidateTeam(doc.Team); err != nil {
		return backlogDocument{}, err
	}
	return doc, nil
}

// loadTeam reads a team JSON file (a bare array of members).
func loadTeam(path string) ([]backlog.TeamMember, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading team %s: %w", path, err)
	}
	var team []backlog.TeamMember
	if err := json.Unmarshal(data, &team); err != nil {
		return nil, fmt.Errorf("parsing team %s: %w", path, err)
	}
	if err := backlog.ValidateTeam(team); err != nil {
		return nil, err
	}
	return team, nil
}

// openHistory opens the configured sprint history database.
func (a *app) openHistory(ctx context.Context) (*store.Store, error) {
	return store.Open(ctx, a.cfg.History.DBPath)
}

// loadHistory fetches up to limit recent sprint records, tolerating a missing
// database by returning no history.
func (a *app) loadHistory(ctx context.Context, limit int) []store.SprintRecord {
	s, err := a.openHistory(ctx)
	if err != nil {
		a.logger.Warn("sprint history unavailable", "path", a.cfg.History.DBPath, "error", err)
		return nil
	}
	defer s.Close()

	records, err := s.RecentSprints(ctx, limit)
	if err != nil {
		a.logger.Warn("reading sprint history failed", "error", err)
		return nil
	}
	return records
}
