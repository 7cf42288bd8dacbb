// Package project holds per-user requirements-gathering state and the
// process-wide keyed store that owns it.
package project

import (
	"time"

	"metagent/pkg/proto"
)

// Project is one user's accumulated session state. It is owned exclusively
// by the Store under that user's key and mutated only inside
// Store.WithProject.
type Project struct {
	UserID      int64
	ProjectName string

	// TargetURLs preserves insertion order with set-like uniqueness.
	TargetURLs []string

	// PageAnalyses maps URL to its one-time analysis.
	PageAnalyses map[string]*proto.PageAnalysis

	// FinalAnalysis is set exactly once, at the summary stage.
	FinalAnalysis *proto.FinalAnalysis

	// AutomationPrompt is rendered once on confirmation and never
	// regenerated, so repeated generation attempts stay reproducible.
	AutomationPrompt string

	// GeneratedArtifact is the path of the produced file, if any.
	GeneratedArtifact string

	// ContextHistory is append-only.
	ContextHistory []proto.HistoryEntry

	Status    proto.Stage
	CreatedAt time.Time
}

// NewProject creates a fresh project at the initial stage.
func NewProject(userID int64) *Project {
	return &Project{
		UserID:       userID,
		TargetURLs:   []string{},
		PageAnalyses: make(map[string]*proto.PageAnalysis),
		Status:       proto.StageLinkCollection,
		CreatedAt:    time.Now().UTC(),
	}
}

// ExchangeCount returns the number of completed user/assistant pairs.
func (p *Project) ExchangeCount() int {
	return len(p.ContextHistory) / 2
}

// AppendUser appends a user message to the history.
func (p *Project) AppendUser(content string) {
	p.ContextHistory = append(p.ContextHistory, proto.HistoryEntry{
		Role:    proto.RoleUser,
		Content: content,
	})
}

// AppendAssistant appends an assistant message to the history.
func (p *Project) AppendAssistant(content string) {
	p.ContextHistory = append(p.ContextHistory, proto.HistoryEntry{
		Role:    proto.RoleAssistant,
		Content: content,
	})
}

// AddURLs appends URLs not already present, preserving order. Returns the
// URLs that were actually added.
func (p *Project) AddURLs(urls []string) []string {
	seen := make(map[string]bool, len(p.TargetURLs))
	for _, u := range p.TargetURLs {
		seen[u] = true
	}

	var added []string
	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		p.TargetURLs = append(p.TargetURLs, u)
		added = append(added, u)
	}
	return added
}

// AdvanceTo moves status forward to stage if it is later than the current
// one. Status never moves backward.
func (p *Project) AdvanceTo(stage proto.Stage) {
	p.Status = proto.MaxStage(p.Status, stage)
}

// HasPageAnalyses reports whether at least one URL has been analyzed.
func (p *Project) HasPageAnalyses() bool {
	return len(p.PageAnalyses) > 0
}

// RecentHistory returns the last n history entries.
func (p *Project) RecentHistory(n int) []proto.HistoryEntry {
	if n >= len(p.ContextHistory) {
		return p.ContextHistory
	}
	return p.ContextHistory[len(p.ContextHistory)-n:]
}
