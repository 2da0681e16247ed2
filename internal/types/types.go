package types

import (
	"github.com/neboloop/wikirace/internal/daily"
	"github.com/neboloop/wikirace/internal/links"
	"github.com/neboloop/wikirace/internal/markdown"
	"github.com/neboloop/wikirace/internal/race"
	"github.com/neboloop/wikirace/internal/wiki"
)

type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

type StartRaceRequest struct {
	Start  string `json:"start"`
	Target string `json:"target"`
}

type HumanStepRequest struct {
	Locator string `json:"locator"`
	Label   string `json:"label,omitempty"`
}

// RaceView is a race snapshot plus the rendered commentary.
type RaceView struct {
	race.Snapshot
	FlavorHTML string `json:"flavorHtml,omitempty"`
}

// NewRaceView renders snap for clients.
func NewRaceView(snap race.Snapshot) RaceView {
	v := RaceView{Snapshot: snap}
	if snap.Outcome != nil {
		v.FlavorHTML = markdown.Render(snap.Outcome.FlavorText)
	}
	return v
}

type RaceResponse struct {
	Race RaceView `json:"race"`
}

type GetArticleRequest struct {
	Locator string `form:"locator"`
}

type GetArticleResponse struct {
	Title   string            `json:"title"`
	Locator string            `json:"locator"`
	Links   []links.Candidate `json:"links"`
}

type SearchRequest struct {
	Query string `form:"q"`
	Limit int    `form:"limit"`
}

type SearchResponse struct {
	Results []wiki.SearchResult `json:"results"`
}

type DailyResponse struct {
	Challenge daily.Challenge `json:"challenge"`
}
