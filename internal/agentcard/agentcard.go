// Package agentcard implements the agent capability document served at the
// well-known discovery path. Remote agents are discovered, never statically
// configured: an agent is whatever its card says it is.
package agentcard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// WellKnownPath is where every agent serves its card.
const WellKnownPath = "/.well-known/agent.json"

// Skill is one declared capability.
type Skill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
}

// Card is the declarative capability document.
type Card struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	URL         string  `json:"url"`
	Version     string  `json:"version"`
	Skills      []Skill `json:"skills"`
}

// Handler serves the card.
func Handler(card Card) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, card)
	}
}

// Resolver fetches remote agent cards.
type Resolver struct {
	httpClient *http.Client
}

func NewResolver(timeout time.Duration) *Resolver {
	return &Resolver{httpClient: &http.Client{Timeout: timeout}}
}

// Resolve retrieves the card at baseURL's well-known path. Any failure
// means the agent is treated as down by the caller.
func (r *Resolver) Resolve(ctx context.Context, baseURL string) (Card, error) {
	url := strings.TrimSuffix(baseURL, "/") + WellKnownPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Card{}, fmt.Errorf("build card request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Card{}, fmt.Errorf("fetch agent card: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Card{}, fmt.Errorf("agent card status %d from %s", resp.StatusCode, url)
	}

	var card Card
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return Card{}, fmt.Errorf("decode agent card: %w", err)
	}
	if card.Name == "" {
		return Card{}, fmt.Errorf("agent card from %s has no name", url)
	}
	return card, nil
}
