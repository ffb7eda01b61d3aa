// Package appservice talks to the application server that owns user
// accounts, challenges and Elo ratings. The game server fetches the
// challenge for a game id at login time and posts the result back when
// the game ends.
package appservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// ErrUnknownChallenge marks a game id the application server has no
// challenge for.
var ErrUnknownChallenge = errors.New("unknown challenge")

// The upstream schema spells it "challange"; the wire strings must
// match it even though it is a misspelling.
const (
	challengeQueryFmt = `query { challange(gameId: %q) { id fromUser { username eloRating } toUser { username eloRating } eloRatingChanges } }`
	endGameMutateFmt  = `mutation { endGame(challangeId: %q, winnerUsername: %q) { challange { id } } }`
)

// UserRating is a username with its current Elo.
type UserRating struct {
	Username string `json:"username"`
	Elo      int    `json:"eloRating"`
}

// RatingChange is the projected Elo a player would hold after each
// possible result, precomputed by the application server.
type RatingChange struct {
	Win  int `json:"win"`
	Draw int `json:"draw"`
	Lose int `json:"lose"`
}

// Challenge describes one issued game challenge.
type Challenge struct {
	ID       string
	FromUser UserRating
	ToUser   UserRating
	// Changes maps each participant's username to their projected
	// ratings.
	Changes map[string]RatingChange
}

// Participant reports whether username belongs to the challenge and
// returns that side's rating.
func (c *Challenge) Participant(username string) (UserRating, bool) {
	switch username {
	case c.FromUser.Username:
		return c.FromUser, true
	case c.ToUser.Username:
		return c.ToUser, true
	}
	return UserRating{}, false
}

// ChallengeSource yields challenge data for a game id.
type ChallengeSource interface {
	FetchChallenge(ctx context.Context, gameID string) (*Challenge, error)
}

// Client is a GraphQL-over-HTTP client for the application server.
type Client struct {
	url    string
	client *http.Client
	log    *logrus.Entry
}

// NewClient creates a client for the GraphQL endpoint at url.
func NewClient(url string, log *logrus.Logger) *Client {
	return &Client{
		url: url,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		log: log.WithField("component", "appservice"),
	}
}

type graphQLRequest struct {
	Query string `json:"query"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data struct {
		Challange *struct {
			ID       string     `json:"id"`
			FromUser UserRating `json:"fromUser"`
			ToUser   UserRating `json:"toUser"`
			// The server stores the projections as a JSON string
			// inside the JSON response, so it is decoded twice.
			EloRatingChanges string `json:"eloRatingChanges"`
		} `json:"challange"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// FetchChallenge loads the challenge for a game id.
func (c *Client) FetchChallenge(ctx context.Context, gameID string) (*Challenge, error) {
	var resp graphQLResponse
	if err := c.post(ctx, fmt.Sprintf(challengeQueryFmt, gameID), &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("app service: %s", resp.Errors[0].Message)
	}
	raw := resp.Data.Challange
	if raw == nil {
		return nil, fmt.Errorf("no challenge found for game %q: %w", gameID, ErrUnknownChallenge)
	}

	changes := make(map[string]RatingChange)
	if raw.EloRatingChanges != "" {
		if err := json.Unmarshal([]byte(raw.EloRatingChanges), &changes); err != nil {
			return nil, fmt.Errorf("decoding elo projections: %w", err)
		}
	}

	return &Challenge{
		ID:       raw.ID,
		FromUser: raw.FromUser,
		ToUser:   raw.ToUser,
		Changes:  changes,
	}, nil
}

// PostResult reports the final result of a game. An empty winner
// username records a draw. Transient failures are retried with
// exponential backoff; the caller decides what a final failure means.
func (c *Client) PostResult(ctx context.Context, gameID, winnerUsername string) error {
	query := fmt.Sprintf(endGameMutateFmt, gameID, winnerUsername)

	attempt := func() error {
		var resp graphQLResponse
		if err := c.post(ctx, query, &resp); err != nil {
			return err
		}
		if len(resp.Errors) > 0 {
			// Schema-level rejections will not heal on retry.
			return backoff.Permanent(fmt.Errorf("app service: %s", resp.Errors[0].Message))
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(attempt, policy); err != nil {
		return fmt.Errorf("posting result for game %s: %w", gameID, err)
	}
	c.log.WithFields(logrus.Fields{
		"game_id": gameID,
		"winner":  winnerUsername,
	}).Info("result posted")
	return nil
}

func (c *Client) post(ctx context.Context, query string, out *graphQLResponse) error {
	body, err := json.Marshal(graphQLRequest{Query: query})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("app service returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
