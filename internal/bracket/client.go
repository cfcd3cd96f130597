package bracket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/progclub/duel-arena-backend/pkg/logger"
)

var (
	// ErrAlreadyClosed 이미 닫힌 매치에 대한 보고. 중복 보고는 성공으로
	// 취급해도 안전하다.
	ErrAlreadyClosed = errors.New("match already closed")
	ErrNotFound      = errors.New("bracket resource not found")
)

const (
	MatchStateOpen     = "open"
	MatchStateComplete = "complete"

	ScoreChallengerWin = "1-0"
	ScoreChallengeeWin = "0-1"
)

type Tournament struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	URL     string `json:"url"`
	State   string `json:"state"`
	FullURL string `json:"full_challonge_url"`
}

// Participant 원격 브래킷 참가자. Misc 필드에 로컬 사용자 ID를 실어
// 양쪽을 잇는다.
type Participant struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Misc string `json:"misc"`
}

type Match struct {
	ID        int    `json:"id"`
	State     string `json:"state"`
	Player1ID *int   `json:"player1_id"`
	Player2ID *int   `json:"player2_id"`
	WinnerID  *int   `json:"winner_id"`
}

// Client 브래킷 호스팅 서비스 REST 클라이언트 (Challonge v1 호환)
type Client struct {
	baseURL    string
	username   string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, username, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:  baseURL,
		username: username,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CreateTournament 새 토너먼트 생성
func (c *Client) CreateTournament(ctx context.Context, name, urlStub string) (*Tournament, error) {
	body := map[string]interface{}{
		"tournament": map[string]interface{}{
			"name":            name,
			"url":             urlStub,
			"tournament_type": "single elimination",
		},
	}

	var envelope struct {
		Tournament Tournament `json:"tournament"`
	}
	if err := c.do(ctx, http.MethodPost, "/tournaments.json", body, &envelope); err != nil {
		return nil, err
	}

	logger.Info("bracket tournament created", "url", envelope.Tournament.URL)
	return &envelope.Tournament, nil
}

// StartTournament 토너먼트 시작 (매치 생성)
func (c *Client) StartTournament(ctx context.Context, urlStub string) error {
	path := fmt.Sprintf("/tournaments/%s/start.json", urlStub)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// FinalizeTournament 토너먼트 종료 처리
func (c *Client) FinalizeTournament(ctx context.Context, urlStub string) error {
	path := fmt.Sprintf("/tournaments/%s/finalize.json", urlStub)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// AddParticipant 참가자 추가. misc에는 로컬 사용자 ID를 넣는다.
func (c *Client) AddParticipant(ctx context.Context, urlStub, name, misc string) (*Participant, error) {
	body := map[string]interface{}{
		"participant": map[string]interface{}{
			"name": name,
			"misc": misc,
		},
	}

	var envelope struct {
		Participant Participant `json:"participant"`
	}
	path := fmt.Sprintf("/tournaments/%s/participants.json", urlStub)
	if err := c.do(ctx, http.MethodPost, path, body, &envelope); err != nil {
		return nil, err
	}

	return &envelope.Participant, nil
}

// Participants 참가자 전체 조회
func (c *Client) Participants(ctx context.Context, urlStub string) ([]Participant, error) {
	var envelopes []struct {
		Participant Participant `json:"participant"`
	}
	path := fmt.Sprintf("/tournaments/%s/participants.json", urlStub)
	if err := c.do(ctx, http.MethodGet, path, nil, &envelopes); err != nil {
		return nil, err
	}

	participants := make([]Participant, 0, len(envelopes))
	for _, e := range envelopes {
		participants = append(participants, e.Participant)
	}
	return participants, nil
}

// Matches 매치 전체 조회
func (c *Client) Matches(ctx context.Context, urlStub string) ([]Match, error) {
	var envelopes []struct {
		Match Match `json:"match"`
	}
	path := fmt.Sprintf("/tournaments/%s/matches.json", urlStub)
	if err := c.do(ctx, http.MethodGet, path, nil, &envelopes); err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(envelopes))
	for _, e := range envelopes {
		matches = append(matches, e.Match)
	}
	return matches, nil
}

// ReportWinner 매치 승자 보고. 이미 닫힌 매치면 ErrAlreadyClosed.
func (c *Client) ReportWinner(ctx context.Context, urlStub string, matchID, winnerParticipantID int, score string) error {
	body := map[string]interface{}{
		"match": map[string]interface{}{
			"scores_csv": score,
			"winner_id":  winnerParticipantID,
		},
	}

	path := fmt.Sprintf("/tournaments/%s/matches/%d.json", urlStub, matchID)
	return c.do(ctx, http.MethodPut, path, body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.SetBasicAuth(c.username, c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("bracket request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusUnprocessableEntity:
		// 이미 종료된 매치에 대한 중복 보고 등
		return ErrAlreadyClosed
	case resp.StatusCode >= 400:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		logger.Warn("bracket request rejected",
			"method", method, "path", path, "status", resp.StatusCode, "body", string(data))
		return fmt.Errorf("bracket returned status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode bracket response: %w", err)
		}
	}

	return nil
}
