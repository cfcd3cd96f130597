package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/progclub/duel-arena-backend/internal/models"
	"github.com/progclub/duel-arena-backend/pkg/logger"
)

// Client 외부 온라인 저지 REST 클라이언트 (Codeforces API 호환)
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type apiResponse struct {
	Status  string          `json:"status"`
	Comment string          `json:"comment"`
	Result  json.RawMessage `json:"result"`
}

type rawProblem struct {
	ContestID int      `json:"contestId"`
	Index     string   `json:"index"`
	Name      string   `json:"name"`
	Rating    int      `json:"rating"`
	Tags      []string `json:"tags"`
}

type rawSubmission struct {
	ID                  int64      `json:"id"`
	CreationTimeSeconds int64      `json:"creationTimeSeconds"`
	Problem             rawProblem `json:"problem"`
	Verdict             string     `json:"verdict"`
}

// Contest 저지 콘테스트 메타데이터
type Contest struct {
	ID               int    `json:"id"`
	Name             string `json:"name"`
	Phase            string `json:"phase"`
	StartTimeSeconds int64  `json:"startTimeSeconds"`
}

// SolveTime 특정 문제에 대한 핸들의 풀이 시각. 아직 채점 중인 제출이
// 있으면 Testing으로 보고하고 호출자가 나중에 다시 시도하게 한다.
// 정답 제출이 여러 개면 가장 이른 시각을 쓴다.
func (c *Client) SolveTime(ctx context.Context, handle string, contestID int, index string) (models.SolveOutcome, error) {
	subs, err := c.submissions(ctx, handle)
	if err != nil {
		return models.SolveOutcome{}, err
	}

	outcome := models.SolveOutcome{State: models.SolveStateUnsolved}
	for _, sub := range subs {
		if sub.Problem.ContestID != contestID || sub.Problem.Index != index {
			continue
		}

		// 판정이 비어 있거나 TESTING이면 아직 채점 중
		if sub.Verdict == "" || sub.Verdict == string(models.VerdictTesting) {
			return models.SolveOutcome{State: models.SolveStateTesting}, nil
		}

		if sub.Verdict != string(models.VerdictOK) {
			continue
		}

		at := time.Unix(sub.CreationTimeSeconds, 0).UTC()
		if outcome.State != models.SolveStateSolved || at.Before(outcome.At) {
			outcome = models.SolveOutcome{State: models.SolveStateSolved, At: at}
		}
	}

	return outcome, nil
}

// AttemptedProblems 핸들이 시도한 문제 이름 집합.
// 컴파일 에러만 받은 문제는 본 적 없는 것으로 친다.
func (c *Client) AttemptedProblems(ctx context.Context, handle string) (map[string]struct{}, error) {
	subs, err := c.submissions(ctx, handle)
	if err != nil {
		return nil, err
	}

	attempted := make(map[string]struct{})
	for _, sub := range subs {
		if sub.Verdict == string(models.VerdictCompilationError) {
			continue
		}
		attempted[sub.Problem.Name] = struct{}{}
	}

	return attempted, nil
}

// Ratings 핸들들의 저지 레이팅. 아직 레이팅이 없는 핸들은 건너뛴다.
func (c *Client) Ratings(ctx context.Context, handles []string) ([]int, error) {
	params := url.Values{}
	params.Set("handles", strings.Join(handles, ";"))

	var users []struct {
		Handle string `json:"handle"`
		Rating int    `json:"rating"`
	}
	if err := c.call(ctx, "user.info", params, &users); err != nil {
		return nil, err
	}

	ratings := make([]int, 0, len(users))
	for _, u := range users {
		if u.Rating > 0 {
			ratings = append(ratings, u.Rating)
		}
	}

	return ratings, nil
}

// Problems 레이팅이 붙은 전체 문제 목록
func (c *Client) Problems(ctx context.Context) ([]models.Problem, error) {
	var result struct {
		Problems []rawProblem `json:"problems"`
	}
	if err := c.call(ctx, "problemset.problems", url.Values{}, &result); err != nil {
		return nil, err
	}

	problems := make([]models.Problem, 0, len(result.Problems))
	for _, p := range result.Problems {
		if p.Rating == 0 {
			continue
		}
		problems = append(problems, models.Problem{
			ContestID: p.ContestID,
			Index:     p.Index,
			Name:      p.Name,
			Rating:    p.Rating,
			Tags:      p.Tags,
			URL:       fmt.Sprintf("https://codeforces.com/contest/%d/problem/%s", p.ContestID, p.Index),
		})
	}

	return problems, nil
}

// Contests 전체 콘테스트 목록
func (c *Client) Contests(ctx context.Context) ([]Contest, error) {
	var contests []Contest
	if err := c.call(ctx, "contest.list", url.Values{}, &contests); err != nil {
		return nil, err
	}
	return contests, nil
}

func (c *Client) submissions(ctx context.Context, handle string) ([]rawSubmission, error) {
	params := url.Values{}
	params.Set("handle", handle)

	var subs []rawSubmission
	if err := c.call(ctx, "user.status", params, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

func (c *Client) call(ctx context.Context, method string, params url.Values, out interface{}) error {
	endpoint := fmt.Sprintf("%s/%s", c.baseURL, method)
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("judge request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("judge returned status %d", resp.StatusCode)
	}

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode judge response: %w", err)
	}

	if envelope.Status != "OK" {
		logger.Warn("judge call failed", "method", method, "comment", envelope.Comment)
		return fmt.Errorf("judge call %s failed: %s", method, envelope.Comment)
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("failed to decode judge result: %w", err)
		}
	}

	return nil
}
