package judge

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/progclub/duel-arena-backend/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, 5*time.Second)
}

func submissionsResponse(subs string) string {
	return fmt.Sprintf(`{"status":"OK","result":[%s]}`, subs)
}

func TestClient_SolveTime(t *testing.T) {
	ctx := context.Background()

	t.Run("earliest accepted submission wins", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, submissionsResponse(`
				{"id":1,"creationTimeSeconds":2000,"verdict":"OK","problem":{"contestId":10,"index":"B","name":"P"}},
				{"id":2,"creationTimeSeconds":1000,"verdict":"OK","problem":{"contestId":10,"index":"B","name":"P"}},
				{"id":3,"creationTimeSeconds":500,"verdict":"WRONG_ANSWER","problem":{"contestId":10,"index":"B","name":"P"}},
				{"id":4,"creationTimeSeconds":100,"verdict":"OK","problem":{"contestId":10,"index":"A","name":"Other"}}
			`))
		})

		outcome, err := client.SolveTime(ctx, "alice", 10, "B")
		require.NoError(t, err)
		assert.Equal(t, models.SolveStateSolved, outcome.State)
		assert.Equal(t, time.Unix(1000, 0).UTC(), outcome.At)
	})

	t.Run("submission still in judgement", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, submissionsResponse(`
				{"id":1,"creationTimeSeconds":1000,"verdict":"TESTING","problem":{"contestId":10,"index":"B","name":"P"}}
			`))
		})

		outcome, err := client.SolveTime(ctx, "alice", 10, "B")
		require.NoError(t, err)
		assert.Equal(t, models.SolveStateTesting, outcome.State)
	})

	t.Run("no relevant submissions", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, submissionsResponse(`
				{"id":1,"creationTimeSeconds":1000,"verdict":"OK","problem":{"contestId":99,"index":"A","name":"Other"}}
			`))
		})

		outcome, err := client.SolveTime(ctx, "alice", 10, "B")
		require.NoError(t, err)
		assert.Equal(t, models.SolveStateUnsolved, outcome.State)
	})

	t.Run("judge failure surfaces as error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"status":"FAILED","comment":"handle: no such user"}`)
		})

		_, err := client.SolveTime(ctx, "ghost", 10, "B")
		assert.Error(t, err)
	})
}

func TestClient_AttemptedProblems(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, submissionsResponse(`
			{"id":1,"verdict":"OK","problem":{"contestId":1,"index":"A","name":"Solved"}},
			{"id":2,"verdict":"WRONG_ANSWER","problem":{"contestId":1,"index":"B","name":"Tried"}},
			{"id":3,"verdict":"COMPILATION_ERROR","problem":{"contestId":1,"index":"C","name":"Botched"}}
		`))
	})

	attempted, err := client.AttemptedProblems(context.Background(), "alice")
	require.NoError(t, err)

	assert.Contains(t, attempted, "Solved")
	assert.Contains(t, attempted, "Tried")
	// 컴파일 에러만 있는 문제는 본 적 없는 것으로 친다
	assert.NotContains(t, attempted, "Botched")
}

func TestClient_Ratings(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "alice;bob", r.URL.Query().Get("handles"))
		fmt.Fprint(w, `{"status":"OK","result":[{"handle":"alice","rating":1850},{"handle":"bob"}]}`)
	})

	ratings, err := client.Ratings(context.Background(), []string{"alice", "bob"})
	require.NoError(t, err)

	// 레이팅 없는 핸들은 빠진다
	assert.Equal(t, []int{1850}, ratings)
}
