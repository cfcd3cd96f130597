package bracket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, "user", "key", 5*time.Second)
}

func TestClient_ReportWinner(t *testing.T) {
	ctx := context.Background()

	t.Run("sends score and winner", func(t *testing.T) {
		var got map[string]map[string]interface{}
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "/tournaments/club_1/matches/42.json", r.URL.Path)

			user, pass, ok := r.BasicAuth()
			require.True(t, ok)
			assert.Equal(t, "user", user)
			assert.Equal(t, "key", pass)

			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			fmt.Fprint(w, `{}`)
		})

		require.NoError(t, client.ReportWinner(ctx, "club_1", 42, 7, ScoreChallengeeWin))
		assert.Equal(t, "0-1", got["match"]["scores_csv"])
		assert.Equal(t, float64(7), got["match"]["winner_id"])
	})

	t.Run("closed match maps to sentinel", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
		})

		err := client.ReportWinner(ctx, "club_1", 42, 7, ScoreChallengerWin)
		assert.ErrorIs(t, err, ErrAlreadyClosed)
	})

	t.Run("missing match maps to not found", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		err := client.ReportWinner(ctx, "club_1", 42, 7, ScoreChallengerWin)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestClient_Participants(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tournaments/club_1/participants.json", r.URL.Path)
		fmt.Fprint(w, `[
			{"participant":{"id":1,"name":"Alice","misc":"user-a"}},
			{"participant":{"id":2,"name":"Bob","misc":"user-b"}}
		]`)
	})

	participants, err := client.Participants(context.Background(), "club_1")
	require.NoError(t, err)

	require.Len(t, participants, 2)
	assert.Equal(t, "user-a", participants[0].Misc)
	assert.Equal(t, 2, participants[1].ID)
}

func TestClient_Matches(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"match":{"id":10,"state":"open","player1_id":1,"player2_id":2}},
			{"match":{"id":11,"state":"pending","player1_id":null,"player2_id":null}}
		]`)
	})

	matches, err := client.Matches(context.Background(), "club_1")
	require.NoError(t, err)

	require.Len(t, matches, 2)
	assert.Equal(t, MatchStateOpen, matches[0].State)
	require.NotNil(t, matches[0].Player1ID)
	assert.Equal(t, 1, *matches[0].Player1ID)
	assert.Nil(t, matches[1].Player1ID)
}
