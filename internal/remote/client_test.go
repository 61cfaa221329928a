package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"organiza/internal/model"
	"organiza/internal/syncer"
)

func TestGetAllDecodesAndAuthorizes(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]model.Idea{
			{ID: "a", Title: "first", Tag: "Sem tag", CreatedAt: "2024-03-01T10:00:00.000Z"},
		})
	}))
	defer srv.Close()

	col := NewCollection[model.Idea](NewClient(srv.URL, "tok-123"), "ideas")
	list, err := col.GetAll(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "/v1/users/u1/ideas", gotPath)
	assert.Equal(t, "Bearer tok-123", gotAuth)
}

func TestInsertWithIDPutsRecord(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody model.Transaction
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	col := NewCollection[model.Transaction](NewClient(srv.URL, "tok"), "transactions")
	tx := model.Transaction{
		ID: "42", Type: model.TypeExpense, Category: model.DefaultCategory,
		Date: "05/03/2024", DateTS: model.DateToEpochMS("05/03/2024"),
		Amount: 3.5, CreatedAt: "2024-03-05T10:00:00.000Z",
	}
	require.NoError(t, col.InsertWithID(context.Background(), "u1", "42", tx))
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/v1/users/u1/transactions/42", gotPath)
	assert.Equal(t, tx.Amount, gotBody.Amount)
	assert.Equal(t, tx.DateTS, gotBody.DateTS)
}

func TestUpdateMissingRecordIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	col := NewCollection[model.Idea](NewClient(srv.URL, "tok"), "ideas")
	err := col.Update(context.Background(), "u1", "ghost", model.Patch{"title": "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, syncer.ErrNotFound))
}

func TestRemoveAbsentRecordIsNoOp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	col := NewCollection[model.Idea](NewClient(srv.URL, "tok"), "ideas")
	assert.NoError(t, col.Remove(context.Background(), "u1", "ghost"))
}

func TestServerErrorSurfacesStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	col := NewCollection[model.Idea](NewClient(srv.URL, "tok"), "ideas")
	_, err := col.GetAll(context.Background(), "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "boom")
}

func TestListenStreamsPushes(t *testing.T) {
	payloads := make(chan []model.Idea, 2)
	payloads <- []model.Idea{{ID: "a", Title: "first", Tag: "Sem tag", CreatedAt: "2024-03-01T10:00:00.000Z"}}
	payloads <- []model.Idea{
		{ID: "a", Title: "first", Tag: "Sem tag", CreatedAt: "2024-03-01T10:00:00.000Z"},
		{ID: "b", Title: "second", Tag: "Sem tag", CreatedAt: "2024-03-02T10:00:00.000Z"},
	}
	close(payloads)

	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.URL.Query().Get("token")
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")
		for p := range payloads {
			if err := wsjson.Write(r.Context(), conn, p); err != nil {
				return
			}
		}
		// hold the stream open until the client hangs up
		ctx := conn.CloseRead(r.Context())
		<-ctx.Done()
	}))
	defer srv.Close()

	var mu sync.Mutex
	var got [][]model.Idea
	received := make(chan struct{}, 4)

	col := NewCollection[model.Idea](NewClient(srv.URL, "tok-ws"), "ideas")
	stop, err := col.Listen(context.Background(), "u1",
		func(list []model.Idea) {
			mu.Lock()
			got = append(got, list)
			mu.Unlock()
			received <- struct{}{}
		},
		func(err error) {},
	)
	require.NoError(t, err)
	defer stop()

	for i := 0; i < 2; i++ {
		select {
		case <-received:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for push %d", i+1)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Len(t, got[0], 1)
	assert.Len(t, got[1], 2)
	assert.Equal(t, "tok-ws", gotToken)
}

func TestListenDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no websocket here", http.StatusBadRequest)
	}))
	defer srv.Close()

	col := NewCollection[model.Idea](NewClient(srv.URL, "tok"), "ideas")
	_, err := col.Listen(context.Background(), "u1", func([]model.Idea) {}, func(error) {})
	require.Error(t, err)
}
