package notes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danisherror/backend-for-notes-expense-stocks/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_CRUD(t *testing.T) {
	ctx := context.Background()
	svc := NewService(store.NewMemory())

	n, err := svc.Create(ctx, "u1", Note{Title: " Groceries ", Content: "milk"})
	require.NoError(t, err)
	assert.Equal(t, "Groceries", n.Title)
	assert.Equal(t, "Untitled", n.Folder)
	assert.Equal(t, "in development", n.Status)
	assert.Equal(t, "medium", n.Priority)
	assert.Equal(t, []string{}, n.Tags)

	_, err = svc.Create(ctx, "u1", Note{Title: "  "})
	assert.ErrorIs(t, err, ErrTitleRequired)

	_, err = svc.Get(ctx, "u2", n.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	content := "milk, eggs"
	tags := []string{"home"}
	updated, err := svc.Update(ctx, "u1", n.ID, Patch{Content: &content, Tags: &tags})
	require.NoError(t, err)
	assert.Equal(t, "Groceries", updated.Title)
	assert.Equal(t, "milk, eggs", updated.Content)
	assert.Equal(t, []string{"home"}, updated.Tags)

	_, err = svc.Update(ctx, "u2", n.ID, Patch{Content: &content})
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "milk, eggs", list[0].Content)

	assert.ErrorIs(t, svc.Delete(ctx, "u2", n.ID), ErrNotFound)
	require.NoError(t, svc.Delete(ctx, "u1", n.ID))
	assert.ErrorIs(t, svc.Delete(ctx, "u1", n.ID), ErrNotFound)
}

func TestHandler(t *testing.T) {
	h := NewHandler(NewService(store.NewMemory()))

	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/notes", strings.NewReader(`{"title":"todo","tags":["a"]}`)), "u1")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/notes", strings.NewReader(`{"content":"no title"}`)), "u1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Update(rec, httptest.NewRequest(http.MethodPut, "/api/notes/x", strings.NewReader(`{"title":"x"}`)), "u1", "x")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/notes", nil), "u1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"title":"todo"`)
}
