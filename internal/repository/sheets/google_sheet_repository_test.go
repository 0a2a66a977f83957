package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/mamadbah2/dairy/internal/config"
)

func TestWriteAndReadRange(t *testing.T) {
	var appended map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
			assert.Equal(t, "RAW", r.URL.Query().Get("valueInputOption"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&appended))
			_, _ = w.Write([]byte(`{}`))
		case r.Method == http.MethodGet:
			_, _ = w.Write([]byte(`{"range":"Settlements!A:A","values":[["id"],["s-1"]]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	repo, err := NewGoogleSheetRepository(context.Background(),
		config.SheetsConfig{SpreadsheetID: "sheet-1"}, nil,
		option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication())
	require.NoError(t, err)

	require.NoError(t, repo.WriteRow(context.Background(), "Settlements!A:J", []interface{}{"s-2", "farmer"}))
	assert.Equal(t, []any{[]any{"s-2", "farmer"}}, appended["values"])

	rows, err := repo.ReadRange(context.Background(), "Settlements!A:A")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "s-1", rows[1][0])

	assert.ErrorIs(t, repo.WriteRow(context.Background(), "", nil), ErrEmptyRange)
}
