package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSONOK(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSONOK(w, map[string]int{"value": 42})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"value":42}`, w.Body.String())
}

func TestWriteJSONError(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w http.ResponseWriter)
		status int
		msg    string
	}{
		{"method not allowed", func(w http.ResponseWriter) { MethodNotAllowed(w) },
			http.StatusMethodNotAllowed, "method not allowed"},
		{"bad request", func(w http.ResponseWriter) { BadRequest(w, "nope") },
			http.StatusBadRequest, "nope"},
		{"internal", func(w http.ResponseWriter) { InternalServerError(w, "boom") },
			http.StatusInternalServerError, "boom"},
		{"not found", func(w http.ResponseWriter) { NotFound(w, "gone") },
			http.StatusNotFound, "gone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			assert.Equal(t, tt.status, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.msg, body["error"])
		})
	}
}

func TestMockClientReplaysResponses(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.AddResponse(http.StatusOK, `{"a":1}`)
	mock.AddErrorResponse(errors.New("connection refused"))

	resp, err := mock.Get("http://example/a")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, err = mock.Get("http://example/b")
	require.Error(t, err)

	// exhausted queue falls through to an empty 200
	resp, err = mock.Get("http://example/c")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, 3, mock.RequestCount())
	assert.Equal(t, "/a", mock.GetRequest(0).URL.Path)
	assert.Nil(t, mock.GetRequest(9))
}

func TestMockClientPost(t *testing.T) {
	mock := NewMockHTTPClient()

	resp, err := mock.Post("http://example/x", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	req := mock.GetRequest(0)
	require.NotNil(t, req)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
}

func TestStandardClientDefaults(t *testing.T) {
	c := NewStandardClient(nil)
	assert.Same(t, http.DefaultClient, c.Client)
}
