package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clahub/clahub/internal/api/handler"
)

type mockPinger struct {
	pingFn func(ctx context.Context) error
}

func (m *mockPinger) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

func TestHealth_Healthy(t *testing.T) {
	h := handler.NewHealthHandler(&mockPinger{}, "1.2.3")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	var data struct {
		Status   string `json:"status"`
		Version  string `json:"version"`
		Database struct {
			Connected bool `json:"connected"`
		} `json:"database"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "healthy", data.Status)
	assert.Equal(t, "1.2.3", data.Version)
	assert.True(t, data.Database.Connected)
}

func TestHealth_DegradedWhenDBUnreachable(t *testing.T) {
	h := handler.NewHealthHandler(&mockPinger{
		pingFn: func(context.Context) error { return errors.New("connection refused") },
	}, "1.2.3")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	var data struct {
		Status   string `json:"status"`
		Database struct {
			Connected bool `json:"connected"`
		} `json:"database"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "degraded", data.Status)
	assert.False(t, data.Database.Connected)
}
