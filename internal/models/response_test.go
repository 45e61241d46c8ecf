package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewErrorResponse(t *testing.T) {
	data, err := json.Marshal(NewErrorResponse(MessageInvalidOrExpired))
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"invalid or expired"}`, string(data))
}

func TestTokenResponse_JSON(t *testing.T) {
	data, err := json.Marshal(TokenResponse{Token: "abc.def", ExpiresIn: 40, Param: "t"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"abc.def","expires_in":40,"param":"t"}`, string(data))
}

func TestHealthCheckResponse_AddComponent(t *testing.T) {
	tests := []struct {
		name     string
		statuses []string
		expected string
	}{
		{"all healthy", []string{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"one degraded", []string{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"unhealthy wins", []string{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthCheckResponse(StatusHealthy)
			for i, s := range tt.statuses {
				h.AddComponent(string(rune('a'+i)), s, "")
			}
			assert.Equal(t, tt.expected, h.Status)
			assert.Len(t, h.Components, len(tt.statuses))
		})
	}
}
