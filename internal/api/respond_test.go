package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Vasu1712/coachlink-backend/internal/apperr"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bufferLogger() (*log.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel, Formatter: log.JSONFormatter})
	return logger, &buf
}

func TestJSONLogsEncodeFailureToGivenLogger(t *testing.T) {
	logger, buf := bufferLogger()
	rec := httptest.NewRecorder()

	JSON(rec, logger, http.StatusOK, map[string]any{"ch": make(chan int)})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, buf.String(), "Failed to write response")
}

func TestErrorStatusAndBody(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
		logged bool
	}{
		{"invalid", fmt.Errorf("%w: content is required", apperr.ErrInvalid), http.StatusBadRequest, "invalid request: content is required", false},
		{"not found", fmt.Errorf("%w: message m1", apperr.ErrNotFound), http.StatusNotFound, "not found: message m1", false},
		{"store", apperr.Store("insert message", fmt.Errorf("conn reset")), http.StatusServiceUnavailable, "temporarily unavailable, retry later", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := bufferLogger()
			rec := httptest.NewRecorder()

			Error(rec, logger, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.body, body["error"])
			assert.Equal(t, tt.logged, strings.Contains(buf.String(), "Request failed"))
		})
	}
}

func TestDecodeValidatesTags(t *testing.T) {
	type request struct {
		PeerID   string `json:"peerId" validate:"required"`
		Platform string `json:"platform" validate:"max=4"`
	}
	tests := []struct {
		name string
		body string
		want string
	}{
		{"ok", `{"peerId":"p1","platform":"ios"}`, ""},
		{"missing field", `{}`, "peerId is required"},
		{"too long", `{"peerId":"p1","platform":"android"}`, "platform must be at most 4 characters"},
		{"unknown field", `{"peerId":"p1","extra":1}`, "malformed request body"},
		{"malformed", `{`, "malformed request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var req request
			err := Decode(r, &req)
			if tt.want == "" {
				require.NoError(t, err)
				assert.Equal(t, "p1", req.PeerID)
				return
			}
			require.ErrorIs(t, err, apperr.ErrInvalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
