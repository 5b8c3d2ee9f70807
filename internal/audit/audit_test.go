package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlogLogger_Log(t *testing.T) {
	tests := []struct {
		name          string
		event         Event
		wantEventType string
		wantSource    string
		wantHasError  bool
	}{
		{
			name: "face detected event",
			event: Event{
				EventType: EventFaceDetected,
				Source:    "rekognition",
				Success:   true,
				Metadata: map[string]string{
					"faces_count": "1",
				},
			},
			wantEventType: string(EventFaceDetected),
			wantSource:    "rekognition",
		},
		{
			name: "photo processed event",
			event: Event{
				RequestID: "req-123",
				EventType: EventPhotoProcessed,
				Source:    "pipeline",
				Success:   true,
				Metadata: map[string]string{
					"outcome": "passing",
					"score":   "0.91",
				},
			},
			wantEventType: string(EventPhotoProcessed),
			wantSource:    "pipeline",
		},
		{
			name: "background isolation failure",
			event: Event{
				EventType: EventBackgroundFailed,
				Source:    "background",
				Success:   false,
				Error:     "connection refused",
			},
			wantEventType: string(EventBackgroundFailed),
			wantSource:    "background",
			wantHasError:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			err := NewSlogLogger(logger).Log(context.Background(), tt.event)

			require.NoError(t, err)

			output := buf.String()
			assert.Contains(t, output, tt.wantEventType)
			assert.Contains(t, output, tt.wantSource)
			assert.Contains(t, output, "audit_event")
			assert.Contains(t, output, `"component":"audit"`)

			if tt.wantHasError {
				assert.Contains(t, output, tt.event.Error)
			}
		})
	}
}

func TestSlogLogger_Log_GeneratesIDAndTimestamp(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := NewSlogLogger(logger).Log(context.Background(), Event{
		EventType: EventProfileReloaded,
		Source:    "profile",
		Success:   true,
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)

	var logEntry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &logEntry))

	eventID, ok := logEntry["event_id"].(string)
	require.True(t, ok)
	_, err = uuid.Parse(eventID)
	assert.NoError(t, err)

	var data Event
	require.NoError(t, json.Unmarshal([]byte(logEntry["event_data"].(string)), &data))
	assert.False(t, data.Timestamp.IsZero())
}

func TestSlogLogger_Log_UsesProvidedID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	expectedID := uuid.New()

	err := NewSlogLogger(logger).Log(context.Background(), Event{
		ID:        expectedID,
		Timestamp: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		EventType: EventProfileLearned,
		Source:    "learner",
		Success:   true,
	})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), expectedID.String())
}

func TestNoOpLogger_Log(t *testing.T) {
	logger := &NoOpLogger{}

	err := logger.Log(context.Background(), Event{EventType: EventPhotoAssessed})

	assert.NoError(t, err)
}

func TestLoggerInterface_Compliance(t *testing.T) {
	var _ Logger = (*SlogLogger)(nil)
	var _ Logger = (*NoOpLogger)(nil)
}

func TestEvent_JSONSerialization_OmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(Event{
		EventType: EventFaceAnalyzed,
		Source:    "rekognition",
		Success:   true,
	})
	require.NoError(t, err)

	jsonStr := string(data)
	assert.NotContains(t, jsonStr, "request_id")
	assert.NotContains(t, jsonStr, "error")
	assert.NotContains(t, jsonStr, "metadata")
}
