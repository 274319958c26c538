// ABOUTME: Tests for the gateway HTTP client.
// ABOUTME: Covers the outcome taxonomy: reply, remote error, and transport failure.

package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/mediline/internal/agents"
)

func TestClient_Send_Success(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		json.NewEncoder(w).Encode(Response{
			Success:            true,
			Response:           "**Diabetes** symptoms include...",
			Agent:              "Medical Conversation Agent",
			RequiresValidation: false,
		})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	reply, err := c.Send(context.Background(), &Request{
		Message:   "What are the symptoms of diabetes?",
		History:   []Turn{{Role: "user", Content: "hi", Timestamp: "2026-01-02T15:04:05Z"}},
		AgentType: agents.TypeAuto,
	})
	require.NoError(t, err)

	assert.Equal(t, "**Diabetes** symptoms include...", reply.Text)
	assert.Equal(t, "Medical Conversation Agent", reply.Agent)
	assert.False(t, reply.RequiresValidation)

	// The request body carried the history window and agent hint verbatim.
	assert.Equal(t, "What are the symptoms of diabetes?", got.Message)
	require.Len(t, got.History, 1)
	assert.Equal(t, "hi", got.History[0].Content)
	assert.Equal(t, agents.TypeAuto, got.AgentType)
	assert.Nil(t, got.Image)
}

func TestClient_Send_RemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Response{Success: false, Error: "rate limited"})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.Send(context.Background(), &Request{Message: "hi"})

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "rate limited", remote.Message)
	assert.False(t, errors.Is(err, ErrUnreachable))
}

func TestClient_Send_RemoteErrorWithoutMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Response{Success: false})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.Send(context.Background(), &Request{Message: "hi"})

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.NotEmpty(t, remote.Message)
}

func TestClient_Send_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.Send(context.Background(), &Request{Message: "hi"})
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestClient_Send_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse everything

	c := New(Config{BaseURL: srv.URL})
	_, err := c.Send(context.Background(), &Request{Message: "hi"})
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestClient_Send_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
	_, err := c.Send(context.Background(), &Request{Message: "hi"})
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestClient_SendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(Response{Success: true, Response: "ok"})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Token: "tok-123"})
	_, err := c.Send(context.Background(), &Request{Message: "hi"})
	require.NoError(t, err)
}

func TestClient_ParsePrescription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/prescription/parse", r.URL.Path)
		json.NewEncoder(w).Encode(prescriptionResponse{
			Success: true,
			Data: &PrescriptionData{
				Medications: []Medication{{Name: "Amoxicillin", Quantity: 30, Dose: "500mg", Frequency: "3x daily", Confidence: 0.92}},
			},
			Agent:    "Prescription Parser",
			Response: "Successfully parsed prescription. Found 1 medication(s).",
		})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	data, summary, err := c.ParsePrescription(context.Background(), "data:image/png;base64,AAAA")
	require.NoError(t, err)

	require.Len(t, data.Medications, 1)
	assert.Equal(t, "Amoxicillin", data.Medications[0].Name)
	assert.Contains(t, summary, "1 medication(s)")
}

func TestClient_VoiceCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/voice/command", r.URL.Path)
		json.NewEncoder(w).Encode(voiceResponse{
			Success: true,
			Data:    &VoiceIntent{Intent: "add", MedicationName: "ibuprofen", Quantity: 20, Confidence: 0.8},
		})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	intent, err := c.VoiceCommand(context.Background(), "add twenty ibuprofen")
	require.NoError(t, err)
	assert.Equal(t, "add", intent.Intent)
	assert.Equal(t, "ibuprofen", intent.MedicationName)
}

func TestClient_Health(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/health", r.URL.Path)
		json.NewEncoder(w).Encode(HealthStatus{
			Status: "healthy",
			Agents: map[string]string{"medical_chat": "active"},
		})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	status, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "active", status.Agents["medical_chat"])
}

func TestClient_Health_Unhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.Health(context.Background())
	assert.ErrorIs(t, err, ErrUnreachable)
}
