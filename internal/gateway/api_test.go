// ABOUTME: Tests for the gateway HTTP API handlers
// ABOUTME: Uses a mock model and in-memory store to exercise routing and error paths

package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/mediline/internal/agents"
	"github.com/carebridge/mediline/internal/auth"
	"github.com/carebridge/mediline/internal/chat"
	"github.com/carebridge/mediline/internal/genai"
	"github.com/carebridge/mediline/internal/store"
)

// mockModel implements GenerativeModel with canned responses.
type mockModel struct {
	text string
	err  error

	lastPrompt string
	lastImage  *genai.ImagePart
	calls      int
}

func (m *mockModel) Generate(ctx context.Context, prompt string, image *genai.ImagePart) (string, error) {
	m.calls++
	m.lastPrompt = prompt
	m.lastImage = image
	return m.text, m.err
}

func (m *mockModel) Model() string { return "mock-model" }

func newTestGateway(model GenerativeModel) (*Gateway, *store.MockStore) {
	mockStore := store.NewMockStore()
	g := &Gateway{
		model:   model,
		catalog: agents.Builtin(),
		store:   mockStore,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return g, mockStore
}

func postChat(t *testing.T, g *Gateway, body any) (*httptest.ResponseRecorder, *ChatResponse) {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	g.routes().ServeHTTP(rec, req)

	var resp ChatResponse
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, &resp
}

func testImage() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("fake image bytes"))
}

func TestHandleChat_AutoRoutesToMedicalChat(t *testing.T) {
	model := &mockModel{text: "Drink plenty of fluids and rest."}
	g, _ := newTestGateway(model)

	rec, resp := postChat(t, g, ChatRequest{
		Message:   "I have a sore throat",
		AgentType: "auto",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "Drink plenty of fluids and rest.", resp.Response)
	assert.Equal(t, "Medical Conversation Agent", resp.Agent)
	assert.False(t, resp.RequiresValidation)

	assert.Contains(t, model.lastPrompt, "professional Medical AI Assistant")
	assert.Contains(t, model.lastPrompt, "user: I have a sore throat\nassistant:")
}

func TestHandleChat_PromptIncludesHistory(t *testing.T) {
	model := &mockModel{text: "ok"}
	g, _ := newTestGateway(model)

	history := []chat.Turn{
		{Role: "user", Content: "I get headaches", Timestamp: "2026-01-01T10:00:00Z"},
		{Role: "assistant", Content: "How often do they occur?", Timestamp: "2026-01-01T10:00:05Z"},
	}

	rec, _ := postChat(t, g, ChatRequest{
		Message:   "Almost every morning",
		History:   history,
		AgentType: "medical-chat",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, model.lastPrompt, "user: I get headaches\n")
	assert.Contains(t, model.lastPrompt, "assistant: How often do they occur?\n")
}

func TestHandleChat_PromptTruncatesHistory(t *testing.T) {
	model := &mockModel{text: "ok"}
	g, _ := newTestGateway(model)

	var history []chat.Turn
	for i := 0; i < 15; i++ {
		history = append(history, chat.Turn{
			Role:      "user",
			Content:   "turn " + string(rune('a'+i)),
			Timestamp: "2026-01-01T10:00:00Z",
		})
	}

	rec, _ := postChat(t, g, ChatRequest{
		Message:   "question",
		History:   history,
		AgentType: "medical-chat",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	// Only the last 10 turns make it into the prompt
	assert.NotContains(t, model.lastPrompt, "turn a")
	assert.NotContains(t, model.lastPrompt, "turn e")
	assert.Contains(t, model.lastPrompt, "turn f")
	assert.Contains(t, model.lastPrompt, "turn o")
}

func TestHandleChat_MedicalChatWithImage(t *testing.T) {
	model := &mockModel{text: "This looks like a mild rash."}
	g, _ := newTestGateway(model)

	img := testImage()
	rec, resp := postChat(t, g, ChatRequest{
		Message:   "What is this on my arm?",
		Image:     &img,
		AgentType: "medical-chat",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	require.NotNil(t, model.lastImage)
	assert.Equal(t, "image/png", model.lastImage.MIMEType)
	assert.Contains(t, model.lastPrompt, "Analyze this image and respond to: What is this on my arm?")
}

func TestHandleChat_AutoRoutesPrescriptionWithImage(t *testing.T) {
	model := &mockModel{text: `{"medications": [{"name": "Amoxicillin", "quantity": 30, "dose": "500mg", "frequency": "3x daily", "confidence": 0.95}], "patient": {"name": "Jane Doe"}, "doctor": {"name": "Dr. Smith"}, "date": "2026-08-01", "human_review_required": false}`}
	g, _ := newTestGateway(model)

	img := testImage()
	rec, resp := postChat(t, g, ChatRequest{
		Message:   "Please parse this prescription",
		Image:     &img,
		AgentType: "auto",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "Prescription Parser", resp.Agent)
	assert.Equal(t, "Successfully parsed prescription. Found 1 medication(s).", resp.Response)
	require.NotNil(t, resp.Data)
	require.Len(t, resp.Data.Medications, 1)
	assert.Equal(t, "Amoxicillin", resp.Data.Medications[0].Name)
}

func TestHandleChat_PrescriptionWithoutImage(t *testing.T) {
	g, mockStore := newTestGateway(&mockModel{})

	rec, _ := postChat(t, g, ChatRequest{
		Message:   "parse my prescription",
		AgentType: "prescription",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Image required for prescription parsing")

	// Rejected requests are not recorded
	count, _ := mockStore.CountExchanges(context.Background())
	assert.Equal(t, 0, count)
}

func TestHandleChat_InvalidAgentType(t *testing.T) {
	g, _ := newTestGateway(&mockModel{})

	rec, _ := postChat(t, g, ChatRequest{
		Message:   "hello",
		AgentType: "surgeon",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid agent type")
}

func TestHandleChat_InvalidJSON(t *testing.T) {
	g, _ := newTestGateway(&mockModel{})

	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	g.routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid JSON body")
}

func TestHandleChat_EmptyMessage(t *testing.T) {
	g, _ := newTestGateway(&mockModel{})

	rec, _ := postChat(t, g, ChatRequest{Message: ""})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "message is required")
}

func TestHandleChat_ModelErrorReportsInBody(t *testing.T) {
	model := &mockModel{err: errors.New("model unavailable")}
	g, mockStore := newTestGateway(model)

	rec, resp := postChat(t, g, ChatRequest{
		Message:   "I have a cough",
		AgentType: "medical-chat",
	})

	// Agent failures keep HTTP 200; the body carries the failure
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "model unavailable")
	assert.Equal(t, fallbackChat, resp.Response)

	// Failed exchanges are still recorded
	recent, err := mockStore.RecentExchanges(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Contains(t, recent[0].Error, "model unavailable")
	assert.Empty(t, recent[0].Response)
}

func TestHandleChat_MultiAgentImageAnalysis(t *testing.T) {
	model := &mockModel{text: "This is a chest X-ray."}
	g, _ := newTestGateway(model)

	img := testImage()
	rec, resp := postChat(t, g, ChatRequest{
		Message:   "analyze this scan",
		Image:     &img,
		AgentType: "multi-agent",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "Medical Image Analysis Agent", resp.Agent)
	assert.True(t, resp.RequiresValidation)
	assert.Contains(t, model.lastPrompt, "medical imaging specialist")
}

func TestHandleChat_MultiAgentImagingKeywordsWithoutImage(t *testing.T) {
	g, _ := newTestGateway(&mockModel{text: "unused"})

	rec, resp := postChat(t, g, ChatRequest{
		Message:   "can you analyze my x-ray",
		AgentType: "multi-agent",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "Please provide an image for analysis.", resp.Response)
}

func TestHandleChat_MultiAgentWebSearch(t *testing.T) {
	model := &mockModel{text: "Recent studies show..."}
	g, _ := newTestGateway(model)

	rec, resp := postChat(t, g, ChatRequest{
		Message:   "what is the latest research on statins",
		AgentType: "multi-agent",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "Web Search Agent", resp.Agent)
	assert.Contains(t, model.lastPrompt, "latest information about")
}

func TestHandleChat_MultiAgentKnowledgeBaseDefault(t *testing.T) {
	model := &mockModel{text: "Metformin is a first-line treatment..."}
	g, _ := newTestGateway(model)

	rec, resp := postChat(t, g, ChatRequest{
		Message:   "how does metformin work",
		AgentType: "multi-agent",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "Medical RAG Agent", resp.Agent)
	assert.Contains(t, model.lastPrompt, "medical knowledge expert")
}

func TestHandleChat_AutoRoutesResearchKeywords(t *testing.T) {
	model := &mockModel{text: "answer"}
	g, _ := newTestGateway(model)

	rec, resp := postChat(t, g, ChatRequest{
		Message:   "any new research on migraines?",
		AgentType: "auto",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Web Search Agent", resp.Agent)
}

func TestHandleChat_RecordsExchange(t *testing.T) {
	model := &mockModel{text: "Rest and fluids."}
	g, mockStore := newTestGateway(model)

	rec, _ := postChat(t, g, ChatRequest{
		Message:   "I have a cold",
		AgentType: "medical-chat",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	recent, err := mockStore.RecentExchanges(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "medical-chat", recent[0].Agent)
	assert.Equal(t, "I have a cold", recent[0].Message)
	assert.Equal(t, "Rest and fluids.", recent[0].Response)
	assert.False(t, recent[0].HadImage)
}

func TestHandleChat_StoreFailureDoesNotFailRequest(t *testing.T) {
	model := &mockModel{text: "ok"}
	g, mockStore := newTestGateway(model)
	mockStore.SaveErr = errors.New("disk full")

	rec, resp := postChat(t, g, ChatRequest{
		Message:   "hello",
		AgentType: "medical-chat",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
}

func TestHandlePrescriptionParse(t *testing.T) {
	model := &mockModel{text: "```json\n{\"medications\": [{\"name\": \"Ibuprofen\", \"quantity\": 20, \"dose\": \"200mg\", \"frequency\": \"as needed\", \"confidence\": 0.9}], \"patient\": {\"name\": \"John\"}, \"doctor\": {\"name\": \"Dr. Lee\"}, \"date\": \"2026-08-15\", \"human_review_required\": true}\n```"}
	g, _ := newTestGateway(model)

	payload, _ := json.Marshal(PrescriptionParseRequest{Image: testImage()})
	req := httptest.NewRequest(http.MethodPost, "/api/prescription/parse", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	g.routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp PrescriptionParseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Data)
	require.Len(t, resp.Data.Medications, 1)
	assert.Equal(t, "Ibuprofen", resp.Data.Medications[0].Name)
	assert.True(t, resp.Data.HumanReview)
	assert.Contains(t, resp.Response, "Found 1 medication(s)")
}

func TestHandlePrescriptionParse_MissingImage(t *testing.T) {
	g, _ := newTestGateway(&mockModel{})

	req := httptest.NewRequest(http.MethodPost, "/api/prescription/parse", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	g.routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "image is required")
}

func TestHandlePrescriptionParse_UnparseableModelOutput(t *testing.T) {
	model := &mockModel{text: "I could not read this prescription."}
	g, _ := newTestGateway(model)

	payload, _ := json.Marshal(PrescriptionParseRequest{Image: testImage()})
	req := httptest.NewRequest(http.MethodPost, "/api/prescription/parse", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	g.routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp PrescriptionParseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, fallbackPrescription, resp.Response)
	assert.NotEmpty(t, resp.Error)
}

func TestHandleVoiceCommand(t *testing.T) {
	model := &mockModel{text: `{"intent": "add", "medication_name": "Paracetamol", "quantity": 2, "confidence": 0.85}`}
	g, _ := newTestGateway(model)

	payload, _ := json.Marshal(VoiceCommandRequest{Text: "add two boxes of paracetamol"})
	req := httptest.NewRequest(http.MethodPost, "/api/voice/command", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	g.routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp VoiceCommandResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Data)
	assert.Equal(t, "add", resp.Data.Intent)
	assert.Equal(t, "Paracetamol", resp.Data.MedicationName)
	assert.InDelta(t, 2.0, resp.Data.Quantity, 0.001)

	assert.Contains(t, model.lastPrompt, `"add two boxes of paracetamol"`)
}

func TestHandleVoiceCommand_MissingText(t *testing.T) {
	g, _ := newTestGateway(&mockModel{})

	req := httptest.NewRequest(http.MethodPost, "/api/voice/command", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	g.routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "text is required")
}

func TestHandleHealth(t *testing.T) {
	g, _ := newTestGateway(&mockModel{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	g.routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var health struct {
		Status string            `json:"status"`
		Agents map[string]string `json:"agents"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "active", health.Agents["medical_chat"])
	assert.Equal(t, "active", health.Agents["prescription_parser"])
	assert.Equal(t, "active", health.Agents["multi_agent"])
}

func TestHandleRoot(t *testing.T) {
	g, _ := newTestGateway(&mockModel{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	g.routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Medical Conversation Agent")
	assert.Contains(t, rec.Body.String(), "Prescription Parser")
}

func TestRoutes_CORSPreflight(t *testing.T) {
	g, _ := newTestGateway(&mockModel{})

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	rec := httptest.NewRecorder()
	g.routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRoutes_AuthRequired(t *testing.T) {
	g, _ := newTestGateway(&mockModel{text: "ok"})
	verifier := auth.NewJWTVerifier([]byte("test-secret"))
	g.verifier = verifier

	payload, _ := json.Marshal(ChatRequest{Message: "hello", AgentType: "medical-chat"})

	t.Run("without token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(payload))
		rec := httptest.NewRecorder()
		g.routes().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("with token", func(t *testing.T) {
		token, err := verifier.Generate("clinic-terminal", time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(payload))
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		g.routes().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("health stays open", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		rec := httptest.NewRecorder()
		g.routes().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no fence", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"fence with preamble", "Here you go:\n```json\n{\"a\": 1}\n```\nLet me know!", `{"a": 1}`},
		{"unterminated fence", "```json\n{\"a\": 1}", `{"a": 1}`},
		{"whitespace", "  {\"a\": 1}  ", `{"a": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripCodeFence(tt.input))
		})
	}
}

func TestParseInlineImage(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("image bytes"))

	t.Run("data url with mime", func(t *testing.T) {
		part, err := parseInlineImage("data:image/png;base64," + payload)
		require.NoError(t, err)
		assert.Equal(t, "image/png", part.MIMEType)
		assert.Equal(t, payload, part.Data)
	})

	t.Run("bare base64 defaults to jpeg", func(t *testing.T) {
		part, err := parseInlineImage(payload)
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", part.MIMEType)
	})

	t.Run("invalid base64", func(t *testing.T) {
		_, err := parseInlineImage("data:image/png;base64,!!not-base64!!")
		assert.ErrorIs(t, err, errInvalidImage)
	})
}
