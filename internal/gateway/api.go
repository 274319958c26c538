// ABOUTME: HTTP handlers for the medical chat API endpoints
// ABOUTME: Routes chat requests to agents, parses prescriptions, and extracts voice intents

package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/carebridge/mediline/internal/agents"
	"github.com/carebridge/mediline/internal/chat"
	"github.com/carebridge/mediline/internal/genai"
	"github.com/carebridge/mediline/internal/store"
)

// historyWindow bounds how many prior turns feed the model prompt.
const historyWindow = 10

// Fallback texts returned alongside success=false when an agent fails.
const (
	fallbackChat         = "I apologize, but I encountered an error processing your request. Please try again."
	fallbackPrescription = "Failed to parse prescription. Please ensure the image is clear and try again."
	fallbackMultiAgent   = "I encountered an error processing your request with the multi-agent system."
)

// ChatRequest is the JSON body for POST /api/chat.
type ChatRequest struct {
	Message   string      `json:"message"`
	History   []chat.Turn `json:"history"`
	Image     *string     `json:"image"`
	AgentType string      `json:"agent_type"`
}

// ChatResponse is the JSON body returned by POST /api/chat.
type ChatResponse struct {
	Success            bool                   `json:"success"`
	Response           string                 `json:"response,omitempty"`
	Agent              string                 `json:"agent,omitempty"`
	Error              string                 `json:"error,omitempty"`
	RequiresValidation bool                   `json:"requires_validation,omitempty"`
	Data               *chat.PrescriptionData `json:"data,omitempty"`
}

// handleChat handles POST /api/chat. Agent selection happens here: an
// explicit agent_type is honored, auto goes through keyword routing.
// Agent failures are reported in the body with success=false; only
// malformed requests get a non-200 status.
func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Message == "" && req.Image == nil {
		g.sendJSONError(w, http.StatusBadRequest, "message is required")
		return
	}

	agentType := req.AgentType
	if agentType == "" {
		agentType = string(agents.TypeAuto)
	}

	parsed, err := agents.Parse(agentType)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "Invalid agent type")
		return
	}

	if parsed == agents.TypeAuto {
		parsed = g.catalog.Route(req.Message, req.Image != nil)
	}

	if parsed == agents.TypePrescription && req.Image == nil {
		g.sendJSONError(w, http.StatusBadRequest, "Image required for prescription parsing")
		return
	}

	var resp *ChatResponse
	switch parsed {
	case agents.TypeMedicalChat:
		resp = g.runMedicalChat(r.Context(), &req)
	case agents.TypePrescription:
		resp = g.runPrescription(r.Context(), *req.Image)
	case agents.TypeMultiAgent:
		resp = g.runMultiAgent(r.Context(), &req)
	default:
		g.sendJSONError(w, http.StatusBadRequest, "Invalid agent type")
		return
	}

	g.recordExchange(r.Context(), parsed, &req, resp)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// runMedicalChat handles the general conversation agent. With an image
// attached the message and image go to the model together; otherwise the
// prompt carries the trailing history window.
func (g *Gateway) runMedicalChat(ctx context.Context, req *ChatRequest) *ChatResponse {
	def, _ := g.catalog.Get(agents.TypeMedicalChat)

	var text string
	var err error

	if req.Image != nil {
		image, imgErr := parseInlineImage(*req.Image)
		if imgErr != nil {
			return agentFailure(imgErr, fallbackChat)
		}

		prompt := fmt.Sprintf("%s Analyze this image and respond to: %s", def.SystemPrompt, req.Message)
		text, err = g.model.Generate(ctx, prompt, image)
	} else {
		var b strings.Builder
		b.WriteString(def.SystemPrompt)
		b.WriteString("\n\n")
		for _, turn := range tailTurns(req.History, historyWindow) {
			fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
		}
		fmt.Fprintf(&b, "user: %s\nassistant:", req.Message)

		text, err = g.model.Generate(ctx, b.String(), nil)
	}

	if err != nil {
		g.logger.Error("Medical conversation error", "error", err)
		return agentFailure(err, fallbackChat)
	}

	return &ChatResponse{
		Success:  true,
		Response: text,
		Agent:    def.Name,
	}
}

// runPrescription extracts structured medication data from a prescription
// image and summarizes the result for the chat transcript.
func (g *Gateway) runPrescription(ctx context.Context, image string) *ChatResponse {
	data, err := g.parsePrescription(ctx, image)
	if err != nil {
		g.logger.Error("Prescription parsing error", "error", err)
		return agentFailure(err, fallbackPrescription)
	}

	def, _ := g.catalog.Get(agents.TypePrescription)
	return &ChatResponse{
		Success:            true,
		Response:           fmt.Sprintf("Successfully parsed prescription. Found %d medication(s).", len(data.Medications)),
		Agent:              def.Name,
		Data:               data,
		RequiresValidation: data.HumanReview,
	}
}

// Sub-agent keyword lists for the multi-agent system.
var (
	imagingKeywords   = []string{"analyze image", "x-ray", "scan", "mri", "ct scan", "tumor", "lesion"}
	webSearchKeywords = []string{"latest", "recent", "news", "research", "study", "2024", "2025", "current"}
)

// runMultiAgent dispatches to the image analysis, web search, or knowledge
// base sub-agent based on the query and attachment.
func (g *Gateway) runMultiAgent(ctx context.Context, req *ChatRequest) *ChatResponse {
	lower := strings.ToLower(req.Message)

	if req.Image != nil || containsAny(lower, imagingKeywords) {
		return g.runImageAnalysis(ctx, req)
	}
	if containsAny(lower, webSearchKeywords) {
		return g.runWebSearch(ctx, req.Message)
	}
	return g.runKnowledgeBase(ctx, req.Message)
}

func (g *Gateway) runImageAnalysis(ctx context.Context, req *ChatRequest) *ChatResponse {
	if req.Image == nil {
		return &ChatResponse{
			Success:  false,
			Response: "Please provide an image for analysis.",
		}
	}

	image, err := parseInlineImage(*req.Image)
	if err != nil {
		return agentFailure(err, fallbackMultiAgent)
	}

	prompt := fmt.Sprintf(`As a medical imaging specialist, analyze this image. User query: %s

Provide detailed analysis including:
- What type of medical image this is
- Key observations
- Potential findings
- Recommendations

IMPORTANT: Include appropriate medical disclaimers.`, req.Message)

	text, err := g.model.Generate(ctx, prompt, image)
	if err != nil {
		g.logger.Error("Image analysis error", "error", err)
		return agentFailure(err, fallbackMultiAgent)
	}

	return &ChatResponse{
		Success:            true,
		Response:           text,
		Agent:              "Medical Image Analysis Agent",
		RequiresValidation: true,
	}
}

func (g *Gateway) runWebSearch(ctx context.Context, query string) *ChatResponse {
	prompt := fmt.Sprintf(`Search for and provide the latest information about: %s

Focus on recent research, clinical trials, and medical news.`, query)

	text, err := g.model.Generate(ctx, prompt, nil)
	if err != nil {
		g.logger.Error("Web search error", "error", err)
		// Fall back to the knowledge base agent
		return g.runKnowledgeBase(ctx, query)
	}

	return &ChatResponse{
		Success:  true,
		Response: text,
		Agent:    "Web Search Agent",
	}
}

func (g *Gateway) runKnowledgeBase(ctx context.Context, query string) *ChatResponse {
	prompt := fmt.Sprintf(`As a medical knowledge expert with access to medical databases, answer this query: %s

Provide accurate, evidence-based information with sources when possible.`, query)

	text, err := g.model.Generate(ctx, prompt, nil)
	if err != nil {
		g.logger.Error("Knowledge base error", "error", err)
		return agentFailure(err, fallbackMultiAgent)
	}

	return &ChatResponse{
		Success:  true,
		Response: text,
		Agent:    "Medical RAG Agent",
	}
}

// PrescriptionParseRequest is the JSON body for POST /api/prescription/parse.
type PrescriptionParseRequest struct {
	Image string `json:"image"`
}

// PrescriptionParseResponse is the JSON body for POST /api/prescription/parse.
type PrescriptionParseResponse struct {
	Success  bool                   `json:"success"`
	Data     *chat.PrescriptionData `json:"data,omitempty"`
	Agent    string                 `json:"agent,omitempty"`
	Response string                 `json:"response,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// handlePrescriptionParse handles POST /api/prescription/parse.
func (g *Gateway) handlePrescriptionParse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req PrescriptionParseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Image == "" {
		g.sendJSONError(w, http.StatusBadRequest, "image is required")
		return
	}

	resp := PrescriptionParseResponse{Agent: "Prescription Parser"}

	data, err := g.parsePrescription(r.Context(), req.Image)
	if err != nil {
		g.logger.Error("Prescription parse error", "error", err)
		resp.Success = false
		resp.Agent = ""
		resp.Error = err.Error()
		resp.Response = fallbackPrescription
	} else {
		resp.Success = true
		resp.Data = data
		resp.Response = fmt.Sprintf("Successfully parsed prescription. Found %d medication(s).", len(data.Medications))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// prescriptionPrompt instructs the model to return structured JSON.
const prescriptionPrompt = `Analyze this prescription image and extract the following information in JSON format:
{
    "medications": [
        {
            "name": "medication name",
            "quantity": number,
            "dose": "dosage",
            "frequency": "frequency",
            "confidence": 0.9
        }
    ],
    "patient": {
        "name": "patient name or null",
        "dob": "date of birth or null"
    },
    "doctor": {
        "name": "doctor name or null"
    },
    "date": "prescription date or null",
    "human_review_required": false
}

Be thorough and accurate. If text is unclear, indicate lower confidence.`

// parsePrescription runs the extraction prompt against the image and
// decodes the model's JSON answer, tolerating markdown code fences.
func (g *Gateway) parsePrescription(ctx context.Context, image string) (*chat.PrescriptionData, error) {
	part, err := parseInlineImage(image)
	if err != nil {
		return nil, err
	}

	text, err := g.model.Generate(ctx, prescriptionPrompt, part)
	if err != nil {
		return nil, err
	}

	var data chat.PrescriptionData
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &data); err != nil {
		return nil, fmt.Errorf("parsing model output: %w", err)
	}

	return &data, nil
}

// VoiceCommandRequest is the JSON body for POST /api/voice/command.
type VoiceCommandRequest struct {
	Text string `json:"text"`
}

// VoiceCommandResponse is the JSON body for POST /api/voice/command.
type VoiceCommandResponse struct {
	Success bool              `json:"success"`
	Data    *chat.VoiceIntent `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// handleVoiceCommand handles POST /api/voice/command, extracting a
// structured ordering intent from a transcribed utterance.
func (g *Gateway) handleVoiceCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req VoiceCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Text == "" {
		g.sendJSONError(w, http.StatusBadRequest, "text is required")
		return
	}

	prompt := fmt.Sprintf(`Parse this voice command for a medical prescription order system:
%q

Return JSON with:
{
    "intent": "add" | "remove" | "confirm" | "done" | "unknown",
    "medication_name": "name or null",
    "quantity": number or null,
    "confidence": 0.8
}`, req.Text)

	resp := VoiceCommandResponse{}

	text, err := g.model.Generate(r.Context(), prompt, nil)
	if err == nil {
		var intent chat.VoiceIntent
		if jsonErr := json.Unmarshal([]byte(stripCodeFence(text)), &intent); jsonErr != nil {
			err = fmt.Errorf("parsing model output: %w", jsonErr)
		} else {
			resp.Success = true
			resp.Data = &intent
		}
	}
	if err != nil {
		g.logger.Error("Voice command error", "error", err)
		resp.Error = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleHealth handles GET /api/health.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status": "healthy",
		"agents": map[string]string{
			"medical_chat":        "active",
			"prescription_parser": "active",
			"multi_agent":         "active",
		},
	})
}

// handleRoot serves the API identity document.
func (g *Gateway) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	names := make([]string, 0, 3)
	for _, t := range []agents.Type{agents.TypeMedicalChat, agents.TypePrescription, agents.TypeMultiAgent} {
		if def, ok := g.catalog.Get(t); ok {
			names = append(names, def.Name)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"message": "mediline gateway",
		"version": "1.0",
		"agents":  names,
	})
}

// recordExchange appends the round trip to the ledger. Failures are
// logged, never surfaced: the ledger is observability, not request state.
func (g *Gateway) recordExchange(ctx context.Context, agentType agents.Type, req *ChatRequest, resp *ChatResponse) {
	ex := &store.Exchange{
		ID:                 uuid.New().String(),
		Agent:              string(agentType),
		Message:            req.Message,
		Response:           resp.Response,
		Error:              resp.Error,
		HadImage:           req.Image != nil,
		RequiresValidation: resp.RequiresValidation,
	}
	if !resp.Success {
		ex.Response = ""
		if ex.Error == "" {
			ex.Error = resp.Response
		}
	}

	if err := g.store.SaveExchange(ctx, ex); err != nil {
		g.logger.Warn("Failed to record exchange", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// agentFailure builds the success=false body an agent error turns into.
func agentFailure(err error, fallback string) *ChatResponse {
	return &ChatResponse{
		Success:  false,
		Error:    err.Error(),
		Response: fallback,
	}
}

// tailTurns returns the last n turns, oldest first.
func tailTurns(turns []chat.Turn, n int) []chat.Turn {
	if len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// errInvalidImage is returned when the inline image payload cannot be decoded.
var errInvalidImage = errors.New("invalid image payload")

// parseInlineImage splits an optional data URL prefix off the base64
// payload and validates the encoding. The MIME type comes from the prefix
// when present, defaulting to JPEG.
func parseInlineImage(image string) (*genai.ImagePart, error) {
	mime := "image/jpeg"
	payload := image

	if idx := strings.Index(image, ","); idx >= 0 {
		prefix := image[:idx]
		payload = image[idx+1:]

		if strings.HasPrefix(prefix, "data:") {
			if semi := strings.Index(prefix, ";"); semi > len("data:") {
				mime = prefix[len("data:"):semi]
			}
		}
	}

	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidImage, err)
	}

	return &genai.ImagePart{MIMEType: mime, Data: payload}, nil
}

// stripCodeFence removes a surrounding markdown code fence from the
// model's JSON output, if present.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)

	if idx := strings.Index(s, "```json"); idx >= 0 {
		rest := s[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
		return strings.TrimSpace(rest)
	}
	if idx := strings.Index(s, "```"); idx >= 0 {
		rest := s[idx+len("```"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
		return strings.TrimSpace(rest)
	}
	return s
}
