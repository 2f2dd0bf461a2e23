package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tasfish/internal/assistant"
	"tasfish/internal/composer"
	"tasfish/internal/logging"
	"tasfish/internal/observability"
	"tasfish/internal/rag/gate"
	"tasfish/internal/router"
	"tasfish/internal/tools"
)

// Pipeline is the assistant surface served over HTTP.
type Pipeline interface {
	Ask(ctx context.Context, query string) (assistant.Answer, error)
	Route(ctx context.Context, query string) (router.Decision, error)
	Stats() gate.Summary
}

// ToolCatalog lists the registered tools.
type ToolCatalog interface {
	Definitions() []tools.Definition
}

// DocumentCounter reports the size of the regulation index.
type DocumentCounter interface {
	Count() int
}

type questionRequest struct {
	Question string `json:"question" binding:"required,max=2000"`
}

type sourceResponse struct {
	Citation   string  `json:"citation"`
	Text       string  `json:"text"`
	Similarity float32 `json:"similarity"`
}

type askResponse struct {
	Answer     string           `json:"answer"`
	Route      string           `json:"route"`
	Decision   router.Decision  `json:"decision"`
	Sources    []sourceResponse `json:"sources"`
	ToolResult tools.Result     `json:"tool_result,omitempty"`
	Status     string           `json:"status"`
	LatencyMS  int64            `json:"latency_ms"`
	RequestID  string           `json:"request_id,omitempty"`
}

type healthResponse struct {
	Status        string   `json:"status"`
	Documents     int      `json:"documents"`
	Tools         []string `json:"tools"`
	UptimeSeconds int64    `json:"uptime_seconds"`
}

type welcomeResponse struct {
	Message  string   `json:"message"`
	Examples []string `json:"examples"`
}

// APIHandler serves the JSON endpoints.
type APIHandler struct {
	pipeline  Pipeline
	tools     ToolCatalog
	documents DocumentCounter
	logger    logging.Logger
	started   time.Time
}

// NewAPIHandler builds the handler. tools and documents may be nil.
func NewAPIHandler(pipeline Pipeline, catalog ToolCatalog, documents DocumentCounter, logger logging.Logger) *APIHandler {
	if logging.IsNil(logger) {
		logger = logging.NewComponentLogger("http")
	}
	return &APIHandler{
		pipeline:  pipeline,
		tools:     catalog,
		documents: documents,
		logger:    logger,
		started:   time.Now(),
	}
}

// HandleAsk answers one question.
func (h *APIHandler) HandleAsk(c *gin.Context) {
	var req questionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeJSONError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	answer, err := h.pipeline.Ask(c.Request.Context(), req.Question)
	if errors.Is(err, assistant.ErrEmptyQuery) {
		h.writeJSONError(c, http.StatusBadRequest, "question is empty", nil)
		return
	}
	if err != nil {
		h.writeJSONError(c, http.StatusInternalServerError, "failed to answer question", err)
		return
	}

	sources := make([]sourceResponse, 0, len(answer.Chunks))
	for _, chunk := range answer.Chunks {
		sources = append(sources, sourceResponse{Citation: chunk.Citation(), Text: chunk.Text, Similarity: chunk.Similarity})
	}
	c.JSON(http.StatusOK, askResponse{
		Answer:     answer.Text,
		Route:      answer.Decision.Kind.String(),
		Decision:   answer.Decision,
		Sources:    sources,
		ToolResult: answer.ToolResult,
		Status:     assistant.Status(answer),
		LatencyMS:  answer.Latency.Milliseconds(),
		RequestID:  observability.RequestIDFromContext(c.Request.Context()),
	})
}

// HandleRoute classifies a question without answering it.
func (h *APIHandler) HandleRoute(c *gin.Context) {
	var req questionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeJSONError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	decision, err := h.pipeline.Route(c.Request.Context(), req.Question)
	if err != nil {
		h.writeJSONError(c, http.StatusBadRequest, "question is empty", nil)
		return
	}
	c.JSON(http.StatusOK, decision)
}

// HandleTools lists tool definitions.
func (h *APIHandler) HandleTools(c *gin.Context) {
	defs := []tools.Definition{}
	if h.tools != nil {
		defs = h.tools.Definitions()
	}
	c.JSON(http.StatusOK, gin.H{"tools": defs})
}

// HandleWelcome returns the greeting and example questions.
func (h *APIHandler) HandleWelcome(c *gin.Context) {
	c.JSON(http.StatusOK, welcomeResponse{Message: composer.WelcomeMessage, Examples: composer.ExampleQueries})
}

// HandleStats returns the rolling route outcome summary.
func (h *APIHandler) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.pipeline.Stats())
}

// HandleHealth reports liveness and index size.
func (h *APIHandler) HandleHealth(c *gin.Context) {
	resp := healthResponse{
		Status:        "ok",
		Tools:         []string{},
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	}
	if h.documents != nil {
		resp.Documents = h.documents.Count()
	}
	if h.tools != nil {
		for _, def := range h.tools.Definitions() {
			resp.Tools = append(resp.Tools, def.Name)
		}
	}
	if resp.Documents == 0 {
		resp.Status = "degraded"
	}
	c.JSON(http.StatusOK, resp)
}
