package server

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/poiesic/hybridrag/answer"
	"github.com/poiesic/hybridrag/core"
	"github.com/poiesic/hybridrag/search"
)

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Question string `json:"question"`
}

// ChatResponse is the success body of POST /chat.
type ChatResponse struct {
	Answer string `json:"answer"`
}

// SearchResponse is the body of GET /search.
type SearchResponse struct {
	Query   string                  `json:"query"`
	Results []*core.ScoredCandidate `json:"results"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleChat handles POST /chat.
func (s *Server) handleChat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "invalid request body",
		})
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "question is required",
		})
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	res := s.answerer.Answer(ctx, question)
	switch {
	case res.Err == nil, errors.Is(res.Err, answer.ErrNoInformation):
		return c.JSON(ChatResponse{Answer: res.Text})
	case errors.Is(res.Err, answer.ErrGeneration):
		s.logger.Error("chat generation failed", "err", res.Err)
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{
			Error: "the language model is unavailable",
		})
	default:
		s.logger.Error("chat retrieval failed", "err", res.Err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error: "retrieval failed",
		})
	}
}

// handleSearch handles GET /search requests.
// Query parameters:
//   - query (required): the search query text
//   - top_k (optional): cap on the number of results
func (s *Server) handleSearch(c *fiber.Ctx) error {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "query parameter is required",
		})
	}

	topK := 0
	if topKStr := c.Query("top_k"); topKStr != "" {
		parsed, err := strconv.Atoi(topKStr)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error: "top_k must be a positive integer",
			})
		}
		topK = parsed
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	results, err := s.retriever.Retrieve(ctx, query)
	switch {
	case err == nil:
	case errors.Is(err, search.ErrQueryEmbedding):
		s.logger.Error("search embedding failed", "err", err)
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{
			Error: "the embedding service is unavailable",
		})
	default:
		s.logger.Error("search failed", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error: "retrieval failed",
		})
	}

	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return c.JSON(SearchResponse{Query: query, Results: results})
}
