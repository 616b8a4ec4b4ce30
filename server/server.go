// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package server exposes retrieval and answering over HTTP.
package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/poiesic/hybridrag/answer"
)

// DefaultListenAddr is the address the server listens on when none is configured.
const DefaultListenAddr = ":8000"

// Answerer produces an answer for a question.
// *answer.Answerer implements it.
type Answerer interface {
	Answer(ctx context.Context, question string) answer.Result
}

var _ Answerer = (*answer.Answerer)(nil)

// Config holds the server settings.
type Config struct {
	// ListenAddr is the host:port to listen on.
	ListenAddr string
	// AllowOrigins is the CORS origin list. Empty allows every origin.
	AllowOrigins string
	// RequestTimeout bounds the retrieval and generation of one request.
	// Zero means no timeout.
	RequestTimeout time.Duration
}

// Server is the HTTP front end of the engine.
type Server struct {
	config    Config
	retriever answer.Retriever
	answerer  Answerer
	logger    *slog.Logger
	app       *fiber.App
}

// NewServer creates a server that answers with answerer and searches with retriever.
func NewServer(config Config, retriever answer.Retriever, answerer Answerer, logger *slog.Logger) *Server {
	if config.ListenAddr == "" {
		config.ListenAddr = DefaultListenAddr
	}
	if config.AllowOrigins == "" {
		config.AllowOrigins = "*"
	}
	if logger == nil {
		logger = slog.Default()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(cors.New(cors.Config{
		AllowOrigins: config.AllowOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	s := &Server{
		config:    config,
		retriever: retriever,
		answerer:  answerer,
		logger:    logger.With("component", "server"),
		app:       app,
	}

	app.Get("/ping", s.handlePing)
	app.Post("/chat", s.handleChat)
	app.Get("/search", s.handleSearch)

	return s
}

// Run starts the server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// requestContext derives the context of one request.
func (s *Server) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	ctx := c.UserContext()
	if s.config.RequestTimeout > 0 {
		return context.WithTimeout(ctx, s.config.RequestTimeout)
	}
	return context.WithCancel(ctx)
}
