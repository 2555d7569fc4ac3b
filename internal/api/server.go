package api

import (
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/born-ml/repvgg/internal/logger"
	"github.com/born-ml/repvgg/internal/repvgg"
	"github.com/born-ml/repvgg/internal/tensor"
)

// Server exposes one network. Classification runs under a read lock and
// may proceed concurrently; converting or replacing the network takes the
// write lock.
type Server struct {
	mu      sync.RWMutex
	net     *repvgg.Network
	backend string
	log     logger.Logger
	newID   func() string
	maxBody int64
}

// NewServer wraps net. A nil logger discards.
func NewServer(net *repvgg.Network, backend tensor.Backend, log logger.Logger) *Server {
	if log == nil {
		log = logger.Discard()
	}
	name := ""
	if backend != nil {
		name = backend.Name()
	}
	return &Server{
		net:     net,
		backend: name,
		log:     log,
		newID:   func() string { return "cls_" + uuid.NewString() },
		maxBody: MaxRequestBytes,
	}
}

// Register mounts the API routes on e.
func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)
	e.GET("/v1/model", s.handleModel)
	e.POST("/v1/classify", s.handleClassify)
	e.POST("/v1/convert", s.handleConvert)
}

// SetNetwork replaces the served network.
func (s *Server) SetNetwork(net *repvgg.Network) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.net = net
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleModel(c *echo.Context) error {
	s.mu.RLock()
	info := s.modelInfo()
	s.mu.RUnlock()
	return c.JSON(http.StatusOK, info)
}

// modelInfo must be called with s.mu held.
func (s *Server) modelInfo() ModelInfo {
	cfg := s.net.Config()
	return ModelInfo{
		Object:        "model",
		Name:          cfg.Name,
		Mode:          s.net.Mode().String(),
		NumParameters: s.net.NumParameters(),
		NumBlocks:     len(s.net.Blocks()),
		NumClasses:    cfg.NumClasses,
		InChannels:    s.net.Blocks()[0].Config().InChannels,
		Backend:       s.backend,
	}
}

func (s *Server) handleClassify(c *echo.Context) error {
	req, err := decodeJSON[ClassifyRequest](c.Request().Body, s.maxBody)
	if err != nil {
		return writeBadRequest(c, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg := s.net.Config()
	topK, err := resolveTopK(req.TopK, cfg.NumClasses)
	if err != nil {
		return writeBadRequest(c, err)
	}
	x, err := inputTensor(req, s.net.Blocks()[0].Config().InChannels)
	if err != nil {
		return writeBadRequest(c, err)
	}

	logits, err := s.net.Forward(x)
	if err != nil {
		var shapeErr *tensor.ShapeError
		if errors.As(err, &shapeErr) {
			return writeBadRequest(c, err)
		}
		s.log.Error("forward failed", "error", err)
		return writeServerError(c, err)
	}

	rows := splitRows(logits)
	resp := ClassifyResponse{
		ID:     s.newID(),
		Object: "classification",
		Mode:   s.net.Mode().String(),
		Logits: rows,
		Top:    make([][]Prediction, len(rows)),
	}
	for i, row := range rows {
		resp.Top[i] = rank(row, topK)
	}
	s.log.Debug("classified", "id", resp.ID, "batch", len(rows), "mode", resp.Mode)
	return c.JSON(http.StatusOK, resp)
}

// handleConvert fuses the served network in place. Converting a deployed
// network is a no-op.
func (s *Server) handleConvert(c *echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Convert a copy so a failure leaves the served network intact.
	converted, err := repvgg.ConvertNetwork(s.net, repvgg.ConvertOptions{Copy: true, Logger: s.log})
	if err != nil {
		s.log.Error("convert failed", "error", err)
		return writeServerError(c, err)
	}
	s.net = converted
	return c.JSON(http.StatusOK, s.modelInfo())
}
