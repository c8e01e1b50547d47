package preview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/arturkwiek/SDD/internal/logger"
	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/hybridgroup/mjpeg"
)

// Server publishes annotated frames as an MJPEG stream
type Server struct {
	addr    string
	logger  *logger.Logger
	router  *gin.Engine
	stream  *mjpeg.Stream
	quality int

	mu       sync.RWMutex
	last     []byte
	frames   int
	listener net.Listener
	srv      *http.Server
}

// NewServer creates a preview server bound to addr once Start is called
func NewServer(addr string, log *logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		addr:    addr,
		logger:  log.WithComponent("preview"),
		router:  gin.New(),
		stream:  mjpeg.NewStream(),
		quality: 80,
	}
	s.router.Use(ginLogger(s.logger))
	s.router.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/preview", gin.WrapH(s.stream))
	s.router.GET("/snapshot", s.handleSnapshot)
	s.router.GET("/healthz", s.handleHealth)
}

// Handler exposes the router, mostly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Update encodes img and pushes it to every connected client
func (s *Server) Update(img image.Image) error {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(s.quality)); err != nil {
		return fmt.Errorf("failed to encode preview frame: %w", err)
	}
	data := buf.Bytes()

	s.mu.Lock()
	s.last = data
	s.frames++
	s.mu.Unlock()

	s.stream.UpdateJPEG(data)
	return nil
}

// Start listens on the configured address and serves in the background
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	srv := &http.Server{
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// The MJPEG handler streams until the client leaves.
		WriteTimeout: 0,
	}

	s.mu.Lock()
	s.listener = ln
	s.srv = srv
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Preview server error", "error", err)
		}
	}()

	s.logger.Info("Preview available", "url", fmt.Sprintf("http://%s/preview", ln.Addr()))
	return nil
}

// Addr returns the bound address, or "" before Start
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops the server. Open MJPEG connections never go idle, so they
// are closed forcibly once ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.srv
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}

	err := srv.Shutdown(ctx)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return srv.Close()
	}
	return err
}

func (s *Server) handleSnapshot(c *gin.Context) {
	s.mu.RLock()
	data := s.last
	s.mu.RUnlock()

	if data == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no frame yet"})
		return
	}
	c.Data(http.StatusOK, "image/jpeg", data)
}

func (s *Server) handleHealth(c *gin.Context) {
	s.mu.RLock()
	frames := s.frames
	s.mu.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"frames": frames,
	})
}

func ginLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}
