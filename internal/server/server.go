package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/meshdecode/internal/config"
	"github.com/danmuck/meshdecode/internal/ingest"
	"github.com/danmuck/meshdecode/internal/observability"
	"github.com/danmuck/meshdecode/internal/protocol"
	"github.com/danmuck/meshdecode/internal/protocol/wire"
	"github.com/danmuck/meshdecode/internal/stream"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const (
	ServiceName = "meshdecode"
	Version     = "0.1.0"

	shutdownGrace = 5 * time.Second
)

// Server is the HTTP face of the decoder. Decodes made through it are
// published to the hub like any other ingest source.
type Server struct {
	Addr    string
	Started time.Time

	cfg      config.Config
	hub      *stream.Hub
	pipeline *ingest.Pipeline
	router   *gin.Engine
}

type decodeRequest struct {
	Hex       string `json:"hex"`
	Structure bool   `json:"structure"`
}

type probeResponse struct {
	Fields []wire.ProbedField `json:"fields"`
	Error  string             `json:"error,omitempty"`
}

// New builds the router. hub may be nil, which disables /ws. sinks receive
// every packet decoded over HTTP.
func New(cfg config.Config, hub *stream.Hub, sinks ...ingest.Sink) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(ServiceName))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.Server.CorsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	return &Server{
		Addr:    cfg.Server.Addr,
		Started: time.Now(),
		cfg:     cfg,
		hub:     hub,
		pipeline: &ingest.Pipeline{
			Options: cfg.DecodeOptions(),
			Limits:  cfg.FrameLimits(),
			Hub:     hub,
			Sinks:   sinks,
			Logger:  log.Logger,
		},
		router: r,
	}
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

func (s *Server) RegisterRoutes() {
	r := s.router
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Started).String(),
			"service": ServiceName,
			"version": Version,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/ready", func(c *gin.Context) {
		ready := true
		if s.hub != nil {
			select {
			case <-s.hub.Done():
				ready = false
			default:
			}
		}
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":   ready,
			"uptime":  time.Since(s.Started).String(),
			"service": ServiceName,
			"version": Version,
		})
	})

	r.POST("/decode", s.handleDecode(false))
	r.POST("/decode/detailed", s.handleDecode(true))
	r.POST("/probe", s.handleProbe)

	if s.cfg.Server.EnableWS && s.hub != nil {
		r.GET("/ws", gin.WrapH(stream.WSHandler(s.hub, log.Logger)))
	}
}

func (s *Server) handleDecode(detailed bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req decodeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		var extra []protocol.Option
		if req.Structure {
			extra = append(extra, protocol.WithStructure())
		}
		ev, err := s.pipeline.Handle("http", req.Hex, extra...)
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		observability.AnnotatePacket(c, ev.Packet.Header.PayloadType.String(), ev.Packet.IsValid, ev.Packet.TotalBytes)
		if detailed {
			c.JSON(http.StatusOK, ev.Packet.Detailed())
			return
		}
		c.JSON(http.StatusOK, ev.Packet)
	}
}

func (s *Server) handleProbe(c *gin.Context) {
	var req decodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	buf, err := protocol.ParseHex(req.Hex, s.cfg.Decoder.MaxPacketBytes)
	if err != nil {
		observability.RecordReject("malformed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	fields, err := wire.ProbeFields(buf)
	resp := probeResponse{Fields: fields}
	if resp.Fields == nil {
		resp.Fields = []wire.ProbedField{}
	}
	if err != nil {
		resp.Error = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// Serve registers routes and listens until ctx ends, then drains in-flight
// requests.
func (s *Server) Serve(ctx context.Context) error {
	s.RegisterRoutes()
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.Addr).Msg("http_listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
