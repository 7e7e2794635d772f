// Command govncd runs a VNC server: it captures the local desktop, serves
// RFB clients (optionally over WebSocket, for noVNC), and exposes Prometheus
// metrics.
package main

import (
	"bufio"
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/go-rfb/govncd/internal/capture"
	"github.com/go-rfb/govncd/internal/clipboard"
	"github.com/go-rfb/govncd/internal/config"
	"github.com/go-rfb/govncd/internal/connpool"
	"github.com/go-rfb/govncd/internal/input"
	"github.com/go-rfb/govncd/internal/metrics"
	"github.com/go-rfb/govncd/internal/recorder"
	"github.com/go-rfb/govncd/internal/rfb"
	"github.com/go-rfb/govncd/internal/vnclog"
	"github.com/go-rfb/govncd/internal/wsadapter"
)

var (
	configPath = flag.String("config", "", "path to a YAML config file (defaults per spec.md §6 if omitted)")
	display    = flag.Int("display", 0, "index of the physical display to capture")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		zerolog.New(os.Stderr).With().Timestamp().Logger().Fatal().Err(err).Msg("invalid configuration")
	}

	log := vnclog.NewDefault()

	capturer, err := capture.NewDisplayCapturer(*display)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to bind capture display")
	}

	var rec *recorder.Recorder
	if cfg.RecorderPath != "" {
		rec, err = recorder.Open(cfg.RecorderPath, cfg.RecorderGzip)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open session recorder")
		}
	} else {
		rec = recorder.Disabled()
	}
	defer rec.Close()

	registry := metrics.NewRegistry()
	if cfg.MetricsListenAddr != "" {
		go serveMetrics(cfg.MetricsListenAddr, registry, log)
	}

	srv := &server{
		cfg:      cfg,
		log:      log,
		capturer: capturer,
		registry: registry,
		rec:      rec,
		clip:     clipboard.NewManager(),
		sink:     newLoggingSink(log),
	}

	pool := connpool.New(cfg.MaxConnections, srv.handle)

	ln, err := net.Listen("tcp", net.JoinHostPort(cfg.ListenHost, strconv.Itoa(cfg.ListenPort)))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to listen")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("addr", ln.Addr().String()).Bool("websocket_enabled", cfg.WebSocketEnabled).Msg("govncd listening")

	serveErr := make(chan error, 1)
	go func() { serveErr <- pool.Serve(ctx, ln) }()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down, draining connections")
		ln.Close()
		if !pool.Drain(10 * time.Second) {
			log.Warn().Msg("drain deadline exceeded, some connections force-closed")
		}
	case err := <-serveErr:
		if err != nil {
			log.Error().Err(err).Msg("accept loop exited")
		}
	}
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	return config.Load(path)
}

func serveMetrics(addr string, registry *metrics.Registry, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry.Gatherer(), promhttp.HandlerOpts{}))
	log.Info().Str("addr", addr).Msg("metrics endpoint listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("metrics server stopped")
	}
}

// server holds everything shared across accepted connections; one Session
// is built per connection in handle.
type server struct {
	cfg      config.Config
	log      zerolog.Logger
	capturer capture.Capturer
	registry *metrics.Registry
	rec      *recorder.Recorder
	clip     *clipboard.Manager
	sink     input.Sink
}

// handle is the connpool.Handler: it tells a WebSocket upgrade apart from a
// raw RFB client, runs the handshake, then hands off to a Session for the
// connection's lifetime.
func (s *server) handle(ctx context.Context, conn net.Conn) {
	s.registry.ConnectionsTotal.Inc()
	remote := conn.RemoteAddr().String()
	connLog := vnclog.ForConnection(s.log, remote)

	br := bufio.NewReader(conn)
	isWS, err := wsadapter.LooksLikeWebSocket(br)
	if err != nil {
		connLog.Debug().Err(err).Msg("connection closed before handshake")
		conn.Close()
		return
	}

	rawConn := conn
	if isWS {
		if !s.cfg.WebSocketEnabled {
			connLog.Warn().Msg("rejecting WebSocket upgrade: websocket_enabled is false")
			conn.Close()
			return
		}
		wsConn, err := wsadapter.Accept(conn, br, wsadapter.Options{MaxPayloadBytes: s.cfg.WebSocketMaxPayloadBytes})
		if err != nil {
			connLog.Warn().Err(err).Msg("WebSocket handshake failed")
			conn.Close()
			return
		}
		rawConn = wsConn
	}

	width, height := s.capturer.Dimensions()
	cs, err := rfb.AcceptConn(rawConn, rfb.HandshakeConfig{
		Password:                   s.cfg.Password,
		OfferVNCAuthWithNoPassword: s.cfg.OfferVNCAuthWithNoPassword,
		ServerName:                 "govncd",
		InitialWidth:               width,
		InitialHeight:              height,
		MaxEncodingsPerClient:      s.cfg.MaxSetEncodings,
		MaxClientCutTextBytes:      s.cfg.MaxClientCutTextBytes,
	})
	if err != nil {
		connLog.Warn().Err(err).Msg("handshake failed")
		if _, ok := err.(*rfb.AuthenticationError); ok {
			s.registry.FailedAuthTotal.Inc()
		}
		rawConn.Close()
		return
	}
	connLog = connLog.With().Str("client_id", cs.ID).Logger()
	connLog.Info().Msg("client connected")

	sessCfg := rfb.SessionConfig{
		MaxFPS:                s.cfg.MaxFPS,
		IdleTimeout:           time.Duration(s.cfg.IdleTimeoutS) * time.Second,
		MaxEncodingsPerClient: s.cfg.MaxSetEncodings,
		MaxClientCutTextBytes: s.cfg.MaxClientCutTextBytes,
		ScaleFactor:           s.cfg.ScaleFactor,
		MaxCaptureFailures:    10,
	}
	sess := rfb.NewSession(rawConn, cs, s.capturer, sessCfg, s.registry, s.rec, s.sink, s.clip, connLog)

	if err := sess.Run(ctx); err != nil {
		connLog.Warn().Err(err).Msg("session ended")
	} else {
		connLog.Info().Msg("client disconnected")
	}
}
