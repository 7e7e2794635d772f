package rfb

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/go-rfb/govncd/internal/capture"
	"github.com/go-rfb/govncd/internal/changedetect"
	"github.com/go-rfb/govncd/internal/clipboard"
	"github.com/go-rfb/govncd/internal/encodings"
	"github.com/go-rfb/govncd/internal/input"
	"github.com/go-rfb/govncd/internal/metrics"
	"github.com/go-rfb/govncd/internal/netprofile"
	"github.com/go-rfb/govncd/internal/pixconv"
	"github.com/go-rfb/govncd/internal/recorder"
)

// Content-hint adaptation constants (spec_full §4.7 supplement): a
// sustained high rate of screen change nudges a WAN connection away from
// its compression-oriented baseline toward the dynamic preference list,
// and back again once the desktop settles.
const (
	contentHintWindowSize = 30
	dynamicChurnThreshold = 0.15
	staticChurnThreshold  = 0.03
)

// maxPollInterval bounds how long a single read waits for client input
// before the loop re-checks the frame budget, idle timeout, and ctx
// cancellation — the session loop's suspension granularity (spec §5).
const maxPollInterval = 200 * time.Millisecond

// SessionConfig carries the per-connection policy knobs Session needs,
// independent of HandshakeConfig since they govern the steady-state loop
// rather than the initial exchange.
type SessionConfig struct {
	MaxFPS                int
	IdleTimeout           time.Duration
	MaxEncodingsPerClient int
	MaxClientCutTextBytes int
	ScaleFactor           float64
	MaxCaptureFailures    int
}

// Session drives one accepted, already-handshaken connection: it owns the
// read-dispatch-produce loop described in spec §4.7/§5, translating that
// loop's literal cooperative-suspension model into Go via read-deadline
// polling rather than true coroutines (Go has no matching primitive).
//
// Grounded on _teacher_copy/rfb.go's Conn.serve/pushFrame pair, replaced
// throughout: serve's switch-on-command-byte becomes a ClientMessage type
// switch, pushFrame's image diff becomes the changedetect/encodings
// pipeline, and the teacher's unbounded per-client goroutines gain an idle
// timeout and a throttled frame budget neither had.
type Session struct {
	conn net.Conn
	wc   *wireConn
	cs   *ClientState
	cfg  SessionConfig
	log  zerolog.Logger

	capturer   capture.Capturer
	detector   *changedetect.Detector
	converter  *pixconv.Converter
	encMgr     *encodings.EncoderManager
	translator *input.Translator
	clip       *clipboard.Manager
	metrics    *metrics.ConnectionMetrics
	registry   *metrics.Registry
	recorder   *recorder.Recorder
	throttler  *Throttler

	// regionPool and convertedPool recycle the two per-rectangle scratch
	// buffers produceFrame/encodeRectangle would otherwise allocate fresh
	// every frame (spec §4.3's Buffer Pool component). Both are sized to
	// the worst case (a full-framebuffer rectangle at 4 bytes/pixel) so a
	// single pair covers every client pixel format without per-format
	// resizing; extractRegionInto/Convert only ever use a front slice.
	regionPool    *pixconv.BufferPool
	convertedPool *pixconv.BufferPool

	detectorW, detectorH int
	captureFailures      int

	baselineHint  ContentHint
	effectiveHint ContentHint
	churnWindow   *metrics.SlidingWindow[float64]

	lastPushedClipboard string
}

// NewSession wires together one connection's full pipeline. cs must already
// carry a negotiated PixelFormat/SecurityType from PerformHandshake.
func NewSession(
	conn net.Conn,
	cs *ClientState,
	capturer capture.Capturer,
	cfg SessionConfig,
	registry *metrics.Registry,
	rec *recorder.Recorder,
	sink input.Sink,
	clip *clipboard.Manager,
	log zerolog.Logger,
) *Session {
	if rec == nil {
		rec = recorder.Disabled()
	}
	width, height := capturer.Dimensions()
	profile := netprofile.Detect(conn.RemoteAddr().String())
	baseline := baselineHintForProfile(profile)

	converter := pixconv.NewConverter()
	converter.SetFormat(pixconvFormat(cs.Format))

	maxBufSize := width * height * 4

	s := &Session{
		conn:          conn,
		wc:            newWireConn(conn, conn),
		cs:            cs,
		cfg:           cfg,
		log:           log,
		capturer:      capturer,
		detector:      changedetect.NewDetector(),
		converter:     converter,
		encMgr:        encodings.NewEncoderManager(),
		translator:    input.NewTranslator(sink, width, height, cfg.ScaleFactor),
		clip:          clip,
		metrics:       metrics.NewConnectionMetrics(cs.ID),
		registry:      registry,
		recorder:      rec,
		throttler:     NewThrottler(cfg.MaxFPS),
		regionPool:    pixconv.NewBufferPool(maxBufSize),
		convertedPool: pixconv.NewBufferPool(maxBufSize),
		baselineHint:  baseline,
		effectiveHint: baseline,
		churnWindow:   metrics.NewSlidingWindow[float64](contentHintWindowSize),
	}
	s.cs.ContentHint = s.effectiveHint
	s.detector.Configure(width, height, ServerNativeFormat.BytesPerPixel())
	s.detectorW, s.detectorH = width, height
	s.cs.LastDesktopWidth, s.cs.LastDesktopHeight = width, height

	_ = rec.RecordEvent(recorder.EventInit, nil, map[string]any{
		"client_id": cs.ID, "width": width, "height": height, "network_profile": profile.String(),
	})
	return s
}

func baselineHintForProfile(p netprofile.Profile) ContentHint {
	switch p {
	case netprofile.Localhost, netprofile.LAN:
		return HintLAN
	default:
		return HintStatic
	}
}

func pixconvFormat(pf PixelFormat) pixconv.Format {
	return pixconv.Format{
		BitsPerPixel: int(pf.BitsPerPixel),
		BigEndian:    pf.BigEndian,
		RedMax:       pf.RedMax,
		GreenMax:     pf.GreenMax,
		BlueMax:      pf.BlueMax,
		RedShift:     pf.RedShift,
		GreenShift:   pf.GreenShift,
		BlueShift:    pf.BlueShift,
	}
}

// Metrics exposes the session's per-connection counters.
func (s *Session) Metrics() *metrics.ConnectionMetrics { return s.metrics }

// Run drives the session loop until ctx is cancelled or an unrecoverable
// error occurs (ProtocolError, AuthenticationError, TransportError, or a
// CaptureError past the failure threshold — spec §7's propagation policy).
// Always closes the underlying connection before returning.
func (s *Session) Run(ctx context.Context) error {
	defer s.conn.Close()
	defer s.cs.MarkClosed()
	if s.registry != nil {
		s.registry.ConnectionsActive.Inc()
		defer s.registry.ConnectionsActive.Dec()
	}

	lastActivity := time.Now()
	pollInterval := s.throttler.PollInterval()
	if pollInterval > maxPollInterval || pollInterval <= 0 {
		pollInterval = maxPollInterval
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := s.conn.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
			return &TransportError{Op: "set read deadline", Err: err}
		}

		msg, err := ReadClientMessage(s.wc, s.cfg.MaxEncodingsPerClient, s.cfg.MaxClientCutTextBytes)
		switch {
		case err == nil:
			lastActivity = time.Now()
			if err := s.dispatch(msg); err != nil {
				return err
			}
		case isTimeout(err):
			// No message within this tick; fall through to the frame check.
		default:
			// ProtocolError, AuthenticationError, or TransportError: all
			// three terminate the connection per spec §7's propagation
			// policy, so there's nothing left to discriminate here.
			return err
		}

		if s.cfg.IdleTimeout > 0 && time.Since(lastActivity) > s.cfg.IdleTimeout {
			return fmt.Errorf("rfb: idle timeout after %s", s.cfg.IdleTimeout)
		}

		if s.cs.HasPending() && s.throttler.Allow() {
			if err := s.produceFrame(ctx); err != nil {
				return err
			}
		}

		if err := s.pushClipboardIfChanged(); err != nil {
			return err
		}
	}
}

func isTimeout(err error) bool {
	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}
	var ne net.Error
	return errors.As(te.Err, &ne) && ne.Timeout()
}

// dispatch routes one already-read client message to its handler. Per spec
// §8 scenario 6, a PointerEvent first absorbs any further PointerEvent
// messages already buffered on the wire, keeping only the latest
// coordinate/button state before handing off to the translator.
func (s *Session) dispatch(msg ClientMessage) error {
	switch m := msg.(type) {
	case SetPixelFormatMsg:
		s.handleSetPixelFormat(m)
	case SetEncodingsMsg:
		s.handleSetEncodings(m)
	case FramebufferUpdateRequestMsg:
		s.cs.SetPending(&m)
	case KeyEventMsg:
		s.translator.HandleKeyEvent(m.Down, m.Key)
		s.metrics.RecordKeyEvent()
		if s.registry != nil {
			s.registry.KeyEventsTotal.Inc()
		}
		_ = s.recorder.RecordEvent(recorder.EventKeyEvent, nil, map[string]any{"down": m.Down, "key": m.Key})
	case PointerEventMsg:
		latest := s.coalescePointerEvents(m)
		s.translator.HandlePointerEvent(latest.ButtonMask, latest.X, latest.Y)
		s.metrics.RecordPointerEvent()
		if s.registry != nil {
			s.registry.PointerEventsTotal.Inc()
		}
	case ClientCutTextMsg:
		s.handleClientCutText(m)
	default:
		return fmt.Errorf("%w: unhandled client message type %T", ErrProtocol, msg)
	}
	return nil
}

// coalescePointerEvents peeks the wireConn's buffered reader for additional
// PointerEvent messages that arrived in the same read (e.g. a fast mouse
// drag), consuming and discarding all but the last one.
func (s *Session) coalescePointerEvents(first PointerEventMsg) PointerEventMsg {
	latest := first
	for {
		peek, err := s.wc.br.Peek(6)
		if err != nil || len(peek) < 6 || peek[0] != cmsgPointerEvent {
			return latest
		}
		msg, err := ReadClientMessage(s.wc, 0, 0)
		if err != nil {
			return latest
		}
		pe, ok := msg.(PointerEventMsg)
		if !ok {
			return latest
		}
		latest = pe
	}
}

func (s *Session) handleSetPixelFormat(m SetPixelFormatMsg) {
	s.cs.SetPixelFormat(m.Format)
	s.converter.SetFormat(pixconvFormat(m.Format))
	s.detector.Reset()
}

func (s *Session) handleSetEncodings(m SetEncodingsMsg) {
	codes := make([]encodings.Code, len(m.Encodings))
	for i, e := range m.Encodings {
		codes[i] = encodings.Code(e)
	}
	s.cs.SetEncodingPrefs(codes)
	_ = s.recorder.RecordEvent(recorder.EventSetEncodings, nil, map[string]any{"count": len(codes)})
}

func (s *Session) handleClientCutText(m ClientCutTextMsg) {
	ok, err := s.clip.HandleClientCutText(m.Text)
	if err != nil {
		s.log.Warn().Err(err).Msg("rejected oversized ClientCutText")
		return
	}
	if ok {
		s.lastPushedClipboard = clipboard.Sanitize(m.Text)
		_ = s.recorder.RecordEvent(recorder.EventClientCutText, []byte(m.Text), nil)
	}
}

// pushClipboardIfChanged sends a ServerCutText when the shared clipboard's
// server-side content differs from what this connection last pushed (or
// last received from its own client, to avoid an immediate echo loop).
func (s *Session) pushClipboardIfChanged() error {
	text := s.clip.ServerText()
	if text == "" || text == s.lastPushedClipboard {
		return nil
	}
	if err := WriteServerCutText(s.wc, text); err != nil {
		return err
	}
	if err := s.wc.flush(); err != nil {
		return err
	}
	s.lastPushedClipboard = text
	return s.recorder.RecordEvent(recorder.EventServerCutText, []byte(text), nil)
}

// produceFrame runs one capture/detect/encode/emit cycle (spec §4.7): a
// capture is taken, compared against the detector's server-native
// checksums, intersected with the client's outstanding request region, and
// whatever rectangles survive are encoded and emitted as one
// FramebufferUpdate. Returns nil (not an error) when there is simply
// nothing to send yet — the client's request stays pending.
func (s *Session) produceFrame(ctx context.Context) error {
	pending := s.cs.TakePending()
	if pending == nil {
		return nil
	}

	frame, err := s.capturer.Capture(ctx)
	if err != nil {
		s.captureFailures++
		s.metrics.RecordError()
		if s.registry != nil {
			s.registry.ErrorsTotal.Inc()
		}
		s.cs.SetPending(pending) // request still owed once capture recovers
		if s.cfg.MaxCaptureFailures > 0 && s.captureFailures >= s.cfg.MaxCaptureFailures {
			return &CaptureError{Msg: fmt.Sprintf("capture failed %d times: %v", s.captureFailures, err)}
		}
		return nil
	}
	s.captureFailures = 0

	serverBPP := ServerNativeFormat.BytesPerPixel()
	resizedForDetector := frame.Width != s.detectorW || frame.Height != s.detectorH
	if resizedForDetector {
		s.detector.Configure(frame.Width, frame.Height, serverBPP)
		s.cs.Encoders.CopyRect.Reset()
		s.detectorW, s.detectorH = frame.Width, frame.Height
		newMax := frame.Width * frame.Height * 4
		s.regionPool.Resize(newMax)
		s.convertedPool.Resize(newMax)
	}

	var writers []func() error
	var wireBytes int
	const rectHeaderSize = 12 // x,y,w,h (uint16 x4) + encoding (int32)

	if frame.Width != s.cs.LastDesktopWidth || frame.Height != s.cs.LastDesktopHeight {
		writers = append(writers, s.resizeRectWriter(frame.Width, frame.Height))
		wireBytes += rectHeaderSize
		s.translator.SetScreenSize(frame.Width, frame.Height)
		s.cs.LastDesktopWidth, s.cs.LastDesktopHeight = frame.Width, frame.Height
		_ = s.recorder.RecordEvent(recorder.EventDesktopResize, nil, map[string]any{
			"width": frame.Width, "height": frame.Height,
		})
	}

	fullFrameRect := Rectangle{Width: uint16(frame.Width), Height: uint16(frame.Height)}
	requestRect, ok := Rectangle{X: pending.X, Y: pending.Y, Width: pending.Width, Height: pending.Height}.ClampToBounds(frame.Width, frame.Height)
	if !ok {
		requestRect = fullFrameRect
	}

	var dirty []Rectangle
	if !pending.Incremental {
		dirty = []Rectangle{requestRect}
	} else {
		regions := s.detector.Detect(frame.Pixels)
		s.updateContentHint(regions, frame.Width, frame.Height)
		if len(regions) == 1 && regions[0] == (changedetect.Region{}) {
			dirty = []Rectangle{requestRect}
		} else {
			for _, r := range regions {
				rect, ok := Rectangle{X: uint16(r.X), Y: uint16(r.Y), Width: uint16(r.Width), Height: uint16(r.Height)}.Intersect(requestRect)
				if ok && !rect.Empty() {
					dirty = append(dirty, rect)
				}
			}
		}
	}

	for _, rect := range dirty {
		rect := rect
		encType, payload, encErr := s.encodeRectangle(rect, frame)
		if encErr != nil {
			return encErr
		}
		wireBytes += rectHeaderSize + len(payload)
		writers = append(writers, func() error { return WriteRectangle(s.wc, rect, encType, payload) })
	}

	if len(writers) == 0 {
		s.cs.SetPending(pending)
		return nil
	}

	start := time.Now()
	if err := WriteFramebufferUpdateHeader(s.wc, len(writers)); err != nil {
		return err
	}
	for _, w := range writers {
		if err := w(); err != nil {
			return err
		}
	}
	if err := s.wc.flush(); err != nil {
		return err
	}

	s.cs.Encoders.CopyRect.Update(frame.Pixels, frame.Width, frame.Height, serverBPP)
	s.metrics.RecordFrame(wireBytes, time.Since(start), len(frame.Pixels))
	if s.registry != nil {
		s.registry.BytesSent.Add(float64(wireBytes))
	}
	_ = s.recorder.RecordEvent(recorder.EventFramebufferUpdate, nil, map[string]any{"rects": len(writers)})
	return nil
}

func (s *Session) resizeRectWriter(width, height int) func() error {
	if s.cs.SupportsEncoding(encodings.Code(EncodingExtendedDesktopSizePseudo)) {
		layout := DesktopLayout{Screens: []Screen{{ID: 0, Width: uint16(width), Height: uint16(height)}}}
		return func() error {
			return WriteExtendedDesktopSizePseudoEncoding(s.wc, ResizeReasonServer, ResizeStatusOK, layout)
		}
	}
	return func() error {
		return WriteDesktopSizePseudoEncoding(s.wc, uint16(width), uint16(height))
	}
}

// updateContentHint folds this frame's changed-area fraction into the churn
// window and, for a WAN (compression-oriented baseline) connection, nudges
// the effective hint toward the dynamic preference list under sustained
// high churn, back to the baseline once it settles (spec_full §4.7
// supplement).
func (s *Session) updateContentHint(regions []changedetect.Region, width, height int) {
	if s.baselineHint != HintStatic {
		return
	}
	total := width * height
	if total == 0 {
		return
	}
	changed := 0
	for _, r := range regions {
		changed += r.Width * r.Height
	}
	s.churnWindow.Add(float64(changed) / float64(total))
	if s.churnWindow.Len() < contentHintWindowSize {
		return
	}
	avg := s.churnWindow.Average()
	switch {
	case s.effectiveHint == HintStatic && avg > dynamicChurnThreshold:
		s.effectiveHint = HintDynamic
	case s.effectiveHint == HintDynamic && avg < staticChurnThreshold:
		s.effectiveHint = HintStatic
	}
	s.cs.ContentHint = s.effectiveHint
}

// encodeRectangle picks one rectangle's on-wire encoding: CopyRect first
// whenever the client supports it and the shift detector finds a match,
// then the hint's ordered candidate list (Tight specially prepended when
// PreferTight says the rectangle is worth it), falling back to Raw if every
// candidate either errors or produces no smaller output (spec §4.5, §4.7,
// §7's EncodingError recovery policy).
func (s *Session) encodeRectangle(rect Rectangle, frame capture.Frame) (EncodingType, []byte, error) {
	serverBPP := ServerNativeFormat.BytesPerPixel()

	if s.cs.SupportsEncoding(encodings.CodeCopyRect) {
		if srcX, srcY, ok := s.cs.Encoders.CopyRect.Detect(
			frame.Pixels, frame.Width, frame.Height, serverBPP,
			int(rect.X), int(rect.Y), int(rect.Width), int(rect.Height),
		); ok {
			return EncodingCopyRect, encodings.EncodePayload(srcX, srcY), nil
		}
	}

	regionBuf := s.regionPool.Get()
	defer s.regionPool.Put(regionBuf)
	region := extractRegionInto(regionBuf, frame.Pixels, frame.Width, serverBPP, rect)

	clientBPP := s.cs.Format.BytesPerPixel()
	convertedBuf := s.convertedPool.Get()
	defer s.convertedPool.Put(convertedBuf)
	converted := convertedBuf[:rect.Area()*clientBPP]
	s.converter.Convert(converted, region, int(rect.Width), int(rect.Height))

	raw, err := s.cs.Encoders.Raw.Encode(converted, int(rect.Width), int(rect.Height), clientBPP)
	if err != nil {
		return 0, nil, &EncodingError{Encoding: "raw", Msg: err.Error()}
	}

	codes := s.encMgr.Select(s.cs.EncodingPrefs, encodings.Hint(s.effectiveHint))
	if s.encMgr.PreferTight(s.cs.EncodingPrefs, rect.Area()) {
		codes = prependTight(codes)
	}

	for _, code := range codes {
		if code == encodings.CodeRaw {
			continue
		}
		payload, err := s.cs.Encoders.Encode(code, converted, int(rect.Width), int(rect.Height), clientBPP)
		if err != nil {
			s.log.Debug().Err(err).Int32("encoding", int32(code)).Msg("encoder failed, falling back")
			s.metrics.RecordError()
			continue
		}
		if len(payload) >= len(raw) {
			continue
		}
		return EncodingType(code), payload, nil
	}
	return EncodingRaw, raw, nil
}

func prependTight(codes []encodings.Code) []encodings.Code {
	out := make([]encodings.Code, 0, len(codes)+1)
	out = append(out, encodings.CodeTight)
	for _, c := range codes {
		if c != encodings.CodeTight {
			out = append(out, c)
		}
	}
	return out
}

// extractRegionInto copies a tightly-packed width*height*bpp sub-rectangle
// out of a full-stride buffer into the front of dst (sized by the caller's
// buffer pool); pixconv.Converter and the encoders all expect their input
// with no stride padding.
func extractRegionInto(dst, pixels []byte, fullWidth, bpp int, rect Rectangle) []byte {
	out := dst[:rect.Area()*bpp]
	stride := fullWidth * bpp
	rowBytes := int(rect.Width) * bpp
	for y := 0; y < int(rect.Height); y++ {
		srcOff := (int(rect.Y)+y)*stride + int(rect.X)*bpp
		dstOff := y * rowBytes
		copy(out[dstOff:dstOff+rowBytes], pixels[srcOff:srcOff+rowBytes])
	}
	return out
}
