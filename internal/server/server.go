package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	anetserver "github.com/andrei-cloud/anet/server"
	"github.com/andrei-cloud/go_ayoto/internal/dispatch"
	"github.com/andrei-cloud/go_ayoto/internal/errorcodes"
	"github.com/andrei-cloud/go_ayoto/internal/logging"
	"github.com/andrei-cloud/go_ayoto/internal/manifest"
	"github.com/rs/zerolog/log"
)

// Built-in operations that do not address a single plugin.
const (
	OpList      = "list"
	OpSearchAll = "searchAll"
	OpEnable    = "enable"
	OpDisable   = "disable"
)

// Request is one frame sent by a client.
type Request struct {
	Backend string          `json:"backend,omitempty"`
	Plugin  string          `json:"plugin,omitempty"`
	Op      string          `json:"op"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is the envelope written back for every request.
type Response struct {
	Success bool   `json:"success"`
	Value   any    `json:"value,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// logAdapter implements anet.Logger using zerolog.
type logAdapter struct{}

func (l logAdapter) Print(v ...any) {
	log.Info().Msg(fmt.Sprint(v...))
}

func (l logAdapter) Printf(format string, v ...any) {
	log.Info().Msgf(format, v...)
}

func (l logAdapter) Infof(format string, v ...any) {
	log.Info().Msgf(format, v...)
}

func (l logAdapter) Warnf(format string, v ...any) {
	log.Warn().Msgf(format, v...)
}

func (l logAdapter) Errorf(format string, v ...any) {
	log.Error().Msgf(format, v...)
}

// Server exposes a Dispatcher over anet framed TCP.
type Server struct {
	address     string
	srv         *anetserver.Server
	dispatcher  atomic.Pointer[dispatch.Dispatcher]
	callTimeout time.Duration
	activeConns int32
}

// NewServer configures a server for address backed by d.
func NewServer(address string, d *dispatch.Dispatcher) (*Server, error) {
	cfg := &anetserver.ServerConfig{
		MaxConns:        100,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     0 * time.Second, // disable idle connection closure.
		ShutdownTimeout: 5 * time.Second,
		Logger:          logAdapter{},
	}

	s := &Server{
		address:     address,
		callTimeout: 25 * time.Second,
	}
	s.dispatcher.Store(d)

	srv, err := anetserver.NewServer(address, anetserver.HandlerFunc(s.handle), cfg)
	if err != nil {
		return nil, fmt.Errorf("server setup failed: %w", err)
	}
	s.srv = srv

	return s, nil
}

// Start begins listening for connections.
func (s *Server) Start() error {
	log.Info().Str("address", s.address).Msg("server started")

	return s.srv.Start()
}

// Stop gracefully shuts down the server. The dispatcher is closed by its owner.
func (s *Server) Stop() error {
	return s.srv.Stop()
}

// Dispatcher returns the dispatcher currently serving requests.
func (s *Server) Dispatcher() *dispatch.Dispatcher {
	return s.dispatcher.Load()
}

// SetDispatcher swaps in d and closes the previous dispatcher.
func (s *Server) SetDispatcher(ctx context.Context, d *dispatch.Dispatcher) {
	old := s.dispatcher.Swap(d)
	if old == nil || old == d {
		return
	}
	if err := old.Close(ctx); err != nil {
		log.Error().Err(err).Msg("failed to close previous dispatcher")
	}
}

func (s *Server) handle(conn *anetserver.ServerConn, data []byte) ([]byte, error) {
	client := conn.Conn.RemoteAddr().String()
	active := int(atomic.AddInt32(&s.activeConns, 1))
	defer atomic.AddInt32(&s.activeConns, -1)

	start := time.Now()

	var (
		req  Request
		resp Response
	)
	if err := json.Unmarshal(data, &req); err != nil {
		resp = failure(errorcodes.ErrParse.Withf("malformed request frame").Wrap(err))
	} else {
		logging.LogRequest(client, req.target().String(), req.Op, len(data), active)

		ctx, cancel := context.WithTimeout(context.Background(), s.callTimeout)
		resp = s.execute(ctx, req)
		cancel()
	}

	out, err := json.Marshal(resp)
	if err != nil {
		out, _ = json.Marshal(failure(errorcodes.ErrGuestExecution.Withf("unencodable result").Wrap(err)))
	}

	logging.LogResponse(client, req.target().String(), req.Op, len(out), resp.Code, active)
	log.Debug().
		Str("event", "handle_done").
		Str("op", req.Op).
		Dur("duration", time.Since(start)).
		Msg("completed request handling")

	return out, nil
}

func (r Request) target() dispatch.Target {
	return dispatch.Target{Backend: r.Backend, PluginID: r.Plugin}
}

func (s *Server) execute(ctx context.Context, req Request) Response {
	d := s.dispatcher.Load()

	switch req.Op {
	case OpList:
		return Response{Success: true, Value: d.Summaries()}
	case OpSearchAll:
		var params struct {
			Query string `json:"query"`
			Page  uint32 `json:"page"`
			Limit int    `json:"limit"`
		}
		if err := decodeParams(req.Params, &params); err != nil {
			return failure(err)
		}
		results, err := d.SearchAll(ctx, params.Query, params.Page, params.Limit)
		if err != nil {
			return failure(err)
		}

		return Response{Success: true, Value: searchAllValue(results)}
	case OpEnable, OpDisable:
		if err := d.SetEnabled(req.target(), req.Op == OpEnable); err != nil {
			return failure(err)
		}

		return Response{Success: true, Value: req.target()}
	}

	c, err := manifest.ParseCapability(req.Op)
	if err != nil {
		return failure(errorcodes.ErrCapabilityUnsupported.Withf("unknown operation '%s'", req.Op))
	}
	if req.Plugin == "" {
		return failure(errorcodes.ErrValidation.Withf("request has no plugin"))
	}

	params := []byte(req.Params)
	if len(params) == 0 {
		params = []byte("{}")
	}

	value, err := d.InvokeRaw(ctx, req.target(), c, params)
	if err != nil {
		return failure(err)
	}

	return Response{Success: true, Value: value}
}

func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errorcodes.ErrParse.Withf("malformed params").Wrap(err)
	}

	return nil
}

type searchAllEntry struct {
	Target dispatch.Target `json:"target"`
	Value  any             `json:"value,omitempty"`
	Error  string          `json:"error,omitempty"`
	Code   string          `json:"code,omitempty"`
}

func searchAllValue(results []dispatch.SearchResult) []searchAllEntry {
	out := make([]searchAllEntry, 0, len(results))
	for _, r := range results {
		e := searchAllEntry{Target: r.Target}
		if r.Err != nil {
			e.Error = r.Err.Error()
			e.Code = errorcodes.CodeOf(r.Err)
		} else {
			e.Value = r.List
		}
		out = append(out, e)
	}

	return out
}

func failure(err error) Response {
	return Response{Success: false, Error: err.Error(), Code: errorcodes.CodeOf(err)}
}
