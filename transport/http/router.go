package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/slighter12/vault-mcp-go/logger"
	"github.com/slighter12/vault-mcp-go/mcp"
	"github.com/slighter12/vault-mcp-go/mcp/jsonrpc"
	"github.com/slighter12/vault-mcp-go/transport/shared"
)

const maxJSONRPCBodyBytes = 1 << 20

const (
	endpointPath          = mcp.Endpoint
	headerSessionID       = "MCP-Session-Id"
	headerProtocolVersion = "MCP-Protocol-Version"
)

func RegisterRoutes(e *echo.Echo, s *Server) {
	e.GET("/", s.handleHTTPInfo)
	e.POST(endpointPath, s.handlePost)
	e.GET(endpointPath, s.handleGet)
	e.DELETE(endpointPath, s.handleDelete)
}

func (s *Server) handleHTTPInfo(c echo.Context) error {
	info := map[string]any{
		"name":     mcp.ServerName,
		"version":  mcp.ServerVersion,
		"endpoint": endpointPath,
		"tools":    s.snap.Names(),
		"sessions": s.sessions.Len(),
	}
	if s.stats != nil {
		counts, err := s.stats(c.Request().Context())
		if err != nil {
			logger.Warn("Failed to collect call counts", "error", err)
		} else {
			info["calls"] = counts
		}
	}
	return c.JSON(http.StatusOK, info)
}

func errorJSON(c echo.Context, status int, code jsonrpc.ErrorCode, message string) error {
	return c.JSON(status, jsonrpc.NewErrorResponse(nil, code, message, nil))
}

func (s *Server) handlePost(c echo.Context) error {
	limited := http.MaxBytesReader(c.Response(), c.Request().Body, maxJSONRPCBodyBytes)
	defer limited.Close()

	body, err := io.ReadAll(limited)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.Warn("Request body too large", "limit_bytes", maxJSONRPCBodyBytes, "remote_addr", c.RealIP())
			return errorJSON(c, http.StatusRequestEntityTooLarge, jsonrpc.ErrInvalidRequest, "Request body too large")
		}
		return err
	}

	frame, err := shared.ParseFrame(body)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, jsonrpc.ErrParseError, "Parse error")
	}
	if frame.Reject != nil {
		return c.JSON(http.StatusBadRequest, frame.Reject)
	}

	requested := strings.TrimSpace(c.Request().Header.Get(headerProtocolVersion))
	if requested != "" && !mcp.IsSupportedProtocolVersion(requested) {
		return errorJSON(c, http.StatusBadRequest, jsonrpc.ErrInvalidRequest, "Unsupported MCP-Protocol-Version header")
	}

	sessionID := c.Request().Header.Get(headerSessionID)
	if frame.Request != nil && frame.Request.Method == "initialize" {
		return s.handleInitialize(c, *frame.Request, sessionID)
	}

	if sessionID == "" {
		return errorJSON(c, http.StatusBadRequest, jsonrpc.ErrInvalidRequest, "Missing MCP-Session-Id header")
	}
	if !s.sessions.Touch(sessionID) {
		return errorJSON(c, http.StatusNotFound, jsonrpc.ErrInvalidRequest, "Unknown MCP session")
	}
	if !s.protocolVersionMatches(sessionID, requested) {
		return errorJSON(c, http.StatusBadRequest, jsonrpc.ErrInvalidRequest, "Invalid MCP-Protocol-Version header")
	}
	c.Response().Header().Set(headerSessionID, sessionID)

	if frame.OneWay {
		return c.NoContent(http.StatusAccepted)
	}

	msg := *frame.Request
	if msg.Method == "notifications/initialized" {
		s.sessions.MarkInitialized(sessionID)
		return c.NoContent(http.StatusAccepted)
	}

	logger.Debug("Streamable HTTP request received", "method", msg.Method, "id", msg.ID, "session_id", sessionID)
	resp := shared.DispatchStandardMethod(requestContext(c), msg, s.snap, s.dispatcher)
	if resp == nil {
		return c.NoContent(http.StatusAccepted)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleInitialize(c echo.Context, msg jsonrpc.Request, sessionID string) error {
	if sessionID != "" && !s.sessions.Has(sessionID) {
		return errorJSON(c, http.StatusNotFound, jsonrpc.ErrInvalidRequest, "Unknown MCP session")
	}
	if sessionID != "" {
		s.sessions.Remove(sessionID)
	}

	resp, version := shared.BuildInitializeResponse(msg)
	sessionID = s.sessions.Create(version)
	logger.Info("MCP session initialized", "session_id", sessionID, "protocol_version", version)

	c.Response().Header().Set(headerSessionID, sessionID)
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGet(c echo.Context) error {
	sessionID := c.Request().Header.Get(headerSessionID)
	if sessionID == "" {
		return errorJSON(c, http.StatusBadRequest, jsonrpc.ErrInvalidRequest, "Missing MCP-Session-Id header")
	}
	if !s.sessions.Has(sessionID) {
		return errorJSON(c, http.StatusNotFound, jsonrpc.ErrInvalidRequest, "Unknown MCP session")
	}
	if !s.protocolVersionMatches(sessionID, strings.TrimSpace(c.Request().Header.Get(headerProtocolVersion))) {
		return errorJSON(c, http.StatusBadRequest, jsonrpc.ErrInvalidRequest, "Invalid MCP-Protocol-Version header")
	}
	if !acceptsEventStream(c.Request().Header.Get(echo.HeaderAccept)) {
		return errorJSON(c, http.StatusNotAcceptable, jsonrpc.ErrInvalidRequest, "Accept header must include text/event-stream")
	}

	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return errorJSON(c, http.StatusMethodNotAllowed, jsonrpc.ErrInvalidRequest, "SSE stream is not available")
	}

	header := c.Response().Header()
	header.Set(echo.HeaderContentType, "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set(headerSessionID, sessionID)
	c.Response().WriteHeader(http.StatusOK)
	flusher.Flush()

	streamCtx, stopStream := context.WithCancel(c.Request().Context())
	defer stopStream()

	stream := NewStream(c.Response().Writer, flusher, stopStream)
	if err := stream.SendComment("stream opened"); err != nil {
		s.report(err)
		return nil
	}
	// The stream is published only once headers and the first frame are out.
	if !s.sessions.SetStream(sessionID, stream) {
		stream.Close()
		return nil
	}
	defer s.sessions.ClearStreamIfMatch(sessionID, stream)

	logger.Debug("SSE stream opened", "session_id", sessionID)
	<-streamCtx.Done()
	stream.Close()
	logger.Debug("SSE stream closed", "session_id", sessionID)
	return nil
}

func (s *Server) handleDelete(c echo.Context) error {
	sessionID := c.Request().Header.Get(headerSessionID)
	if sessionID == "" {
		return errorJSON(c, http.StatusBadRequest, jsonrpc.ErrInvalidRequest, "Missing MCP-Session-Id header")
	}
	if !s.sessions.Has(sessionID) {
		return errorJSON(c, http.StatusNotFound, jsonrpc.ErrInvalidRequest, "Unknown MCP session")
	}
	s.sessions.Remove(sessionID)
	logger.Info("MCP session ended", "session_id", sessionID)
	return c.NoContent(http.StatusNoContent)
}

// protocolVersionMatches accepts a missing header or the negotiated version.
func (s *Server) protocolVersionMatches(sessionID, requested string) bool {
	if requested == "" {
		return true
	}
	negotiated, ok := s.sessions.ProtocolVersion(sessionID)
	return ok && (negotiated == "" || negotiated == requested)
}

// requestContext keeps tool calls running after the client disconnects.
func requestContext(c echo.Context) context.Context {
	return context.WithoutCancel(c.Request().Context())
}

func acceptsEventStream(acceptHeader string) bool {
	for _, part := range strings.Split(acceptHeader, ",") {
		mime := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if strings.EqualFold(mime, "text/event-stream") || mime == "*/*" {
			return true
		}
	}
	return false
}
