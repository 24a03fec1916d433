package agent

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"sandgate/internal/bus"
	"sandgate/internal/session"
	appErr "sandgate/pkg/errors"
)

// Marker lines framing the response on the child's stdout.
const (
	ResponseStartMarker = "<<<SANDGATE_RESPONSE_START>>>"
	ResponseEndMarker   = "<<<SANDGATE_RESPONSE_END>>>"
)

// Error codes reported by the child in AgentResult.Code.
const (
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeProcessError   = "PROCESS_ERROR"
)

// Result kinds.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// AgentRequest is written to the child's stdin as one JSON line.
type AgentRequest struct {
	RequestID   string             `json:"request_id"`
	Message     bus.InboundMessage `json:"message"`
	AgentConfig AgentDefaults      `json:"agent_config"`
	Session     *session.Session   `json:"session,omitempty"`
}

// AgentResult is either a success with content and an optional session
// snapshot, or an error with a message.
type AgentResult struct {
	Kind    string           `json:"kind"`
	Content string           `json:"content,omitempty"`
	Session *session.Session `json:"session,omitempty"`
	Message string           `json:"message,omitempty"`
	Code    string           `json:"code,omitempty"`
}

// AgentResponse is the single payload between the marker lines.
type AgentResponse struct {
	RequestID string      `json:"request_id"`
	Result    AgentResult `json:"result"`
}

func SuccessResponse(requestID, content string, s *session.Session) AgentResponse {
	return AgentResponse{RequestID: requestID, Result: AgentResult{Kind: ResultSuccess, Content: content, Session: s}}
}

func ErrorResponse(requestID, code, message string) AgentResponse {
	return AgentResponse{RequestID: requestID, Result: AgentResult{Kind: ResultError, Code: code, Message: message}}
}

// ParseResponse extracts the response between the first start marker line
// and the following end marker line. Everything else on stdout is ignored.
func ParseResponse(stdout string) (*AgentResponse, error) {
	var (
		inside  bool
		payload strings.Builder
	)
	for _, line := range strings.Split(stdout, "\n") {
		trimmed := strings.TrimRight(line, "\r")
		switch {
		case !inside && trimmed == ResponseStartMarker:
			inside = true
		case inside && trimmed == ResponseEndMarker:
			return decodeResponse(payload.String())
		case inside:
			payload.WriteString(trimmed)
			payload.WriteByte('\n')
		}
	}
	return nil, appErr.New(appErr.ResponseMalformed).WithMessage("failed to parse container response: no marked response block")
}

func decodeResponse(payload string) (*AgentResponse, error) {
	var resp AgentResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(payload)), &resp); err != nil {
		return nil, appErr.Wrapf(err, appErr.ResponseMalformed, "failed to parse container response: %v", err)
	}
	switch resp.Result.Kind {
	case ResultSuccess, ResultError:
	default:
		return nil, appErr.Newf(appErr.ResponseMalformed, "failed to parse container response: unknown result kind %q", resp.Result.Kind)
	}
	return &resp, nil
}

// FormatResponse renders resp as the marker block the proxy parses.
func FormatResponse(resp AgentResponse) (string, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.InternalServerError, "encode response failed")
	}
	return ResponseStartMarker + "\n" + string(data) + "\n" + ResponseEndMarker + "\n", nil
}

// WriteResponse writes the marker block to w.
func WriteResponse(w io.Writer, resp AgentResponse) error {
	out, err := FormatResponse(resp)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

// ReadRequest reads the single request line a child receives on stdin.
func ReadRequest(r io.Reader) (*AgentRequest, error) {
	reader := bufio.NewReader(r)
	line, err := reader.ReadBytes('\n')
	if err != nil && (err != io.EOF || len(line) == 0) {
		return nil, appErr.Wrapf(err, appErr.InvalidParams, "read request failed: %v", err)
	}
	var req AgentRequest
	if err := json.Unmarshal(line, &req); err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidParams, "decode request failed: %v", err)
	}
	return &req, nil
}
