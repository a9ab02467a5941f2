package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
	"github.com/angelmondragon/playfunia-backend/pkg/types"
)

// ParseResponseError reads a non-2xx response and rebuilds the typed error
// the server wrote. The server message is kept verbatim. The body is
// consumed and closed.
func ParseResponseError(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeForStatus(resp.StatusCode), err, fmt.Sprintf("api returned status %d", resp.StatusCode))
	}

	var envelope types.ErrorEnvelope
	if json.Unmarshal(body, &envelope) == nil && envelope.Error.Code != "" {
		code := pkgerrors.ParseCode(envelope.Error.Code, resp.StatusCode)
		typed := pkgerrors.New(code, envelope.Error.Message)
		if envelope.Error.Details != nil {
			typed = typed.WithDetails(envelope.Error.Details)
		}
		return typed
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return pkgerrors.New(pkgerrors.CodeForStatus(resp.StatusCode), fmt.Sprintf("api returned status %d: %s", resp.StatusCode, msg))
}

// IsServerFailure reports whether err is a transport or 5xx failure.
func IsServerFailure(err error) bool {
	if err == nil {
		return false
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		return true
	}
	return pkgerrors.MetadataFor(typed.Code()).HTTPStatus >= http.StatusInternalServerError
}
