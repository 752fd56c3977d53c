package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/buger/jsonparser"
)

type rawCallKey struct{}

// rawCall is the verbatim arguments object of a single tools/call request.
type rawCall struct {
	name string
	args []byte
}

// keepRawArguments stashes the undecoded tools/call arguments in the request
// context. The MCP library decodes arguments into Go maps, which loses object
// key order inside variable values.
func keepRawArguments(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Body == nil {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(r.Body)
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		if call, ok := parseToolCall(body); ok {
			r = r.WithContext(context.WithValue(r.Context(), rawCallKey{}, call))
		}
		next.ServeHTTP(w, r)
	})
}

func parseToolCall(body []byte) (rawCall, bool) {
	method, err := jsonparser.GetString(body, "method")
	if err != nil || method != "tools/call" {
		return rawCall{}, false
	}
	name, err := jsonparser.GetString(body, "params", "name")
	if err != nil {
		return rawCall{}, false
	}
	args, dataType, _, err := jsonparser.Get(body, "params", "arguments")
	if err != nil || dataType != jsonparser.Object {
		return rawCall{}, false
	}
	return rawCall{name: name, args: args}, true
}

// callArguments prefers the verbatim arguments captured for name over
// re-encoding the decoded ones.
func callArguments(ctx context.Context, name string, decoded any) ([]byte, error) {
	if call, ok := ctx.Value(rawCallKey{}).(rawCall); ok && call.name == name {
		return call.args, nil
	}
	return json.Marshal(decoded)
}
