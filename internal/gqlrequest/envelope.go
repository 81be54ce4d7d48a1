package gqlrequest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

// SessionHeaderPrefix marks request headers that carry session variables.
const SessionHeaderPrefix = "x-hasura-"

// Envelope stores the payload of a lowering request.
type Envelope struct {
	Method      string
	ContentType string

	Query         string
	OperationName string
	VariablesRaw  json.RawMessage
	// Session holds session variables as sent by the caller, before name normalization.
	Session map[string]string

	DocumentSizeBytes int
}

type requestBody struct {
	Query         string            `json:"query"`
	OperationName string            `json:"operationName"`
	Variables     json.RawMessage   `json:"variables"`
	Session       map[string]string `json:"session"`
}

// DecodeEnvelope reads the lowering payload from GET query parameters, an
// application/graphql body or a JSON body, then rewinds the body. Session
// variables come from the JSON "session" object and from X-Hasura-* headers;
// the body wins when both name the same variable.
func DecodeEnvelope(r *http.Request) (Envelope, error) {
	if r == nil {
		return Envelope{}, fmt.Errorf("request is nil")
	}

	env := Envelope{
		Method:      r.Method,
		ContentType: r.Header.Get("Content-Type"),
	}

	var err error
	switch {
	case r.Method == http.MethodGet:
		env.fromQueryParams(r.URL.Query())
	case r.Method == http.MethodPost && r.Body != nil:
		err = env.fromBody(r)
	}
	env.mergeSessionHeaders(r.Header)
	env.DocumentSizeBytes = len(env.Query)
	return env, err
}

func (e *Envelope) fromQueryParams(params url.Values) {
	e.Query = params.Get("query")
	e.OperationName = params.Get("operationName")
	if vars := strings.TrimSpace(params.Get("variables")); vars != "" {
		e.VariablesRaw = json.RawMessage(vars)
	}
}

func (e *Envelope) fromBody(r *http.Request) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	mediaType, _, err := mime.ParseMediaType(e.ContentType)
	if err != nil {
		mediaType = strings.TrimSpace(e.ContentType)
	}
	if mediaType == "application/graphql" {
		e.Query = string(body)
		return nil
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	var payload requestBody
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return err
	}
	e.Query = payload.Query
	e.OperationName = payload.OperationName
	e.Session = payload.Session
	if raw := bytes.TrimSpace(payload.Variables); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		e.VariablesRaw = append(json.RawMessage(nil), raw...)
	}
	return nil
}

func (e *Envelope) mergeSessionHeaders(h http.Header) {
	for name, values := range h {
		if len(values) == 0 || !strings.HasPrefix(strings.ToLower(name), SessionHeaderPrefix) {
			continue
		}
		if e.Session == nil {
			e.Session = map[string]string{}
		}
		if _, ok := lookupFold(e.Session, name); !ok {
			e.Session[name] = values[0]
		}
	}
}

func lookupFold(m map[string]string, name string) (string, bool) {
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// Variables decodes the raw variables object. Numbers stay json.Number so
// integers keep their exact value.
func (e Envelope) Variables() (map[string]any, error) {
	if len(e.VariablesRaw) == 0 {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(e.VariablesRaw))
	dec.UseNumber()
	var vars map[string]any
	if err := dec.Decode(&vars); err != nil {
		return nil, fmt.Errorf("variables must be a JSON object: %w", err)
	}
	if vars == nil {
		vars = map[string]any{}
	}
	return vars, nil
}
