package gqlrequest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope_GET(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/lower?query=query%20%7B%20authors%20%7B%20first_name%20%7D%20%7D&operationName=Authors&variables=%7B%22n%22%3A1%7D", nil)
	env, err := DecodeEnvelope(req)
	require.NoError(t, err)
	assert.Equal(t, "query { authors { first_name } }", env.Query)
	assert.Equal(t, "Authors", env.OperationName)
	assert.Equal(t, len(env.Query), env.DocumentSizeBytes)

	vars, err := env.Variables()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": json.Number("1")}, vars)
}

func TestDecodeEnvelope_PostApplicationGraphQL_RewindsBody(t *testing.T) {
	body := "query { authors { first_name } }"
	req := httptest.NewRequest(http.MethodPost, "/v1/lower", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/graphql")

	env, err := DecodeEnvelope(req)
	require.NoError(t, err)
	assert.Equal(t, body, env.Query)

	rewound, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, body, string(rewound))
}

func TestDecodeEnvelope_PostJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/lower", strings.NewReader(
		`{"query":"query A { authors { first_name } }","operationName":"A","variables":{"limit":5},"session":{"X-Hasura-Role":"user"}}`))
	req.Header.Set("Content-Type", "application/json")

	env, err := DecodeEnvelope(req)
	require.NoError(t, err)
	assert.Equal(t, "A", env.OperationName)
	assert.Equal(t, map[string]string{"X-Hasura-Role": "user"}, env.Session)

	vars, err := env.Variables()
	require.NoError(t, err)
	assert.Equal(t, json.Number("5"), vars["limit"])
}

func TestDecodeEnvelope_NullVariables(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/lower", strings.NewReader(`{"query":"{ authors { first_name } }","variables":null}`))
	env, err := DecodeEnvelope(req)
	require.NoError(t, err)
	assert.Empty(t, env.VariablesRaw)

	vars, err := env.Variables()
	require.NoError(t, err)
	assert.Empty(t, vars)
}

func TestEnvelope_VariablesNotObject(t *testing.T) {
	_, err := Envelope{VariablesRaw: json.RawMessage(`[1,2]`)}.Variables()
	require.Error(t, err)
}

func TestDecodeEnvelope_PostMalformedJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/lower", strings.NewReader(`{"query":`))
	req.Header.Set("Content-Type", "application/json")

	_, err := DecodeEnvelope(req)
	require.Error(t, err)
}

func TestDecodeEnvelope_SessionHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/lower", strings.NewReader(
		`{"query":"{ authors { first_name } }","session":{"x-hasura-role":"editor"}}`))
	req.Header.Set("X-Hasura-Role", "reader")
	req.Header.Set("X-Hasura-User-Id", "42")
	req.Header.Set("X-Request-ID", "abc")

	env, err := DecodeEnvelope(req)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"x-hasura-role":    "editor",
		"X-Hasura-User-Id": "42",
	}, env.Session)
}

func TestDecodeEnvelope_GETSessionHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/lower?query=%7B%20authors%20%7B%20first_name%20%7D%20%7D", nil)
	req.Header.Set("X-Hasura-Role", "reader")

	env, err := DecodeEnvelope(req)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"X-Hasura-Role": "reader"}, env.Session)
}
