package codec

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoPayload struct {
	Name    string `json:"name" cbor:"name"`
	Content []byte `json:"content" cbor:"content"`
}

func newEchoApp() *fiber.App {
	app := fiber.New()
	app.Post("/echo", func(c *fiber.Ctx) error {
		var in echoPayload
		if err := Decode(c, &in); err != nil {
			return c.SendStatus(fiber.StatusUnprocessableEntity)
		}
		return Respond(c, fiber.StatusOK, in)
	})
	return app
}

func TestDecodeRespond_CBORDefault(t *testing.T) {
	t.Parallel()

	app := newEchoApp()
	payload, err := cbor.Marshal(echoPayload{Name: "x", Content: []byte{1, 2, 3}})
	require.NoError(t, err)

	// No Content-Type at all: CBOR is the wire default.
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewReader(payload))
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, MIMECBOR, resp.Header.Get("Content-Type"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out echoPayload
	require.NoError(t, cbor.Unmarshal(raw, &out))
	assert.Equal(t, "x", out.Name)
	assert.Equal(t, []byte{1, 2, 3}, out.Content)
}

func TestDecodeRespond_JSONNegotiated(t *testing.T) {
	t.Parallel()

	app := newEchoApp()
	payload, err := json.Marshal(echoPayload{Name: "y", Content: []byte("abc")})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewReader(payload))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	req.Header.Set("Accept", fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), fiber.MIMEApplicationJSON)

	var out echoPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "y", out.Name)
	assert.Equal(t, []byte("abc"), out.Content)
}

func TestDecode_MalformedBody(t *testing.T) {
	t.Parallel()

	app := newEchoApp()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}
