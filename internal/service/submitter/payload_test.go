package submitter

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeInput(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func decodeBody(t *testing.T, body []byte) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))

	return out
}

func TestPreparePayload_JSONAndXML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeInput(t, dir, "b_factura.json", "\ufeff  {\"numFactura\": \"FE-1\"}\n")
	writeInput(t, dir, "z_otro.json", `{"ignored": true}`)
	writeInput(t, dir, "a_factura.XML", "<Invoice/>")
	writeInput(t, dir, "notes.txt", "skip me")

	payload, err := PreparePayload(dir, "/rips/cargar", false)
	require.NoError(t, err)
	require.False(t, payload.Compressed)
	require.Equal(t, "b_factura", payload.BaseName)

	body := decodeBody(t, payload.Body)
	require.Equal(t, map[string]any{"numFactura": "FE-1"}, body["rips"])
	require.Equal(t, base64.StdEncoding.EncodeToString([]byte("<Invoice/>")), body["xmlFevFile"])
}

func TestPreparePayload_OnlyXML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeInput(t, dir, "factura.xml", "<Invoice/>")

	payload, err := PreparePayload(dir, "/rips/cargar", false)
	require.NoError(t, err)
	require.Equal(t, "factura", payload.BaseName)

	body := decodeBody(t, payload.Body)
	require.Contains(t, body, "rips")
	require.Nil(t, body["rips"])
	require.NotEmpty(t, body["xmlFevFile"])
}

func TestPreparePayload_InvalidJSONKeptRaw(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeInput(t, dir, "roto.json", "{not json")

	payload, err := PreparePayload(dir, "/rips/cargar", false)
	require.NoError(t, err)

	body := decodeBody(t, payload.Body)
	require.Equal(t, map[string]any{"raw": "{not json"}, body["rips"])
	require.Nil(t, body["xmlFevFile"])
}

func TestPreparePayload_Unwrapped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeInput(t, dir, "cuv.json", `{"codigoUnicoValidacion": "abc"}`)
	writeInput(t, dir, "cuv.xml", "<x/>")

	payload, err := PreparePayload(dir, "/api/ConsultarCUV", false)
	require.NoError(t, err)

	body := decodeBody(t, payload.Body)
	require.Equal(t, "abc", body["codigoUnicoValidacion"])
	require.NotContains(t, body, "rips")
	require.NotEmpty(t, body["xmlFevFile"])
}

func TestPreparePayload_Compressed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeInput(t, dir, "f.json", `{"a":1}`)

	payload, err := PreparePayload(dir, "/rips/cargar", true)
	require.NoError(t, err)
	require.True(t, payload.Compressed)

	zr, err := gzip.NewReader(bytes.NewReader(payload.Body))
	require.NoError(t, err)

	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	require.JSONEq(t, `{"rips":{"a":1},"xmlFevFile":null}`, string(plain))
}

func TestPreparePayload_EmptyFolder(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nueva")

	_, err := PreparePayload(dir, "/rips/cargar", false)
	require.ErrorIs(t, err, errNoFiles)

	info, statErr := os.Stat(dir)
	require.NoError(t, statErr)
	require.True(t, info.IsDir())
}
