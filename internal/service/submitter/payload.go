package submitter

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	jsonExtension = ".json"
	xmlExtension  = ".xml"

	// rawEndpointMarker selects endpoints that take the JSON document unwrapped.
	rawEndpointMarker = "consultarcuv"

	dirPermissions = 0o755
)

var (
	errNoFiles = errors.New("no .json or .xml file found")

	utf8BOM = []byte("\ufeff")
)

// Payload is the prepared request body of one API.
type Payload struct {
	// Body is the encoded request, gzipped when Compressed.
	Body []byte
	// Compressed marks a gzip body.
	Compressed bool
	// BaseName is the input file name without extension, used for response files.
	BaseName string
}

// wrappedPayload keeps both keys present, null when a file is missing.
type wrappedPayload struct {
	Rips       json.RawMessage `json:"rips"`
	XMLFevFile *string         `json:"xmlFevFile"`
}

// PreparePayload reads the first .json and .xml files in dir (by name) and
// builds the request body for endpoint. The folder is created when missing.
func PreparePayload(dir, endpoint string, compress bool) (*Payload, error) {
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	jsonName, xmlName, err := pickInputs(dir)
	if err != nil {
		return nil, err
	}

	var (
		document json.RawMessage
		xmlB64   *string
	)

	if jsonName != "" {
		if document, err = readDocument(filepath.Join(dir, jsonName)); err != nil {
			return nil, err
		}
	}

	if xmlName != "" {
		data, readErr := os.ReadFile(filepath.Join(dir, xmlName))
		if readErr != nil {
			return nil, fmt.Errorf("read %s: %w", xmlName, readErr)
		}

		encoded := base64.StdEncoding.EncodeToString(data)
		xmlB64 = &encoded
	}

	body, err := encodeBody(endpoint, document, xmlB64)
	if err != nil {
		return nil, err
	}

	payload := &Payload{
		Body:     body,
		BaseName: baseName(jsonName, xmlName),
	}

	if compress {
		if payload.Body, err = gzipBytes(body); err != nil {
			return nil, err
		}

		payload.Compressed = true
	}

	return payload, nil
}

func pickInputs(dir string) (string, string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", "", fmt.Errorf("list %s: %w", dir, err)
	}

	var jsonName, xmlName string

	// ReadDir sorts by file name.
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case jsonExtension:
			if jsonName == "" {
				jsonName = entry.Name()
			}
		case xmlExtension:
			if xmlName == "" {
				xmlName = entry.Name()
			}
		}
	}

	if jsonName == "" && xmlName == "" {
		return "", "", fmt.Errorf("%s: %w", dir, errNoFiles)
	}

	return jsonName, xmlName, nil
}

// readDocument returns the file as JSON. Text that does not parse is kept as
// {"raw": "<text>"}.
func readDocument(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}

	data = bytes.TrimSpace(bytes.TrimPrefix(data, utf8BOM))

	if json.Valid(data) {
		return json.RawMessage(data), nil
	}

	raw, err := json.Marshal(map[string]string{"raw": string(data)})
	if err != nil {
		return nil, fmt.Errorf("wrap %s: %w", filepath.Base(path), err)
	}

	return raw, nil
}

func encodeBody(endpoint string, document json.RawMessage, xmlB64 *string) ([]byte, error) {
	if document != nil && strings.Contains(strings.ToLower(endpoint), rawEndpointMarker) {
		return unwrappedBody(document, xmlB64)
	}

	body, err := json.Marshal(wrappedPayload{Rips: document, XMLFevFile: xmlB64})
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	return body, nil
}

// unwrappedBody sends the document itself, adding xmlFevFile when it is an object.
func unwrappedBody(document json.RawMessage, xmlB64 *string) ([]byte, error) {
	if xmlB64 == nil {
		return document, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(document, &fields); err != nil || fields == nil {
		return document, nil //nolint:nilerr // Non-object documents are sent as they are.
	}

	encoded, err := json.Marshal(*xmlB64)
	if err != nil {
		return nil, fmt.Errorf("encode xml: %w", err)
	}

	fields["xmlFevFile"] = encoded

	body, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	return body, nil
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	zw := gzip.NewWriter(&buf)

	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("compress payload: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress payload: %w", err)
	}

	return buf.Bytes(), nil
}

func baseName(jsonName, xmlName string) string {
	name := jsonName
	if name == "" {
		name = xmlName
	}

	return strings.TrimSuffix(name, filepath.Ext(name))
}
