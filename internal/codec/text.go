package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

const textHeader = "# reflectdb text database\n"

func encodeText(doc *document) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(textHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("yaml encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("yaml encode: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeText(data []byte) (*document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty text database")
		}
		return nil, fmt.Errorf("yaml decode: %w", err)
	}
	if doc.Version == 0 {
		return nil, errors.New("text database has no version")
	}
	return &doc, nil
}
