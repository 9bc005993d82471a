package fixture

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var (
	ErrNoEncoding  = errors.New("no candidate encoding could decode the fixture")
	ErrEmptyExport = errors.New("fixture export is empty")
)

// decoders maps the accepted encoding names to their decoders. UTF-8 is
// validated strictly so that a Latin-1 file falls through to the next
// candidate instead of being read with replacement characters.
var decoders = map[string]func() transform.Transformer{
	"utf-8":        func() transform.Transformer { return encoding.UTF8Validator },
	"latin-1":      func() transform.Transformer { return charmap.ISO8859_1.NewDecoder() },
	"iso-8859-1":   func() transform.Transformer { return charmap.ISO8859_1.NewDecoder() },
	"cp1252":       func() transform.Transformer { return charmap.Windows1252.NewDecoder() },
	"windows-1252": func() transform.Transformer { return charmap.Windows1252.NewDecoder() },
}

func normalizeEncoding(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "utf8":
		return "utf-8"
	case "latin1", "l1":
		return "latin-1"
	case "iso8859-1", "iso-8859-1", "iso_8859_1":
		return "iso-8859-1"
	}
	return n
}

// Decode converts data to UTF-8 trying each encoding in order and returns
// the first candidate whose text parses as a JSON array, with the name of
// the encoding that matched.
func Decode(data []byte, encodings []string) ([]json.RawMessage, string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	for _, name := range encodings {
		newDecoder, ok := decoders[normalizeEncoding(name)]
		if !ok {
			logrus.WithField("encoding", name).Warn("unknown encoding skipped")
			continue
		}

		text, _, err := transform.Bytes(newDecoder(), data)
		if err != nil {
			logrus.WithField("encoding", name).WithError(err).Debug("decode failed")
			continue
		}

		var items []json.RawMessage
		if err := json.Unmarshal(text, &items); err != nil {
			logrus.WithField("encoding", name).WithError(err).Debug("parse failed")
			continue
		}
		return items, name, nil
	}
	return nil, "", ErrNoEncoding
}

// CleanResult summarises one cleaning pass.
type CleanResult struct {
	Encoding string
	Total    int
	Kept     int
	Removed  int
}

// Cleaner removes the records Django regenerates by itself (content types
// and permissions) from an exported fixture.
type Cleaner struct {
	encodings []string
	exclude   map[string]bool
}

func NewCleaner(encodings, excludeModels []string) *Cleaner {
	exclude := make(map[string]bool, len(excludeModels))
	for _, m := range excludeModels {
		exclude[strings.ToLower(m)] = true
	}
	return &Cleaner{encodings: encodings, exclude: exclude}
}

// Filter drops the excluded records and keeps the others untouched, in
// their original order.
func (c *Cleaner) Filter(items []json.RawMessage) ([]json.RawMessage, error) {
	kept := make([]json.RawMessage, 0, len(items))
	for i, item := range items {
		var head struct {
			Model string `json:"model"`
		}
		if err := json.Unmarshal(item, &head); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if c.exclude[strings.ToLower(head.Model)] {
			continue
		}
		kept = append(kept, item)
	}
	return kept, nil
}

// Clean reads input, filters it and writes the result to output.
func (c *Cleaner) Clean(input, output string) (CleanResult, error) {
	data, err := os.ReadFile(input)
	if err != nil {
		return CleanResult{}, fmt.Errorf("failed to read %s: %w", input, err)
	}

	items, enc, err := Decode(data, c.encodings)
	if err != nil {
		return CleanResult{}, err
	}
	if len(items) == 0 {
		return CleanResult{Encoding: enc}, ErrEmptyExport
	}

	kept, err := c.Filter(items)
	if err != nil {
		return CleanResult{Encoding: enc, Total: len(items)}, err
	}

	result := CleanResult{
		Encoding: enc,
		Total:    len(items),
		Kept:     len(kept),
		Removed:  len(items) - len(kept),
	}
	if err := WriteFile(output, kept); err != nil {
		return result, err
	}
	return result, nil
}
