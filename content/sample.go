package content

import (
	_ "embed"

	"go.uber.org/zap"
)

//go:embed sample.yaml
var sampleYAML []byte

// SampleSource is Source of the built in book.
const SampleSource = "sample"

// Sample returns built in two chapter story with styled headings and
// phrases.
func Sample() (*Book, error) {
	book, err := parseYAML(sampleYAML, zap.NewNop())
	if err != nil {
		return nil, err
	}
	book.Source = SampleSource
	return book, nil
}
