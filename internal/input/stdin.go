package input

import (
	"io"
	"os"
)

// StdinReader slurps the whole document from stdin. Match spans are
// absolute byte offsets into the full text, so the input cannot be
// processed as a stream; it is read to EOF before matching starts.
type StdinReader struct{}

// NewStdinReader creates a new StdinReader.
func NewStdinReader() *StdinReader {
	return &StdinReader{}
}

func (r *StdinReader) Read(_ string) (ReadResult, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return ReadResult{}, err
	}
	return ReadResult{
		Data:   data,
		Closer: noopCloser,
	}, nil
}
