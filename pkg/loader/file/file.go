package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"unicode/utf8"
)

// FileLoader reads text from the local filesystem. The reference "-" reads
// Stdin instead.
type FileLoader struct {
	Stdin io.Reader
}

func NewFileLoader(stdin io.Reader) *FileLoader {
	return &FileLoader{Stdin: stdin}
}

func (l *FileLoader) LoadText(ctx context.Context, ref string) (string, error) {
	var (
		data []byte
		err  error
	)
	if ref == "-" {
		if l.Stdin == nil {
			return "", fmt.Errorf("no stdin to read from")
		}
		data, err = io.ReadAll(l.Stdin)
	} else {
		data, err = os.ReadFile(ref)
	}
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%s is not UTF-8 text", ref)
	}
	return string(data), nil
}
