package harness

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
)

// encodeMultipart renders the check's fields and files into one buffered
// body. Each file is opened, copied and closed before the request is built.
func encodeMultipart(check Check) (string, *bytes.Buffer, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for _, file := range check.Files {
		if err := writeFilePart(writer, file); err != nil {
			return "", nil, err
		}
	}
	for _, field := range check.Fields {
		if err := writer.WriteField(field.Name, field.Value); err != nil {
			return "", nil, fmt.Errorf("write field %s: %w", field.Name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", nil, err
	}
	return writer.FormDataContentType(), body, nil
}

func writeFilePart(writer *multipart.Writer, part FilePart) error {
	src, err := os.Open(part.Path)
	if err != nil {
		return fmt.Errorf("open %s for field %s: %w", part.Path, part.Field, err)
	}
	defer src.Close()

	name := strings.TrimSpace(part.FileName)
	if name == "" {
		name = filepath.Base(part.Path)
	}
	dst, err := writer.CreateFormFile(part.Field, name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copy %s: %w", part.Path, err)
	}
	return nil
}
