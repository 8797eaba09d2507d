package harness

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	CheckUploadImage = "upload_image"
	CheckCreateUser  = "create_user"

	DefaultBaseURL   = "http://localhost:5000"
	DefaultImagePath = "./images/image.jpg"
)

// Field is one text part of a multipart payload. Order is preserved.
type Field struct {
	Name  string
	Value string
}

// FilePart is one binary part of a multipart payload read from disk.
type FilePart struct {
	Field    string
	Path     string
	FileName string
}

// Check describes one request against the API under test.
type Check struct {
	Name   string
	Label  string
	Method string
	Path   string
	Fields []Field
	Files  []FilePart
	// Expect lists gjson paths that must exist in a successful body.
	Expect []string
}

// Config is the runtime shape of the harness.
type Config struct {
	BaseURL string
	// Timeout bounds each request; zero means no timeout.
	Timeout time.Duration
	Checks  []Check
}

// DefaultConfig targets a local API with the upload and create-user checks.
func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Checks:  DefaultChecks(DefaultImagePath),
	}
}

// DefaultChecks returns the upload and user-creation checks in run order.
func DefaultChecks(imagePath string) []Check {
	return []Check{
		UploadImageCheck(imagePath),
		CreateUserCheck(),
	}
}

func UploadImageCheck(imagePath string) Check {
	return Check{
		Name:   CheckUploadImage,
		Label:  "Upload",
		Method: http.MethodPost,
		Path:   "/upload/image",
		Fields: []Field{
			{Name: "name", Value: "John Doe"},
			{Name: "email", Value: "john@example.com"},
		},
		Files: []FilePart{
			{Field: "image", Path: imagePath},
		},
	}
}

func CreateUserCheck() Check {
	return Check{
		Name:   CheckCreateUser,
		Label:  "Create User",
		Method: http.MethodPost,
		Path:   "/users/create",
		Fields: []Field{
			{Name: "name", Value: "Jane Doe"},
			{Name: "email", Value: "jane@example.com"},
		},
	}
}

// DisplayLabel is the operator-facing name of the check.
func (c Check) DisplayLabel() string {
	if label := strings.TrimSpace(c.Label); label != "" {
		return label
	}
	return c.Name
}

func (c Check) method() string {
	if m := strings.TrimSpace(c.Method); m != "" {
		return strings.ToUpper(m)
	}
	return http.MethodPost
}

// Validate reports structural problems before any request is sent.
func (c Check) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: check name is required", ErrInvalidCheck)
	}
	if strings.TrimSpace(c.Path) == "" {
		return fmt.Errorf("%w: check %q missing path", ErrInvalidCheck, c.Name)
	}
	for i, f := range c.Fields {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("%w: check %q field[%d] missing name", ErrInvalidCheck, c.Name, i)
		}
	}
	for i, f := range c.Files {
		if strings.TrimSpace(f.Field) == "" {
			return fmt.Errorf("%w: check %q file[%d] missing field", ErrInvalidCheck, c.Name, i)
		}
		if strings.TrimSpace(f.Path) == "" {
			return fmt.Errorf("%w: check %q file[%d] missing path", ErrInvalidCheck, c.Name, i)
		}
	}
	return nil
}

// WithImage points every "image" file part at path.
func WithImage(checks []Check, path string) []Check {
	out := make([]Check, len(checks))
	for i, c := range checks {
		files := make([]FilePart, len(c.Files))
		copy(files, c.Files)
		for j := range files {
			if files[j].Field == "image" {
				files[j].Path = path
			}
		}
		c.Files = files
		out[i] = c
	}
	return out
}
