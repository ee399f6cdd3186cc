package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/poiesic/tagger/core"
	"github.com/poiesic/tagger/storage"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// frontmatter carries template metadata at the top of the file.
type frontmatter struct {
	Version   int       `yaml:"version"`
	Score     float64   `yaml:"score"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

// TemplateStore keeps the instruction template in a plain text file so it
// can be read and edited by hand between runs. Metadata goes in a YAML
// frontmatter block; a file without one is read as version 0.
type TemplateStore struct {
	fs   afero.Fs
	path string
	mu   sync.Mutex
}

var _ storage.TemplateRepository = (*TemplateStore)(nil)

// NewTemplateStore creates a store backed by path on fs.
func NewTemplateStore(fs afero.Fs, path string) *TemplateStore {
	return &TemplateStore{fs: fs, path: path}
}

// Path returns the template file location.
func (s *TemplateStore) Path() string {
	return s.path
}

// LoadTemplate reads the template file. Returns nil, nil when the file does not exist.
func (s *TemplateStore) LoadTemplate(ctx context.Context) (*core.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return DecodeTemplate(data)
}

// SaveTemplate atomically replaces the template file.
func (s *TemplateStore) SaveTemplate(ctx context.Context, tmpl *core.Template) error {
	if err := core.ValidateTemplate(tmpl, ""); err != nil {
		return err
	}
	if tmpl.UpdatedAt.IsZero() {
		tmpl.UpdatedAt = time.Now().UTC()
	}
	data, err := EncodeTemplate(tmpl)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return WriteFileAtomic(s.fs, s.path, data)
}

// EncodeTemplate renders a template as frontmatter followed by its text.
func EncodeTemplate(tmpl *core.Template) ([]byte, error) {
	meta, err := yaml.Marshal(frontmatter{
		Version:   tmpl.Version,
		Score:     tmpl.Score,
		UpdatedAt: tmpl.UpdatedAt.UTC(),
	})
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(meta)
	buf.WriteString("---\n")
	buf.WriteString(tmpl.Text)
	return buf.Bytes(), nil
}

// DecodeTemplate parses the output of EncodeTemplate or a bare template text.
func DecodeTemplate(content []byte) (*core.Template, error) {
	if !bytes.HasPrefix(content, []byte("---\n")) {
		return &core.Template{Text: string(content)}, nil
	}

	rest := content[4:]
	endIdx := bytes.Index(rest, []byte("\n---"))
	if endIdx == -1 {
		return nil, fmt.Errorf("%w: unterminated frontmatter", storage.ErrInvalidTemplateFile)
	}

	var meta frontmatter
	if err := yaml.Unmarshal(rest[:endIdx], &meta); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrInvalidTemplateFile, err)
	}
	body := bytes.TrimLeft(rest[endIdx+4:], "\n")

	return &core.Template{
		Text:      string(body),
		Version:   meta.Version,
		Score:     meta.Score,
		UpdatedAt: meta.UpdatedAt,
	}, nil
}
