// Package results reads and writes the results directory shared by feed
// runs and the dashboard.
//
// Layout below the root:
//
//	models/<model>.png                 architecture images
//	logs/janggu.log                    log of CLI runs
//	evaluation/<model>/**/*.{png,tsv,ply}
//	runs/<run_id>.json                 feed run records
//	memory/<file>.json                 memory monitor samples
package results

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

const (
	ModelsDir     = "models"
	LogsDir       = "logs"
	EvaluationDir = "evaluation"
	RunsDir       = "runs"
	MemoryDir     = "memory"

	LogFile = "janggu.log"
)

var (
	ErrUnknownModel = errors.New("unknown model")
	ErrNoLog        = errors.New("no log file")
)

var figureExtensions = []string{".png", ".tsv", ".ply"}

// DefaultRoot is ~/janggu_results, or ./janggu_results when the home
// directory cannot be determined.
func DefaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "janggu_results"
	}
	return filepath.Join(home, "janggu_results")
}

type Dir struct {
	root string
}

func New(root string) *Dir {
	return &Dir{root: root}
}

func (d *Dir) Root() string { return d.root }

func (d *Dir) Path(elem ...string) string {
	return filepath.Join(append([]string{d.root}, elem...)...)
}

// Init creates the root and its subdirectories.
func (d *Dir) Init() error {
	for _, sub := range []string{ModelsDir, LogsDir, EvaluationDir, RunsDir, MemoryDir} {
		if err := os.MkdirAll(d.Path(sub), 0o755); err != nil {
			return errors.Wrapf(err, "create %s", sub)
		}
	}
	return nil
}

type Model struct {
	Name string `json:"name"`
	// Image is relative to the root, with forward slashes.
	Image string `json:"image"`
}

// Models lists the models with an architecture image, sorted by name.
func (d *Dir) Models() ([]Model, error) {
	files, err := filepath.Glob(d.Path(ModelsDir, "*.png"))
	if err != nil {
		return nil, errors.Wrap(err, "list models")
	}
	slices.Sort(files)

	models := make([]Model, 0, len(files))
	for _, f := range files {
		name := strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
		models = append(models, Model{
			Name:  name,
			Image: ModelsDir + "/" + filepath.Base(f),
		})
	}
	return models, nil
}

// Figures lists the evaluation files of a model relative to its evaluation
// directory, sorted.
func (d *Dir) Figures(model string) ([]string, error) {
	if !validName(model) {
		return nil, errors.Wrapf(ErrUnknownModel, "%q", model)
	}
	root := d.Path(EvaluationDir, model)
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, errors.Wrapf(ErrUnknownModel, "%q", model)
	}

	var figures []string
	err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !slices.Contains(figureExtensions, filepath.Ext(path)) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		figures = append(figures, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walk evaluation of %s", model)
	}
	slices.Sort(figures)
	return figures, nil
}

// FigurePath resolves a file returned by Figures to a path on disk.
func (d *Dir) FigurePath(model, figure string) (string, error) {
	if !validName(model) {
		return "", errors.Wrapf(ErrUnknownModel, "%q", model)
	}
	clean := filepath.Clean(filepath.FromSlash(figure))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", errors.Errorf("invalid figure path %q", figure)
	}
	return d.Path(EvaluationDir, model, clean), nil
}

func (d *Dir) Log() ([]byte, error) {
	content, err := os.ReadFile(d.Path(LogsDir, LogFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoLog
	}
	if err != nil {
		return nil, errors.Wrap(err, "read log")
	}
	return content, nil
}

// LogWriter opens the log file for appending, creating it if needed.
func (d *Dir) LogWriter() (io.WriteCloser, error) {
	if err := os.MkdirAll(d.Path(LogsDir), 0o755); err != nil {
		return nil, errors.Wrap(err, "create log directory")
	}
	f, err := os.OpenFile(d.Path(LogsDir, LogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "open log")
	}
	return f, nil
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}
