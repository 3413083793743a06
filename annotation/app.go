// Package annotation ties the registries, codecs and editing engine together into a
// workspace a front end (the CLI, or an interactive editor) drives.
package annotation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"

	"github.com/go-git/go-billy/v6"
	"github.com/go-git/go-billy/v6/util"

	"github.com/lewtec/boxlabeler/internal/codec/labelimg"
	"github.com/lewtec/boxlabeler/internal/codec/record"
	"github.com/lewtec/boxlabeler/internal/domain"
	"github.com/lewtec/boxlabeler/internal/imagefile"
	"github.com/lewtec/boxlabeler/internal/registry"
)

// ErrNoImages is returned by operations that need a scanned image directory.
var ErrNoImages = errors.New("no images loaded")

// Workspace holds the two registries of one labeling session. Paths are resolved on FS.
type Workspace struct {
	FS          billy.Filesystem
	Config      *Config
	Logger      *slog.Logger
	Paths       *registry.ImagePathRegistry
	Annotations *registry.AnnotationRegistry

	prober *imagefile.Prober
}

// NewWorkspace returns an empty workspace. A nil config means DefaultConfig and a nil
// logger means slog.Default.
func NewWorkspace(fs billy.Filesystem, config *Config, logger *slog.Logger) *Workspace {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Workspace{
		FS:          fs,
		Config:      config,
		Logger:      logger,
		Paths:       registry.NewImagePathRegistry(fs),
		Annotations: registry.NewAnnotationRegistry(),
		prober:      imagefile.NewProber(fs),
	}
}

// User is the configured human author.
func (w *Workspace) User() domain.UserID {
	return domain.NewUser(w.Config.User.Name, domain.UserHuman)
}

func (w *Workspace) requireImages() error {
	if w.Paths.Len() == 0 {
		return ErrNoImages
	}
	return nil
}

// LoadImages scans dir and replaces both registries: one empty annotation per image.
func (w *Workspace) LoadImages(dir string) error {
	paths, err := registry.ScanFilesystem(w.FS, dir, w.Config.Images.Extension)
	if err != nil {
		return err
	}
	annotations, err := registry.MakeEmpty(paths, w.prober)
	if err != nil {
		return fmt.Errorf("while loading images of %s: %w", dir, err)
	}
	w.Paths, w.Annotations = paths, annotations
	w.Logger.Info("images loaded", "dir", dir, "count", paths.Len())
	return nil
}

// ImportResult lists what an XML import did.
type ImportResult struct {
	Updated  []domain.ImageID
	Warnings []string
}

// ImportXML replaces the annotation of every image that has a labelImg file in dir. Files
// naming an image outside the workspace are skipped and reported as warnings.
func (w *Workspace) ImportXML(dir string) (*ImportResult, error) {
	if err := w.requireImages(); err != nil {
		return nil, err
	}
	files, err := util.Glob(w.FS, w.FS.Join(dir, "*.xml"))
	if err != nil {
		return nil, fmt.Errorf("while listing %s: %w", dir, err)
	}
	slices.Sort(files)

	// every file is parsed before the registry changes, a broken file leaves it untouched
	user := w.User()
	res := &ImportResult{}
	var staged []*domain.Annotation
	for _, path := range files {
		f, err := labelimg.ParseFile(w.FS, path)
		if err != nil {
			return nil, err
		}
		if !w.Paths.Contains(string(f.ImageID)) || !w.Annotations.Contains(f.ImageID) {
			msg := fmt.Sprintf("%s: image %q is not part of the workspace", path, f.ImageID)
			w.Logger.Warn("skipping annotation file", "file", path, "id", f.ImageID)
			res.Warnings = append(res.Warnings, msg)
			continue
		}
		staged = append(staged, f.Annotation(path, user))
	}
	for _, a := range staged {
		if err := w.Annotations.Update(a.ImageID, a); err != nil {
			return nil, err
		}
		res.Updated = append(res.Updated, a.ImageID)
	}
	w.Logger.Info("xml imported", "dir", dir, "updated", len(res.Updated), "skipped", len(res.Warnings))
	return res, nil
}

// ImportJSON merges a saved annotation registry into the workspace. Only images already in
// the workspace are updated.
func (w *Workspace) ImportJSON(path string) (registry.MergeResult, error) {
	data, err := imagefile.ReadFile(w.FS, path)
	if err != nil {
		return registry.MergeResult{}, err
	}
	src := registry.NewAnnotationRegistry()
	if err := json.Unmarshal(data, src); err != nil {
		return registry.MergeResult{}, fmt.Errorf("while loading %s: %w", path, err)
	}
	return w.merge(path, src), nil
}

// ImportRecords merges the annotations of a record file into the workspace. Inference
// records only keep detections scoring above the configured threshold.
func (w *Workspace) ImportRecords(path string, mode domain.MachineLearningMode) (registry.MergeResult, error) {
	src, err := registry.FromRecords(w.FS, path, record.DecodeOptions{
		Mode:      mode,
		Threshold: w.Config.Import.ConfidenceThreshold,
		Labels:    w.Config.Labels,
	})
	if err != nil {
		return registry.MergeResult{}, err
	}
	return w.merge(path, src), nil
}

func (w *Workspace) merge(path string, src *registry.AnnotationRegistry) registry.MergeResult {
	res := registry.MergeIntersection(w.Annotations, src)
	for _, id := range res.Discarded {
		w.Logger.Warn("discarding annotation of unknown image", "file", path, "id", id)
	}
	w.Logger.Info("annotations imported", "file", path, "updated", len(res.Updated), "discarded", len(res.Discarded))
	return res
}

// ExportJSON writes the annotation registry as tagged JSON.
func (w *Workspace) ExportJSON(path string) error {
	data, err := json.MarshalIndent(w.Annotations, "", "  ")
	if err != nil {
		return fmt.Errorf("while encoding annotations: %w", err)
	}
	return imagefile.WriteFile(w.FS, path, data)
}

// ExportResult lists what a record export did.
type ExportResult struct {
	Written []domain.ImageID
	Skipped []domain.ImageID
}

// ExportRecords writes one training example per annotation, in registry order. An
// annotation without exportable boxes fails the whole export with domain.ErrEmptyExportSet
// unless export.skip_empty is set. Nothing is written on failure.
func (w *Workspace) ExportRecords(path string) (*ExportResult, error) {
	if err := w.requireImages(); err != nil {
		return nil, err
	}
	res := &ExportResult{}
	err := imagefile.WriteAtomic(w.FS, path, func(out io.Writer) error {
		rw := record.NewWriter(out, record.Compressed(path))
		for _, a := range w.Annotations.Annotations() {
			if len(a.Exportable()) == 0 {
				if !w.Config.Export.SkipEmpty {
					return fmt.Errorf("while exporting %s: %w", a.ImageID, domain.ErrEmptyExportSet)
				}
				w.Logger.Warn("skipping image without exportable boxes", "id", a.ImageID)
				res.Skipped = append(res.Skipped, a.ImageID)
				continue
			}
			imagePath, err := w.Paths.FilenameByID(a.ImageID)
			if err != nil {
				return fmt.Errorf("while exporting %s: %w", a.ImageID, err)
			}
			img, err := imagefile.Reencode(w.FS, imagePath, w.Config.Export.JPEGQuality)
			if err != nil {
				return err
			}
			e, err := record.EncodeTrainingExample(a, img, filepath.Base(imagePath), w.Config.Labels)
			if err != nil {
				return err
			}
			if err := rw.WriteExample(e); err != nil {
				return fmt.Errorf("while writing %s: %w", a.ImageID, err)
			}
			res.Written = append(res.Written, a.ImageID)
		}
		return rw.Close()
	})
	if err != nil {
		return nil, err
	}
	w.Logger.Info("records exported", "file", path, "written", len(res.Written), "skipped", len(res.Skipped))
	return res, nil
}

// UpdateFromEdits accepts every box of id on behalf of user and writes them back.
func (w *Workspace) UpdateFromEdits(id domain.ImageID, user domain.UserID) error {
	a, err := w.Annotations.Get(id)
	if err != nil {
		return err
	}
	a.MarkAllCorrect(user)
	return w.Annotations.Update(id, domain.AnnotationPatch{Boxes: a.Boxes})
}

// document is the on-disk form of a workspace.
type document struct {
	Version     domain.SchemaVersion          `json:"version"`
	Images      *registry.ImagePathRegistry   `json:"images"`
	Annotations *registry.AnnotationRegistry `json:"annotations"`
}

// Save writes both registries to path.
func (w *Workspace) Save(path string) error {
	data, err := json.MarshalIndent(document{
		Version:     domain.CurrentVersion,
		Images:      w.Paths,
		Annotations: w.Annotations,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("while encoding workspace: %w", err)
	}
	if err := imagefile.WriteFile(w.FS, path, data); err != nil {
		return err
	}
	w.Logger.Debug("workspace saved", "file", path, "images", w.Paths.Len())
	return nil
}

// OpenWorkspace loads a workspace written by Save.
func OpenWorkspace(fs billy.Filesystem, path string, config *Config, logger *slog.Logger) (*Workspace, error) {
	w := NewWorkspace(fs, config, logger)
	data, err := imagefile.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	doc := document{
		Images:      registry.NewImagePathRegistry(fs),
		Annotations: registry.NewAnnotationRegistry(),
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("while loading workspace %s: %w", path, err)
	}
	if doc.Version != domain.CurrentVersion {
		w.Logger.Warn("workspace written by another schema version", "file", path, "version", doc.Version.String())
	}
	w.Paths, w.Annotations = doc.Images, doc.Annotations
	return w, nil
}
