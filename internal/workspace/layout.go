// Package workspace manages the per-project directory tree a training cycle works in.
//
// A project workspace looks like:
//
//	<root>/<project>/
//	  rawimages/<labelNo>/<imgname>   images pulled from the server
//	  dataset/                        manifests and converted training data
//	  snapshot/                       trainer checkpoints
//	  model/                          network definition and solver description
//	  caffemodel/model.caffemodel     published artifact (+ .back backup)
package workspace

import (
	"path/filepath"

	"github.com/labelhub/autotrain/internal/failure"
)

// Directory and file names inside a project workspace.
const (
	RawImagesDir   = "rawimages"
	DatasetDir     = "dataset"
	SnapshotDir    = "snapshot"
	ModelDir       = "model"
	ArtifactDir    = "caffemodel"
	ArtifactFile   = "model.caffemodel"
	BackupSuffix   = ".back"
	NetDefinition  = "train_val.prototxt"
	SolverFileName = "solver.prototxt"
)

// Layout resolves paths inside one project workspace.
type Layout struct {
	dir string
}

// CheckName rejects server-supplied names that are not a single local path element.
func CheckName(name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name || !filepath.IsLocal(name) {
		return failure.New(failure.KindFileSystem, "invalid path element %q", name)
	}
	return nil
}

// NewLayout returns the layout of project name under root.
func NewLayout(root, name string) (Layout, error) {
	if err := CheckName(name); err != nil {
		return Layout{}, err
	}
	abs, err := filepath.Abs(filepath.Join(root, name))
	if err != nil {
		return Layout{}, failure.Wrap(failure.KindFileSystem, err, "resolve workspace of %q", name)
	}
	return Layout{dir: abs}, nil
}

// Dir is the project directory.
func (l Layout) Dir() string { return l.dir }

// RawImages is the root of the per-label raw image directories.
func (l Layout) RawImages() string { return filepath.Join(l.dir, RawImagesDir) }

// LabelDir is the raw image directory of one label.
func (l Layout) LabelDir(labelNo string) string { return filepath.Join(l.RawImages(), labelNo) }

// RawImage is the path of one pulled image.
func (l Layout) RawImage(labelNo, name string) string { return filepath.Join(l.LabelDir(labelNo), name) }

// Dataset is the converted dataset directory, wiped before every session.
func (l Layout) Dataset() string { return filepath.Join(l.dir, DatasetDir) }

// TrainManifest is the training split manifest.
func (l Layout) TrainManifest() string { return filepath.Join(l.Dataset(), "train.txt") }

// ValManifest is the validation split manifest.
func (l Layout) ValManifest() string { return filepath.Join(l.Dataset(), "val.txt") }

// Snapshot is the trainer checkpoint directory, wiped before every session.
func (l Layout) Snapshot() string { return filepath.Join(l.dir, SnapshotDir) }

// NetDefinition is the network definition the evaluator is run against.
func (l Layout) NetDefinition() string { return filepath.Join(l.dir, ModelDir, NetDefinition) }

// SolverDescription is where the live solver config is written before each attempt.
func (l Layout) SolverDescription() string { return filepath.Join(l.dir, ModelDir, SolverFileName) }

// Artifact is the canonical published weights file.
func (l Layout) Artifact() string { return filepath.Join(l.dir, ArtifactDir, ArtifactFile) }

// Backup is the single backup of the published artifact.
func (l Layout) Backup() string { return l.Artifact() + BackupSuffix }

// Resolve joins a workspace-relative path, such as a solver snapshot file, onto Dir.
func (l Layout) Resolve(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(l.dir, rel)
}
