package model

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/abihf/smartmirror/vision"
	"github.com/pkg/errors"
)

const (
	ClassifierFile = "trainer.yml"
	LabelsFile     = "labels.json"
	currentLink    = "current"
	genPrefix      = "gen-"
)

// Store persists a classifier and its label map as one unit. Each save goes
// into a fresh generation directory that is published by atomically
// replacing the "current" symlink, so a reader resolving "current" always
// sees a matching pair.
type Store struct {
	dir string
	log *slog.Logger
}

func NewStore(dir string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Store{dir: dir, log: log}
}

func (s *Store) Dir() string { return s.dir }

// Save writes c and labels as a new generation and makes it current.
func (s *Store) Save(c Classifier, labels LabelMap) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.Wrap(vision.ErrPersistence, err.Error())
	}
	previous, _ := os.Readlink(filepath.Join(s.dir, currentLink))

	gen, err := os.MkdirTemp(s.dir, genPrefix)
	if err != nil {
		return errors.Wrapf(vision.ErrPersistence, "create generation: %v", err)
	}
	if err := s.writePair(gen, c, labels); err != nil {
		os.RemoveAll(gen)
		return err
	}

	link := filepath.Join(s.dir, "."+currentLink+"-"+filepath.Base(gen))
	if err := os.Symlink(filepath.Base(gen), link); err != nil {
		os.RemoveAll(gen)
		return errors.Wrapf(vision.ErrPersistence, "link generation: %v", err)
	}
	if err := os.Rename(link, filepath.Join(s.dir, currentLink)); err != nil {
		os.Remove(link)
		os.RemoveAll(gen)
		return errors.Wrapf(vision.ErrPersistence, "publish generation: %v", err)
	}
	if err := syncPath(s.dir); err != nil {
		s.log.Warn("Can not sync model directory", "error", err)
	}
	s.log.Info("Model saved", "generation", filepath.Base(gen), "labels", labels.Len())

	s.prune(filepath.Base(gen), previous)
	return nil
}

func (s *Store) writePair(gen string, c Classifier, labels LabelMap) error {
	clfPath := filepath.Join(gen, ClassifierFile)
	if err := c.Save(clfPath); err != nil {
		return errors.Wrapf(vision.ErrPersistence, "save classifier: %v", err)
	}
	if err := syncPath(clfPath); err != nil {
		return errors.Wrapf(vision.ErrPersistence, "sync classifier: %v", err)
	}
	b, err := json.MarshalIndent(labels, "", "  ")
	if err != nil {
		return errors.Wrapf(vision.ErrPersistence, "encode labels: %v", err)
	}
	f, err := os.Create(filepath.Join(gen, LabelsFile))
	if err != nil {
		return errors.Wrapf(vision.ErrPersistence, "save labels: %v", err)
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		return errors.Wrapf(vision.ErrPersistence, "save labels: %v", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errors.Wrapf(vision.ErrPersistence, "sync labels: %v", err)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(vision.ErrPersistence, "save labels: %v", err)
	}
	if err := syncPath(gen); err != nil {
		return errors.Wrapf(vision.ErrPersistence, "sync generation: %v", err)
	}
	return nil
}

// syncPath flushes a file or directory to disk.
func syncPath(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

// prune removes generations other than the current and the previous one.
func (s *Store) prune(current, previous string) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || !strings.HasPrefix(name, genPrefix) || name == current || name == previous {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.dir, name)); err != nil {
			s.log.Warn("Can not remove old model generation", "generation", name, "error", err)
		}
	}
}

// Generations lists the generation directories on disk.
func (s *Store) Generations() []string {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil
	}
	var gens []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), genPrefix) {
			gens = append(gens, e.Name())
		}
	}
	sort.Strings(gens)
	return gens
}

func (s *Store) current() (string, error) {
	target, err := os.Readlink(filepath.Join(s.dir, currentLink))
	if err != nil {
		return "", errors.Wrapf(vision.ErrModelNotFound, "no current model in %s", s.dir)
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(s.dir, target)
	}
	for _, name := range []string{ClassifierFile, LabelsFile} {
		if _, err := os.Stat(filepath.Join(target, name)); err != nil {
			return "", errors.Wrapf(vision.ErrModelNotFound, "%s missing in %s", name, target)
		}
	}
	return target, nil
}

// Exists reports whether a complete model pair is published.
func (s *Store) Exists() bool {
	_, err := s.current()
	return err == nil
}

// Load reads the current pair into c and returns its label map.
func (s *Store) Load(c Classifier) (LabelMap, error) {
	gen, err := s.current()
	if err != nil {
		return LabelMap{}, err
	}

	b, err := os.ReadFile(filepath.Join(gen, LabelsFile))
	if err != nil {
		return LabelMap{}, errors.Wrapf(vision.ErrModelNotFound, "read labels: %v", err)
	}
	var labels LabelMap
	if err := json.Unmarshal(b, &labels); err != nil {
		return LabelMap{}, errors.Wrap(err, "Can not decode label map")
	}
	if err := c.Load(filepath.Join(gen, ClassifierFile)); err != nil {
		return LabelMap{}, errors.Wrap(err, "Can not load classifier")
	}
	return labels, nil
}
