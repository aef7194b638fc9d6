// Package model owns the face classifier and its label map.
package model

import (
	"image"
	"log/slog"
	"sync"

	"github.com/abihf/smartmirror/vision"
	"github.com/pkg/errors"
)

// Classifier is a trainable face classifier. Predict returns a non-negative
// distance; lower means more similar.
type Classifier interface {
	Train(images []*image.Gray, labels []int) error
	Predict(img *image.Gray) (label int, confidence float64, err error)
	Save(path string) error
	Load(path string) error
	Close() error
}

type Factory func() Classifier

// Model is the loaded classifier plus labels. Every image going in is scaled
// to the canonical size first.
type Model struct {
	store *Store
	newFn Factory
	size  image.Point
	log   *slog.Logger

	mu     sync.Mutex
	clf    Classifier
	labels LabelMap
}

func New(store *Store, newFn Factory, size image.Point, log *slog.Logger) *Model {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Model{store: store, newFn: newFn, size: size, log: log}
}

// Load replaces the in-memory model with the persisted one.
func (m *Model) Load() error {
	clf := m.newFn()
	labels, err := m.store.Load(clf)
	if err != nil {
		clf.Close()
		return err
	}
	m.swap(clf, labels)
	m.log.Info("Model loaded", "labels", labels.Len())
	return nil
}

// Train fits a new classifier on set, persists it and makes it active. On
// error the previous model, in memory and on disk, is untouched.
func (m *Model) Train(set TrainingSet) error {
	if len(set.Samples) == 0 {
		return errors.WithStack(vision.ErrEmptyDataset)
	}

	images := make([]*image.Gray, 0, len(set.Samples))
	labels := make([]int, 0, len(set.Samples))
	for i, s := range set.Samples {
		if s.Image == nil || s.Image.Bounds().Empty() {
			m.log.Warn("Skipping empty training sample", "index", i)
			continue
		}
		if _, ok := set.Labels.Name(s.Label); !ok {
			m.log.Warn("Skipping sample with unknown label", "index", i, "label", s.Label)
			continue
		}
		images = append(images, vision.Resize(s.Image, m.size.X, m.size.Y))
		labels = append(labels, s.Label)
	}
	if len(images) == 0 {
		return errors.Wrap(vision.ErrEmptyDataset, "no usable samples")
	}

	clf := m.newFn()
	if err := clf.Train(images, labels); err != nil {
		clf.Close()
		return errors.Wrap(err, "Can not train classifier")
	}
	if err := m.store.Save(clf, set.Labels); err != nil {
		clf.Close()
		return err
	}
	m.swap(clf, set.Labels)
	m.log.Info("Model trained", "samples", len(images), "labels", set.Labels.Len())
	return nil
}

// Predict classifies a face region.
func (m *Model) Predict(roi *image.Gray) (int, float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.clf == nil {
		return 0, 0, errors.WithStack(vision.ErrModelNotLoaded)
	}
	if roi == nil || roi.Bounds().Empty() {
		return 0, 0, errors.Wrap(vision.ErrPrediction, "empty region")
	}
	label, conf, err := m.clf.Predict(vision.Resize(roi, m.size.X, m.size.Y))
	if err != nil {
		return 0, 0, errors.Wrap(vision.ErrPrediction, err.Error())
	}
	if label < 0 {
		return 0, 0, errors.Wrapf(vision.ErrPrediction, "classifier returned label %d", label)
	}
	return label, conf, nil
}

func (m *Model) Name(label int) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.labels.Name(label)
}

func (m *Model) Labels() LabelMap {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.labels
}

func (m *Model) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clf != nil
}

func (m *Model) swap(clf Classifier, labels LabelMap) {
	m.mu.Lock()
	old := m.clf
	m.clf, m.labels = clf, labels
	m.mu.Unlock()
	if old != nil {
		old.Close()
	}
}

func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clf == nil {
		return nil
	}
	err := m.clf.Close()
	m.clf = nil
	m.labels = LabelMap{}
	return err
}
