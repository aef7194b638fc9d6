// Package dataset stores enrollment face samples, one directory per person.
//
//	<root>/<name>/<name>_<index>.jpg
package dataset

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/abihf/smartmirror/model"
	"github.com/abihf/smartmirror/names"
	"github.com/abihf/smartmirror/vision"
	"github.com/pkg/errors"
)

type Dataset struct {
	root string
	log  *slog.Logger
}

func New(root string, log *slog.Logger) *Dataset {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Dataset{root: root, log: log}
}

func (d *Dataset) Root() string { return d.root }

// Exists reports whether name already has a sample directory.
func (d *Dataset) Exists(name string) bool {
	st, err := os.Stat(filepath.Join(d.root, name))
	return err == nil && st.IsDir()
}

// People lists the person directories in sorted order.
func (d *Dataset) People() ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "Can not read dataset")
	}
	var people []string
	for _, e := range entries {
		if e.IsDir() && e.Name()[0] != '.' {
			people = append(people, e.Name())
		}
	}
	sort.Strings(people)
	return people, nil
}

// Taken reports whether a person directory with an equivalent name exists.
func (d *Dataset) Taken(_ context.Context, name string) (bool, error) {
	people, err := d.People()
	if err != nil {
		return false, err
	}
	key := names.Key(name)
	for _, p := range people {
		if names.Key(p) == key {
			return true, nil
		}
	}
	return false, nil
}

func SampleName(name string, index int) string {
	return fmt.Sprintf("%s_%d.jpg", name, index)
}

// SaveSample writes one face as a grayscale JPEG. The file appears
// atomically under its final name.
func (d *Dataset) SaveSample(name string, index int, face *image.Gray) error {
	dir := filepath.Join(d.root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(vision.ErrPersistence, "create %s: %v", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".sample-*")
	if err != nil {
		return errors.Wrapf(vision.ErrPersistence, "create sample: %v", err)
	}
	defer os.Remove(tmp.Name())

	if err := jpeg.Encode(tmp, face, &jpeg.Options{Quality: 95}); err != nil {
		tmp.Close()
		return errors.Wrapf(vision.ErrPersistence, "encode sample: %v", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(vision.ErrPersistence, "write sample: %v", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, SampleName(name, index))); err != nil {
		return errors.Wrapf(vision.ErrPersistence, "publish sample: %v", err)
	}
	return nil
}

func readGray(path string) (*image.Gray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return vision.Gray(img), nil
}

// Load reads every sample. Persons are labeled densely in sorted directory
// order; a directory without a readable sample gets no label. Unreadable
// files are logged and skipped.
func (d *Dataset) Load() (model.TrainingSet, error) {
	people, err := d.People()
	if err != nil {
		return model.TrainingSet{}, err
	}

	var set model.TrainingSet
	var names []string
	for _, person := range people {
		files, err := os.ReadDir(filepath.Join(d.root, person))
		if err != nil {
			d.log.Warn("Can not read person directory", "person", person, "error", err)
			continue
		}

		label := len(names)
		count := 0
		for _, f := range files {
			if f.IsDir() || f.Name()[0] == '.' {
				continue
			}
			path := filepath.Join(d.root, person, f.Name())
			img, err := readGray(path)
			if err != nil {
				d.log.Warn("Skipping unreadable sample", "path", path, "error", err)
				continue
			}
			set.Samples = append(set.Samples, model.Sample{Image: img, Label: label})
			count++
		}
		if count == 0 {
			d.log.Warn("Person has no usable samples", "person", person)
			continue
		}
		names = append(names, person)
		d.log.Debug("Loaded samples", "person", person, "label", label, "count", count)
	}
	set.Labels = model.NewLabelMap(names)
	return set, nil
}

// Trainer retrains a model from the whole dataset.
type Trainer struct {
	Dataset *Dataset
	Model   *model.Model
}

func (t *Trainer) Retrain() error {
	set, err := t.Dataset.Load()
	if err != nil {
		return err
	}
	return t.Model.Train(set)
}
