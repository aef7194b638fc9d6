package cv

import (
	"image"
	"os"

	"github.com/abihf/smartmirror/model"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gocv.io/x/gocv/contrib"
)

// LBPH is a model.Classifier backed by OpenCV's LBPH face recognizer.
type LBPH struct {
	recognizer *contrib.LBPHFaceRecognizer
}

var _ model.Classifier = (*LBPH)(nil)

func NewLBPH() model.Classifier {
	return &LBPH{recognizer: contrib.NewLBPHFaceRecognizer()}
}

func toMats(images []*image.Gray) ([]gocv.Mat, error) {
	mats := make([]gocv.Mat, 0, len(images))
	for _, img := range images {
		m, err := gocv.ImageGrayToMatGray(img)
		if err != nil {
			closeMats(mats)
			return nil, errors.Wrap(err, "Can not convert image")
		}
		mats = append(mats, m)
	}
	return mats, nil
}

func closeMats(mats []gocv.Mat) {
	for _, m := range mats {
		m.Close()
	}
}

func (l *LBPH) Train(images []*image.Gray, labels []int) error {
	if len(images) != len(labels) {
		return errors.Errorf("%d images for %d labels", len(images), len(labels))
	}
	mats, err := toMats(images)
	if err != nil {
		return err
	}
	defer closeMats(mats)

	if err := l.recognizer.Train(mats, labels); err != nil {
		return errors.Wrap(err, "Can not train LBPH recognizer")
	}
	return nil
}

func (l *LBPH) Predict(img *image.Gray) (int, float64, error) {
	if l.recognizer.Empty() {
		return 0, 0, errors.New("LBPH recognizer is not trained")
	}
	mat, err := gocv.ImageGrayToMatGray(img)
	if err != nil {
		return 0, 0, errors.Wrap(err, "Can not convert image")
	}
	defer mat.Close()

	res := l.recognizer.PredictExtendedResponse(mat)
	return int(res.Label), float64(res.Confidence), nil
}

// Save writes the recognizer state. An empty file is rejected as well.
func (l *LBPH) Save(path string) error {
	if err := l.recognizer.SaveFile(path); err != nil {
		return errors.Wrapf(err, "Can not write model file %s", path)
	}
	if st, err := os.Stat(path); err != nil || st.Size() == 0 {
		return errors.Errorf("Can not write model file %s", path)
	}
	return nil
}

func (l *LBPH) Load(path string) error {
	if _, err := os.Stat(path); err != nil {
		return errors.Wrap(err, "Can not read model file")
	}
	if err := l.recognizer.LoadFile(path); err != nil {
		return errors.Wrapf(err, "Can not load model file %s", path)
	}
	return nil
}

func (l *LBPH) Close() error {
	if l.recognizer == nil {
		return nil
	}
	err := l.recognizer.Close()
	l.recognizer = nil
	return err
}
