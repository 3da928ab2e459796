package data

import (
	"compress/gzip"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/convkit/convkit/internal/tensor"
)

// MNIST IDX file magic numbers.
const (
	idxImagesMagic = 2051
	idxLabelsMagic = 2049
)

// LoadMNIST reads the four standard IDX files from dir (gzipped or plain)
// and returns the train and test sets. Pixels are scaled to [0,1] and
// inputs are flat (N, 784); callers reshape to (N, 28, 28, 1) for
// convolutional stacks. Labels become one-hot rows over 10 classes.
func LoadMNIST(dir string) (train, test *Dataset, err error) {
	train, err = loadMNISTSplit(dir, "train-images-idx3-ubyte", "train-labels-idx1-ubyte")
	if err != nil {
		return nil, nil, err
	}
	test, err = loadMNISTSplit(dir, "t10k-images-idx3-ubyte", "t10k-labels-idx1-ubyte")
	if err != nil {
		return nil, nil, err
	}
	return train, test, nil
}

func loadMNISTSplit(dir, imagesName, labelsName string) (*Dataset, error) {
	images, rows, cols, err := readIDXImages(filepath.Join(dir, imagesName))
	if err != nil {
		return nil, err
	}
	labels, err := readIDXLabels(filepath.Join(dir, labelsName))
	if err != nil {
		return nil, err
	}
	if len(images) != len(labels) {
		return nil, errors.Errorf("mnist: %d images but %d labels", len(images), len(labels))
	}

	pixels := rows * cols
	inputs := make([]float64, len(images)*pixels)
	targets := make([]float64, len(images)*10)
	for i, img := range images {
		for j, p := range img {
			inputs[i*pixels+j] = float64(p) / 255.0
		}
		targets[i*10+int(labels[i])] = 1
	}
	return NewDataset(
		tensor.New(inputs, len(images), pixels),
		tensor.New(targets, len(images), 10),
	)
}

// openIDX opens an IDX file, trying a .gz sibling when the plain file is
// absent.
func openIDX(path string) (io.ReadCloser, error) {
	if f, err := os.Open(path); err == nil {
		if strings.HasSuffix(path, ".gz") {
			return gzipReader(f)
		}
		return f, nil
	}
	f, err := os.Open(path + ".gz")
	if err != nil {
		return nil, errors.Wrapf(err, "open %s[.gz]", path)
	}
	return gzipReader(f)
}

type gzipFile struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	if err := g.Reader.Close(); err != nil {
		g.file.Close()
		return err
	}
	return g.file.Close()
}

func gzipReader(f *os.File) (io.ReadCloser, error) {
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "gunzip %s", f.Name())
	}
	return &gzipFile{Reader: zr, file: f}, nil
}

func readIDXImages(path string) (images [][]byte, rows, cols int, err error) {
	r, err := openIDX(path)
	if err != nil {
		return nil, 0, 0, err
	}
	defer r.Close()

	var header [4]uint32
	for i := range header {
		if err := binary.Read(r, binary.BigEndian, &header[i]); err != nil {
			return nil, 0, 0, errors.Wrapf(err, "read image header of %s", path)
		}
	}
	if header[0] != idxImagesMagic {
		return nil, 0, 0, errors.Errorf("mnist: image magic %d, want %d", header[0], idxImagesMagic)
	}
	count, rows, cols := int(header[1]), int(header[2]), int(header[3])

	images = make([][]byte, count)
	size := rows * cols
	for i := range images {
		images[i] = make([]byte, size)
		if _, err := io.ReadFull(r, images[i]); err != nil {
			return nil, 0, 0, errors.Wrapf(err, "read image %d of %s", i, path)
		}
	}
	return images, rows, cols, nil
}

func readIDXLabels(path string) ([]byte, error) {
	r, err := openIDX(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var header [2]uint32
	for i := range header {
		if err := binary.Read(r, binary.BigEndian, &header[i]); err != nil {
			return nil, errors.Wrapf(err, "read label header of %s", path)
		}
	}
	if header[0] != idxLabelsMagic {
		return nil, errors.Errorf("mnist: label magic %d, want %d", header[0], idxLabelsMagic)
	}
	labels := make([]byte, header[1])
	if _, err := io.ReadFull(r, labels); err != nil {
		return nil, errors.Wrapf(err, "read labels of %s", path)
	}
	return labels, nil
}
