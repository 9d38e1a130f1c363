package imgx

import (
	"bytes"
	"errors"
	"image"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/John-Robertt/framex/internal/infra/fsx"
)

// JPEGQuality 是输出帧的编码质量：95 在体积与质量之间比较均衡。
const JPEGQuality = 95

// EncodeJPEG 把一帧编码为 JPEG。
func EncodeJPEG(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, errors.New("图片为空")
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.New("图片尺寸无效")
	}

	var out bytes.Buffer
	if err := imaging.Encode(&out, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// DirSink 把帧以 JPEG 写入固定输出目录；同名文件原子覆盖。
type DirSink struct {
	dir string
}

// NewDirSink 确保输出目录存在（不存在则创建）。
func NewDirSink(dir string) (*DirSink, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	abs = filepath.Clean(abs)
	if err := fsx.EnsureDir(abs); err != nil {
		return nil, err
	}
	return &DirSink{dir: abs}, nil
}

func (s *DirSink) Dir() string { return s.dir }

// Write 编码并写出 name，返回最终输出路径。
func (s *DirSink) Write(name string, img image.Image) (string, error) {
	data, err := EncodeJPEG(img)
	if err != nil {
		return "", err
	}
	if err := fsx.WriteFileAtomic(s.dir, name, data); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name), nil
}
