package loaders

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"golang.org/x/image/draw"

	"github.com/veilworld/engine/engine/core"
)

// LoadHeightmap decodes an image file into a gridSize by gridSize grid of
// height samples in [0, 1], taken from pixel luminance. The image is
// resampled onto the grid so any source resolution works.
func LoadHeightmap(path string, gridSize int) ([][]float32, error) {
	if gridSize < 2 {
		return nil, fmt.Errorf("%w: heightmap grid size %d", core.ErrInvalidFormat, gridSize)
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", core.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s", core.ErrLoadingFailed, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: decode heightmap: %s", core.ErrInvalidFormat, err)
	}

	scaled := image.NewRGBA(image.Rect(0, 0, gridSize, gridSize))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)

	heights := make([][]float32, gridSize)
	for z := 0; z < gridSize; z++ {
		heights[z] = make([]float32, gridSize)
		for x := 0; x < gridSize; x++ {
			r, g, b, _ := scaled.At(x, z).RGBA()
			// Rec. 601 luma over 16-bit channels.
			luma := 0.299*float32(r) + 0.587*float32(g) + 0.114*float32(b)
			heights[z][x] = luma / 65535.0
		}
	}
	return heights, nil
}
