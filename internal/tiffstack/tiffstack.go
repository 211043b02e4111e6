// Package tiffstack reads multi-page TIFF files as frame stacks.
//
// Microscopy recordings are commonly stored as TIFF stacks where each IFD in
// the chain is one frame. golang.org/x/image/tiff only decodes the first IFD,
// so the chain is walked by hand here; x/image/tiff is kept as a fallback for
// compressed single-page files.
package tiffstack

import (
	"encoding/binary"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"
)

// Page is one decoded frame. Samples are stored row-major, interleaved by
// channel, in the file's native numeric range (0-255 for 8-bit sources,
// 0-65535 for 16-bit).
type Page struct {
	Width    int
	Height   int
	Channels int
	Samples  []float64
}

// At returns the sample for channel c at pixel (x, y).
func (p *Page) At(x, y, c int) float64 {
	return p.Samples[(y*p.Width+x)*p.Channels+c]
}

// Stack is an ordered sequence of pages from one file.
type Stack struct {
	Pages []Page
}

// TIFF tag IDs used while walking the IFD chain.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
)

// TIFF field types.
const (
	typeShort = 3
	typeLong  = 4
)

const compressionNone = 1

// ifd holds the subset of directory fields needed to read pixel data.
type ifd struct {
	width           int
	height          int
	bitsPerSample   int
	compression     int
	samplesPerPixel int
	rowsPerStrip    int
	stripOffsets    []uint32
	stripByteCounts []uint32
	next            uint32
}

// Read loads every page of a TIFF file. Uncompressed 8- and 16-bit gray and
// 8-bit RGB/RGBA stacks are read directly; anything else falls back to the
// x/image/tiff decoder, which yields the first page only.
func Read(path string) (*Stack, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open TIFF: %w", err)
	}
	defer f.Close()

	header := make([]byte, 8)
	if _, err := f.ReadAt(header, 0); err != nil {
		return nil, fmt.Errorf("failed to read TIFF header: %w", err)
	}

	var byteOrder binary.ByteOrder
	switch {
	case header[0] == 'I' && header[1] == 'I':
		byteOrder = binary.LittleEndian
	case header[0] == 'M' && header[1] == 'M':
		byteOrder = binary.BigEndian
	default:
		return nil, fmt.Errorf("not a valid TIFF file: %s", path)
	}
	if byteOrder.Uint16(header[2:4]) != 42 {
		return nil, fmt.Errorf("not a valid TIFF file: %s", path)
	}

	stack := &Stack{}
	offset := byteOrder.Uint32(header[4:8])
	for offset != 0 {
		dir, err := readIFD(f, int64(offset), byteOrder)
		if err != nil {
			return nil, err
		}
		page, err := readPage(f, dir, byteOrder)
		if err != nil {
			// Compressed or exotic layout: let x/image/tiff try the file.
			if len(stack.Pages) == 0 {
				return readFallback(path)
			}
			return nil, err
		}
		stack.Pages = append(stack.Pages, *page)
		offset = dir.next
	}

	if len(stack.Pages) == 0 {
		return nil, fmt.Errorf("TIFF contains no pages: %s", path)
	}
	return stack, nil
}

// readIFD parses one image file directory at the given offset.
func readIFD(f *os.File, offset int64, byteOrder binary.ByteOrder) (*ifd, error) {
	var count uint16
	buf := make([]byte, 2)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return nil, fmt.Errorf("failed to read IFD at %d: %w", offset, err)
	}
	count = byteOrder.Uint16(buf)

	entries := make([]byte, int(count)*12)
	if _, err := f.ReadAt(entries, offset+2); err != nil {
		return nil, fmt.Errorf("failed to read IFD entries at %d: %w", offset, err)
	}

	dir := &ifd{
		bitsPerSample:   1,
		compression:     compressionNone,
		samplesPerPixel: 1,
		rowsPerStrip:    1 << 30, // effectively "all rows in one strip"
	}

	for i := 0; i < int(count); i++ {
		entry := entries[i*12 : (i+1)*12]
		tag := byteOrder.Uint16(entry[0:2])
		fieldType := byteOrder.Uint16(entry[2:4])
		valueCount := byteOrder.Uint32(entry[4:8])

		switch tag {
		case tagImageWidth:
			dir.width = int(entryValue(entry, fieldType, byteOrder))
		case tagImageLength:
			dir.height = int(entryValue(entry, fieldType, byteOrder))
		case tagBitsPerSample:
			// Per-channel counts are stored out of line; samples are assumed
			// uniform so the first value is enough.
			vals, err := entryValues(f, entry, fieldType, valueCount, byteOrder)
			if err != nil {
				return nil, err
			}
			dir.bitsPerSample = int(vals[0])
		case tagCompression:
			dir.compression = int(entryValue(entry, fieldType, byteOrder))
		case tagSamplesPerPixel:
			dir.samplesPerPixel = int(entryValue(entry, fieldType, byteOrder))
		case tagRowsPerStrip:
			dir.rowsPerStrip = int(entryValue(entry, fieldType, byteOrder))
		case tagStripOffsets:
			vals, err := entryValues(f, entry, fieldType, valueCount, byteOrder)
			if err != nil {
				return nil, err
			}
			dir.stripOffsets = vals
		case tagStripByteCounts:
			vals, err := entryValues(f, entry, fieldType, valueCount, byteOrder)
			if err != nil {
				return nil, err
			}
			dir.stripByteCounts = vals
		}
	}

	next := make([]byte, 4)
	if _, err := f.ReadAt(next, offset+2+int64(count)*12); err != nil {
		return nil, fmt.Errorf("failed to read next-IFD offset: %w", err)
	}
	dir.next = byteOrder.Uint32(next)

	return dir, nil
}

// entryValue reads a single inline SHORT or LONG value.
func entryValue(entry []byte, fieldType uint16, byteOrder binary.ByteOrder) uint32 {
	if fieldType == typeShort {
		return uint32(byteOrder.Uint16(entry[8:10]))
	}
	return byteOrder.Uint32(entry[8:12])
}

// entryValues reads a SHORT or LONG array, inline when it fits in the four
// value bytes, otherwise from the pointed-to location.
func entryValues(f *os.File, entry []byte, fieldType uint16, count uint32, byteOrder binary.ByteOrder) ([]uint32, error) {
	size := 4
	if fieldType == typeShort {
		size = 2
	}

	var raw []byte
	if int(count)*size <= 4 {
		raw = entry[8 : 8+int(count)*size]
	} else {
		raw = make([]byte, int(count)*size)
		off := byteOrder.Uint32(entry[8:12])
		if _, err := f.ReadAt(raw, int64(off)); err != nil {
			return nil, fmt.Errorf("failed to read tag values at %d: %w", off, err)
		}
	}

	vals := make([]uint32, count)
	for i := range vals {
		if fieldType == typeShort {
			vals[i] = uint32(byteOrder.Uint16(raw[i*2 : i*2+2]))
		} else {
			vals[i] = byteOrder.Uint32(raw[i*4 : i*4+4])
		}
	}
	return vals, nil
}

// readPage decodes the pixel data of one IFD into a Page.
func readPage(f *os.File, dir *ifd, byteOrder binary.ByteOrder) (*Page, error) {
	if dir.compression != compressionNone {
		return nil, fmt.Errorf("unsupported TIFF compression %d", dir.compression)
	}
	if dir.bitsPerSample != 8 && dir.bitsPerSample != 16 {
		return nil, fmt.Errorf("unsupported TIFF bit depth %d", dir.bitsPerSample)
	}
	if dir.width <= 0 || dir.height <= 0 || len(dir.stripOffsets) == 0 {
		return nil, fmt.Errorf("malformed TIFF page")
	}
	if len(dir.stripByteCounts) != len(dir.stripOffsets) {
		return nil, fmt.Errorf("strip offset/count mismatch: %d vs %d",
			len(dir.stripOffsets), len(dir.stripByteCounts))
	}

	bytesPerSample := dir.bitsPerSample / 8
	data := make([]byte, 0, dir.width*dir.height*dir.samplesPerPixel*bytesPerSample)
	for i, off := range dir.stripOffsets {
		strip := make([]byte, dir.stripByteCounts[i])
		if _, err := f.ReadAt(strip, int64(off)); err != nil {
			return nil, fmt.Errorf("failed to read strip %d: %w", i, err)
		}
		data = append(data, strip...)
	}

	want := dir.width * dir.height * dir.samplesPerPixel * bytesPerSample
	if len(data) < want {
		return nil, fmt.Errorf("short TIFF pixel data: have %d bytes, want %d", len(data), want)
	}

	page := &Page{
		Width:    dir.width,
		Height:   dir.height,
		Channels: dir.samplesPerPixel,
		Samples:  make([]float64, dir.width*dir.height*dir.samplesPerPixel),
	}
	if bytesPerSample == 1 {
		for i := range page.Samples {
			page.Samples[i] = float64(data[i])
		}
	} else {
		for i := range page.Samples {
			page.Samples[i] = float64(byteOrder.Uint16(data[i*2 : i*2+2]))
		}
	}
	return page, nil
}

// readFallback decodes the first page via x/image/tiff.
func readFallback(path string) (*Stack, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open TIFF: %w", err)
	}
	defer f.Close()

	img, err := tiff.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode TIFF: %w", err)
	}
	return &Stack{Pages: []Page{*PageFromImage(img)}}, nil
}

// PageFromImage converts a decoded image into a Page, preserving the native
// sample range for gray images and expanding everything else to 8-bit RGB.
func PageFromImage(img image.Image) *Page {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	switch src := img.(type) {
	case *image.Gray:
		page := &Page{Width: w, Height: h, Channels: 1, Samples: make([]float64, w*h)}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				page.Samples[y*w+x] = float64(src.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
			}
		}
		return page
	case *image.Gray16:
		page := &Page{Width: w, Height: h, Channels: 1, Samples: make([]float64, w*h)}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				page.Samples[y*w+x] = float64(src.Gray16At(bounds.Min.X+x, bounds.Min.Y+y).Y)
			}
		}
		return page
	default:
		page := &Page{Width: w, Height: h, Channels: 3, Samples: make([]float64, w*h*3)}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
				idx := (y*w + x) * 3
				page.Samples[idx] = float64(r >> 8)
				page.Samples[idx+1] = float64(g >> 8)
				page.Samples[idx+2] = float64(b >> 8)
			}
		}
		return page
	}
}

// IsTIFFPath reports whether the path has a TIFF-family extension.
func IsTIFFPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".tif" || ext == ".tiff"
}
