package petalpress

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"golang.org/x/image/draw"
)

const (
	maxImageWidth = 800
	jpegQuality   = 80
	maxStageSize  = 5 << 20 // 5MB
)

// ImagePattern describes one run of selectable image filenames:
// Prefix1.Ext through PrefixN.Ext.
type ImagePattern struct {
	Prefix string `yaml:"prefix"`
	Count  int    `yaml:"count"`
	Ext    string `yaml:"ext"`
}

// ExpandPatterns turns the configured naming patterns into the concrete
// set of selectable filenames.
func ExpandPatterns(patterns []ImagePattern) []string {
	var names []string
	for _, p := range patterns {
		ext := strings.TrimPrefix(p.Ext, ".")
		for i := 1; i <= p.Count; i++ {
			names = append(names, fmt.Sprintf("%s%d.%s", p.Prefix, i, ext))
		}
	}
	return names
}

// ImageSet is the Available Image Set: the filenames a post may reference,
// regenerated from configuration at startup. Staged additions live only in
// this process; they are never persisted or distributed to other clients.
type ImageSet struct {
	base string

	mu    sync.RWMutex
	names []string
	index map[string]struct{}
}

// NewImageSet builds the set from configured patterns. base is the path
// prefix image filenames resolve under (e.g. "Images/").
func NewImageSet(base string, patterns []ImagePattern) *ImageSet {
	s := &ImageSet{
		base:  base,
		index: make(map[string]struct{}),
	}
	for _, name := range ExpandPatterns(patterns) {
		s.add(name)
	}
	return s
}

func (s *ImageSet) add(name string) bool {
	if _, ok := s.index[name]; ok {
		return false
	}
	s.index[name] = struct{}{}
	s.names = append(s.names, name)
	return true
}

// Names returns the selectable filenames in insertion order.
func (s *ImageSet) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Has reports whether name is selectable.
func (s *ImageSet) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[name]
	return ok
}

// Add appends a session-local name. Returns false if already present.
func (s *ImageSet) Add(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(name)
}

// Path resolves a filename to its asset path under the base.
func (s *ImageSet) Path(name string) string {
	return path.Join(s.base, name)
}

// StagedImage is the metadata for a normalized, session-staged image.
type StagedImage struct {
	Filename     string
	OriginalName string
	Width        int
	Height       int
	Size         int
	StagedAt     time.Time
}

// StageImage decodes an image, downscales it to maxImageWidth if wider,
// and re-encodes it as JPEG. The bytes go back to the caller as a
// download and the filename joins the in-memory set; nothing is written
// to shared storage.
func (s *ImageSet) StageImage(src io.Reader, originalName string) (StagedImage, []byte, error) {
	img, _, err := image.Decode(io.LimitReader(src, maxStageSize))
	if err != nil {
		return StagedImage{}, nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > maxImageWidth {
		newH := h * maxImageWidth / w
		dst := image.NewRGBA(image.Rect(0, 0, maxImageWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
		w = maxImageWidth
		h = newH
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return StagedImage{}, nil, fmt.Errorf("encode jpeg: %w", err)
	}

	ext := path.Ext(originalName)
	filename := strings.TrimSuffix(originalName, ext) + ".jpg"
	staged := StagedImage{
		Filename:     filename,
		OriginalName: originalName,
		Width:        w,
		Height:       h,
		Size:         buf.Len(),
		StagedAt:     time.Now().UTC(),
	}
	s.Add(filename)
	return staged, buf.Bytes(), nil
}

// ImageLoader resolves post images lazily: a source path is only handed
// out once the element is within margin of the viewport, and stays
// resolved afterwards.
type ImageLoader struct {
	set    *ImageSet
	margin int

	mu     sync.Mutex
	loaded map[string]bool
}

func NewImageLoader(set *ImageSet, margin int) *ImageLoader {
	return &ImageLoader{
		set:    set,
		margin: margin,
		loaded: make(map[string]bool),
	}
}

// Source returns the resolved path for name when its element top edge is
// within margin of the viewport bottom, or "" while the image should stay
// deferred. Resolution is sticky.
func (l *ImageLoader) Source(name string, elementTop, viewportBottom int) string {
	if name == "" {
		return ""
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loaded[name] {
		return l.set.Path(name)
	}
	if elementTop <= viewportBottom+l.margin {
		l.loaded[name] = true
		return l.set.Path(name)
	}
	return ""
}

// Reset forgets which images resolved, e.g. after a full refresh rebuilds
// the rendered list.
func (l *ImageLoader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loaded = make(map[string]bool)
}
