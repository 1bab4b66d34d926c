// Package shader resolves shader paths to compiled device modules.
//
// A [Library] reads shader files from an fs.FS, compiles WGSL to SPIR-V
// with naga and creates one device module per distinct path. Paths are
// identities: the library never inspects what a shader does, and callers
// key pipelines on the path alone.
package shader

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/gogpu/naga"

	"github.com/gogpu/framegraph/gpucore"
	"github.com/gogpu/framegraph/internal/cache"
	"github.com/gogpu/framegraph/internal/logging"
)

// ErrUnsupportedSource is returned for files that are neither WGSL nor
// SPIR-V.
var ErrUnsupportedSource = errors.New("shader: unsupported source type")

// Library compiles and caches shader modules by path.
//
// Library is safe for concurrent use.
type Library struct {
	dev     gpucore.Device
	fsys    fs.FS
	modules *cache.Store[string, gpucore.ShaderModuleID]
}

// NewLibrary creates a library reading sources from fsys.
func NewLibrary(dev gpucore.Device, fsys fs.FS) *Library {
	return &Library{
		dev:     dev,
		fsys:    fsys,
		modules: cache.NewStore[string, gpucore.ShaderModuleID](),
	}
}

// Key returns the identity of a shader path: the cleaned, slash-separated
// form. "a/../b.wgsl" and "b.wgsl" are the same shader.
func Key(p string) string {
	return path.Clean(strings.ReplaceAll(p, "\\", "/"))
}

// Module returns the device module for a shader path, compiling it on
// first use.
func (l *Library) Module(p string) (gpucore.ShaderModuleID, error) {
	key := Key(p)
	id, built, err := l.modules.GetOrBuild(key, func() (gpucore.ShaderModuleID, error) {
		return l.build(key)
	})
	if err != nil {
		return gpucore.InvalidID, err
	}
	if built {
		logging.L().Debug("shader: module built", "path", key, "id", id)
	}
	return id, nil
}

func (l *Library) build(key string) (gpucore.ShaderModuleID, error) {
	src, err := fs.ReadFile(l.fsys, key)
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("read shader %s: %w", key, err)
	}

	var spirv []uint32
	switch path.Ext(key) {
	case ".wgsl":
		spirv, err = CompileWGSL(string(src))
	case ".spv":
		spirv, err = words(src)
	default:
		err = ErrUnsupportedSource
	}
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("compile shader %s: %w", key, err)
	}

	return l.dev.CreateShaderModule(&gpucore.ShaderModuleDesc{Label: key, SPIRV: spirv})
}

// Stats reports module cache usage.
type Stats struct {
	Hits, Misses uint64
	Modules      int
}

// Stats returns module cache statistics.
func (l *Library) Stats() Stats {
	st := l.modules.Stats()
	return Stats{Hits: st.Hits, Misses: st.Misses, Modules: st.Len}
}

// Close destroys every module the library created.
func (l *Library) Close() {
	l.modules.Range(func(_ string, id gpucore.ShaderModuleID) {
		l.dev.DestroyShaderModule(id)
	})
	l.modules.Clear()
}

// CompileWGSL compiles WGSL source to SPIR-V words.
func CompileWGSL(source string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to compile shader: %w", err)
	}
	return words(spirvBytes)
}

// words converts little-endian SPIR-V bytes to 32-bit words.
func words(b []byte) ([]uint32, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, fmt.Errorf("SPIR-V length %d is not a positive multiple of 4", len(b))
	}
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = uint32(b[i*4]) |
			uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 |
			uint32(b[i*4+3])<<24
	}
	return out, nil
}
