package shader

import (
	"errors"
	"io/fs"
)

// union serves each path from the first file system that has it.
type union []fs.FS

// Union returns a file system that looks paths up in each of fsys in
// order. It lets applications layer their shaders over built-in ones.
func Union(fsys ...fs.FS) fs.FS {
	return union(fsys)
}

func (u union) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	for _, f := range u {
		file, err := f.Open(name)
		if err == nil {
			return file, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}
