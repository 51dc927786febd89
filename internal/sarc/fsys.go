package sarc

import (
	"bytes"
	"io"
	"io/fs"
	"path"
	"slices"
	"time"
)

// FS exposes the archive as a read-only fs.FS, with directories
// synthesized from slash-separated entry names.
func (a *Archive) FS() fs.FS {
	if a.fsys == nil {
		a.fsys = newArchiveFS(a)
	}
	return a.fsys
}

type archiveFS struct {
	a    *Archive
	dirs map[string][]string // dir path -> sorted child base names
}

func newArchiveFS(a *Archive) *archiveFS {
	fsys := &archiveFS{a: a, dirs: map[string][]string{".": nil}}
	linked := map[string]bool{".": true}
	var link func(p string)
	link = func(p string) {
		dir := path.Dir(p)
		if !slices.Contains(fsys.dirs[dir], path.Base(p)) {
			fsys.dirs[dir] = append(fsys.dirs[dir], path.Base(p))
		}
		if !linked[dir] {
			linked[dir] = true
			link(dir)
		}
	}
	for _, e := range a.entries {
		link(e.Name)
	}
	for _, children := range fsys.dirs {
		slices.Sort(children)
	}
	return fsys
}

func (fsys *archiveFS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	if data, ok := fsys.a.Data(name); ok {
		return &memberFile{name: name, r: bytes.NewReader(data), size: int64(len(data))}, nil
	}
	if children, ok := fsys.dirs[name]; ok {
		entries := make([]fs.DirEntry, len(children))
		for i, base := range children {
			entries[i] = fsys.infoFor(path.Join(name, base))
		}
		return &memberDir{name: name, entries: entries}, nil
	}
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

func (fsys *archiveFS) infoFor(p string) *memberInfo {
	if data, ok := fsys.a.Data(p); ok {
		return &memberInfo{base: path.Base(p), size: int64(len(data))}
	}
	return &memberInfo{base: path.Base(p), dir: true}
}

type memberInfo struct {
	base string
	size int64
	dir  bool
}

func (i *memberInfo) Name() string       { return i.base }
func (i *memberInfo) Size() int64        { return i.size }
func (i *memberInfo) ModTime() time.Time { return time.Time{} }
func (i *memberInfo) IsDir() bool        { return i.dir }
func (i *memberInfo) Sys() any           { return nil }

func (i *memberInfo) Mode() fs.FileMode {
	if i.dir {
		return fs.ModeDir | 0o555
	}
	return 0o444
}

func (i *memberInfo) Type() fs.FileMode          { return i.Mode().Type() }
func (i *memberInfo) Info() (fs.FileInfo, error) { return i, nil }

type memberFile struct {
	name string
	r    *bytes.Reader
	size int64
}

func (f *memberFile) Stat() (fs.FileInfo, error) {
	return &memberInfo{base: path.Base(f.name), size: f.size}, nil
}
func (f *memberFile) Read(p []byte) (int, error)                { return f.r.Read(p) }
func (f *memberFile) ReadAt(p []byte, off int64) (int, error)   { return f.r.ReadAt(p, off) }
func (f *memberFile) Seek(off int64, whence int) (int64, error) { return f.r.Seek(off, whence) }
func (f *memberFile) Close() error                              { return nil }

type memberDir struct {
	name    string
	entries []fs.DirEntry
	pos     int
}

func (d *memberDir) Stat() (fs.FileInfo, error) {
	return &memberInfo{base: path.Base(d.name), dir: true}, nil
}
func (d *memberDir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.name, Err: fs.ErrInvalid}
}
func (d *memberDir) Close() error { return nil }

func (d *memberDir) ReadDir(n int) ([]fs.DirEntry, error) {
	if n <= 0 {
		out := d.entries[d.pos:]
		d.pos = len(d.entries)
		return out, nil
	}
	if d.pos >= len(d.entries) {
		return nil, io.EOF
	}
	end := min(d.pos+n, len(d.entries))
	out := d.entries[d.pos:end]
	d.pos = end
	return out, nil
}
