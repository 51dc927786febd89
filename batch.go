package main

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ecurtin/romtext/internal/blobcache"
	"github.com/ecurtin/romtext/internal/msbp"
	"github.com/ecurtin/romtext/internal/msbt"
	"github.com/ecurtin/romtext/internal/sarc"
)

const projectArchive = "LocalizedData/Common/ProjectData.szs"

// cmdBatch converts every message archive under a romfs dump: the shared
// project catalog is decoded once, then each language's MessageData
// archives become one JSON file per contained message file.
func cmdBatch(args []string) error {
	var quiet bool
	fl := newFlags("batch", &quiet)
	cacheDir := fl.String("cache", "", "directory for a persistent decompression cache")
	fl.Parse(args)
	if fl.NArg() != 2 {
		usage()
	}
	romfs, outdir := fl.Arg(0), fl.Arg(1)

	if quiet {
		slog.SetDefault(slog.New(slog.DiscardHandler))
	}

	fsys := os.DirFS(romfs)
	if _, err := fs.Stat(fsys, projectArchive); err != nil {
		return fmt.Errorf("romfs path doesn't contain LocalizedData: %w", err)
	}

	cache, err := blobcache.Open(*cacheDir, memLimit>>22)
	if err != nil {
		return err
	}
	defer cache.Close()

	project, err := loadProject(fsys, cache)
	if err != nil {
		return err
	}

	matches, err := doublestar.Glob(fsys, "LocalizedData/*/MessageData/*.szs")
	if err != nil {
		return err
	}
	slices.Sort(matches)

	for _, m := range matches {
		lang := strings.Split(m, "/")[1]
		if lang == "Common" {
			continue
		}
		slog.Info("converting", "archive", m)

		data, err := fs.ReadFile(fsys, m)
		if err != nil {
			return err
		}
		raw, err := unwrap(data, cache)
		if err != nil {
			return fmt.Errorf("%s: %w", m, err)
		}
		a, err := sarc.New(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", m, err)
		}

		dest := filepath.Join(outdir, lang, strings.TrimSuffix(path.Base(m), ".szs"))
		if err := os.MkdirAll(dest, 0o777); err != nil {
			return err
		}

		members, err := doublestar.Glob(a.FS(), "**/*.msbt")
		if err != nil {
			return err
		}
		for _, name := range members {
			mdata, _ := a.Data(name)
			set, err := msbt.Decode(mdata, project)
			if err != nil {
				return fmt.Errorf("%s: %s: %w", m, name, err)
			}
			out := filepath.Join(dest, strings.TrimSuffix(path.Base(name), ".msbt")+".json")
			if err := writeJSON(out, set); err != nil {
				return err
			}
		}
	}

	slog.Info("done")
	return nil
}

func loadProject(fsys fs.FS, cache *blobcache.Cache) (*msbp.Project, error) {
	data, err := fs.ReadFile(fsys, projectArchive)
	if err != nil {
		return nil, err
	}
	raw, err := unwrap(data, cache)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", projectArchive, err)
	}
	a, err := sarc.New(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", projectArchive, err)
	}
	pd, ok := a.Data("ProjectData.msbp")
	if !ok {
		return nil, fmt.Errorf("%s: no ProjectData.msbp inside", projectArchive)
	}
	return msbp.Decode(pd)
}
