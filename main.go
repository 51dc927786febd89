// romtext converts a console game's binary localization and resource
// assets (Yaz0/SARC/BYML and the LMS project + message formats) into
// JSON and extracted files.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ecurtin/romtext/internal/byml"
	"github.com/ecurtin/romtext/internal/msbp"
	"github.com/ecurtin/romtext/internal/msbt"
	"github.com/ecurtin/romtext/internal/sarc"
)

const usageText = `usage: romtext <command> [-q] args...

commands:
  yaz0  <infile> <outfile>             decompress a Yaz0/xz stream
  sarc  <infile> <outdir>              extract an archive (compressed or not)
  byml  <infile> <outfile>             structured value document to JSON
  msbp  <infile> <outfile>             project definition to JSON
  msbt  <infile> <projfile> <outfile>  messages to JSON, using a project file
  batch <romfsdir> <outdir>            convert every message archive under a romfs
`

func usage() {
	fmt.Fprint(os.Stderr, usageText)
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	var err error
	switch os.Args[1] {
	case "yaz0":
		err = cmdYaz0(os.Args[2:])
	case "sarc":
		err = cmdSarc(os.Args[2:])
	case "byml":
		err = cmdByml(os.Args[2:])
	case "msbp":
		err = cmdMsbp(os.Args[2:])
	case "msbt":
		err = cmdMsbt(os.Args[2:])
	case "batch":
		err = cmdBatch(os.Args[2:])
	default:
		usage()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newFlags(name string, quiet *bool) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.BoolVar(quiet, "q", false, "suppress diagnostics")
	return fs
}

func cmdYaz0(args []string) error {
	var quiet bool
	fs := newFlags("yaz0", &quiet)
	fs.Parse(args)
	if fs.NArg() != 2 {
		usage()
	}
	raw, err := readAsset(fs.Arg(0), nil)
	if err != nil {
		return err
	}
	return os.WriteFile(fs.Arg(1), raw, 0o666)
}

func cmdSarc(args []string) error {
	var quiet bool
	fs := newFlags("sarc", &quiet)
	fs.Parse(args)
	if fs.NArg() != 2 {
		usage()
	}
	raw, err := readAsset(fs.Arg(0), nil)
	if err != nil {
		return err
	}
	a, err := sarc.New(raw)
	if err != nil {
		return err
	}
	return extract(a, fs.Arg(1), quiet)
}

func extract(a *sarc.Archive, outdir string, quiet bool) error {
	if err := os.MkdirAll(outdir, 0o777); err != nil {
		return err
	}
	for _, name := range a.Names() {
		data, _ := a.Data(name)
		p := filepath.Join(outdir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o777); err != nil {
			return err
		}
		if err := os.WriteFile(p, data, 0o666); err != nil {
			return err
		}
		if !quiet {
			fmt.Printf("saved %s\n", p)
		}
	}
	return nil
}

func cmdByml(args []string) error {
	var quiet bool
	fs := newFlags("byml", &quiet)
	fs.Parse(args)
	if fs.NArg() != 2 {
		usage()
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	root, err := byml.Decode(data, byml.Options{Quiet: quiet})
	if err != nil {
		return err
	}
	return writeJSON(fs.Arg(1), root)
}

func cmdMsbp(args []string) error {
	var quiet bool
	fs := newFlags("msbp", &quiet)
	fs.Parse(args)
	if fs.NArg() != 2 {
		usage()
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	project, err := msbp.Decode(data)
	if err != nil {
		return err
	}
	return writeJSON(fs.Arg(1), project)
}

func cmdMsbt(args []string) error {
	var quiet bool
	fs := newFlags("msbt", &quiet)
	fs.Parse(args)
	if fs.NArg() != 3 {
		usage()
	}
	project, err := readProject(fs.Arg(1))
	if err != nil {
		return err
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	set, err := msbt.Decode(data, project)
	if err != nil {
		return err
	}
	return writeJSON(fs.Arg(2), set)
}

// readProject loads a project file given either as a bare .msbp or as a
// compressed archive containing one.
func readProject(path string) (*msbp.Project, error) {
	raw, err := readAsset(path, nil)
	if err != nil {
		return nil, err
	}
	if a, err := sarc.New(raw); err == nil {
		for _, name := range a.Names() {
			if strings.HasSuffix(name, ".msbp") {
				data, _ := a.Data(name)
				return msbp.Decode(data)
			}
		}
		return nil, fmt.Errorf("%s: archive contains no project file", path)
	}
	return msbp.Decode(raw)
}
