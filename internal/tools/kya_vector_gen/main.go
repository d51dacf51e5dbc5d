// Command kya_vector_gen writes the shared canonicalization fixtures.
//
// Each fixture's expectation is computed by the Go canonicalizer; the files
// are then replayed by every other implementation. --check compares the
// computed expectations with the files already on disk instead of writing.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"kya.dev/kya/kya"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type vectorFile struct {
	Name     string          `json:"name"`
	Input    json.RawMessage `json:"input"`
	Expected kya.Expectation `json:"expected"`
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	fs := pflag.NewFlagSet("kya_vector_gen", pflag.ContinueOnError)
	fs.SetOutput(errOut)
	dir := fs.String("out", "testdata/vectors/verify", "Fixture directory")
	force := fs.Bool("force", false, "Overwrite existing fixture files")
	check := fs.Bool("check", false, "Compare with existing files instead of writing")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	logger := slog.New(slog.NewTextHandler(errOut, nil))

	if !*check {
		if err := os.MkdirAll(*dir, 0o755); err != nil {
			logger.Error("create fixture dir", "dir", *dir, "err", err)
			return 1
		}
	}
	failed := 0
	for _, f := range fixtures() {
		vf, err := build(f)
		if err != nil {
			logger.Error("build fixture", "name", f.name, "err", err)
			return 1
		}
		path := filepath.Join(*dir, f.name+".json")
		if *check {
			if err := compare(path, vf); err != nil {
				logger.Error("fixture differs", "name", f.name, "err", err)
				failed++
				continue
			}
			fmt.Fprintf(out, "ok   %s\n", f.name)
			continue
		}
		wrote, err := write(path, vf, *force)
		if err != nil {
			logger.Error("write fixture", "path", path, "err", err)
			return 1
		}
		if wrote {
			fmt.Fprintf(out, "wrote %s\n", path)
		} else {
			logger.Info("fixture exists, skipped", "path", path)
		}
	}
	if failed > 0 {
		return 1
	}
	return 0
}

func build(f fixture) (*vectorFile, error) {
	raw := []byte(f.input)
	input, err := kya.DecodeJSON(raw)
	if err != nil {
		return nil, err
	}
	obj, ok := input.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("input must be a JSON object")
	}
	v, err := kya.NewVector(f.name, obj)
	if err != nil {
		return nil, err
	}
	return &vectorFile{Name: v.Name, Input: raw, Expected: v.Expected}, nil
}

func encode(vf *vectorFile) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(vf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func write(path string, vf *vectorFile, force bool) (bool, error) {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}
	b, err := encode(vf)
	if err != nil {
		return false, err
	}
	return true, os.WriteFile(path, b, 0o644)
}

// compare checks the recorded expectation, not the file's formatting.
func compare(path string, vf *vectorFile) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	existing, err := kya.ParseVector(b)
	if err != nil {
		return err
	}
	if existing.Expected != vf.Expected {
		return fmt.Errorf("recorded %+v, computed %+v", existing.Expected, vf.Expected)
	}
	return existing.Check()
}
