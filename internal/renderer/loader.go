package renderer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"slices"
	"strings"

	"braces.dev/errtrace"
	"gopkg.in/yaml.v3"
)

// LoadDefinitions reads every *.yaml and *.yml file directly under dir in
// fsys, in lexical file name order. That order is the load order and therefore
// the matching tie-break. A file may hold several YAML documents.
//
// A file that cannot be read or decoded fails the whole load with an error
// naming the file. Compilation problems (bad patterns, duplicate names) are
// left to BuildRegistry.
func LoadDefinitions(fsys fs.FS, dir string) ([]Definition, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, errtrace.Wrap(fmt.Errorf("reading profile directory %s: %w", dir, err))
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isDefinitionFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)

	var defs []Definition
	for _, name := range names {
		file := path.Join(dir, name)
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, errtrace.Wrap(fmt.Errorf("reading profile %s: %w", file, err))
		}
		fileDefs, err := ParseDefinitions(data)
		if err != nil {
			return nil, errtrace.Wrap(fmt.Errorf("parsing profile %s: %w", file, err))
		}
		for i := range fileDefs {
			fileDefs[i].Source = file
		}
		defs = append(defs, fileDefs...)
	}
	return defs, nil
}

// ParseDefinitions decodes one or more YAML documents into definitions.
// Empty documents are skipped.
func ParseDefinitions(data []byte) ([]Definition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var defs []Definition
	for {
		var def Definition
		err := dec.Decode(&def)
		if errors.Is(err, io.EOF) {
			return defs, nil
		}
		if err != nil {
			return nil, errtrace.Wrap(err)
		}
		if def.Name == "" && len(def.UserAgent) == 0 && len(def.Headers) == 0 {
			continue
		}
		defs = append(defs, def)
	}
}

func isDefinitionFile(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
