package architecture_test

import (
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"
)

const module = "github.com/yungbote/politicas-backend"

// forbidden lists, per layer under internal/, the import prefixes it may not use.
// Entries without a dot are layers of this module.
var forbidden = map[string][]string{
	"platform":      {"domain", "modules", "data", "observability", "services", "http", "app"},
	"domain":        {"modules", "data", "services", "http", "app", "github.com/gin-gonic/gin"},
	"modules":       {"data", "services", "http", "app", "gorm.io/gorm", "github.com/gin-gonic/gin"},
	"data":          {"modules", "services", "http", "app", "github.com/gin-gonic/gin"},
	"observability": {"services", "http", "app"},
	"services":      {"http", "app", "github.com/gin-gonic/gin"},
	"http":          {"app"},
}

func resolve(rule string) string {
	if strings.Contains(rule, ".") {
		return rule
	}
	return module + "/internal/" + rule
}

func TestImportBoundaries(t *testing.T) {
	// Tests run from internal/architecture.
	internalDir, err := filepath.Abs("..")
	if err != nil {
		t.Fatalf("abs: %v", err)
	}

	byLayer := map[string][]string{}
	err = filepath.WalkDir(internalDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") {
			return err
		}
		rel, err := filepath.Rel(internalDir, path)
		if err != nil {
			return err
		}
		layer, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
		if _, ok := forbidden[layer]; ok {
			byLayer[layer] = append(byLayer[layer], path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk internal/: %v", err)
	}

	layers := make([]string, 0, len(forbidden))
	for l := range forbidden {
		layers = append(layers, l)
	}
	sort.Strings(layers)

	fset := token.NewFileSet()
	for _, layer := range layers {
		files := byLayer[layer]
		t.Run(layer, func(t *testing.T) {
			if len(files) == 0 {
				t.Skip("no files")
			}
			for _, path := range files {
				f, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
				if err != nil {
					t.Fatalf("parse %s: %v", path, err)
				}
				for _, spec := range f.Imports {
					imp, _ := strconv.Unquote(spec.Path.Value)
					for _, rule := range forbidden[layer] {
						bad := resolve(rule)
						if imp == bad || strings.HasPrefix(imp, bad+"/") {
							t.Errorf("%s imports %s", strings.TrimPrefix(path, internalDir+string(filepath.Separator)), imp)
						}
					}
				}
			}
		})
	}
}
