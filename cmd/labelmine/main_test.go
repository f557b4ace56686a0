package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/store/storetest"
	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/vocabulary"
	apperrors "github.com/Adithya-Monish-Kumar-K/labelmine/pkg/errors"
)

// dataset writes a small annotation tree and returns its root.
func dataset(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string][]byte{
		"a.xml":          storetest.Doc("cat", "dog"),
		"street/b.xml":   storetest.Doc("Dog\n"),
		"street/c.txt":   []byte("ignored"),
		"street/x/y.xml": storetest.Doc("tree"),
	}
	for name, data := range files {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errb bytes.Buffer
	code = execute(append([]string{"--log-level", "error"}, args...), &out, &errb)
	return code, out.String(), errb.String()
}

func TestRunWithMemoryDriver(t *testing.T) {
	code, out, stderr := runCLI(t, "run", "--driver", "memory", dataset(t))
	if code != apperrors.ExitOK {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	if strings.TrimSpace(out) != "3" {
		t.Errorf("vocabulary size output = %q, want 3", out)
	}
}

func TestIndexThenVocabWithSQLite(t *testing.T) {
	db := filepath.Join(t.TempDir(), "labelmine.db")
	dir := dataset(t)

	code, out, stderr := runCLI(t, "index", "--uri", db, dir)
	if code != apperrors.ExitOK {
		t.Fatalf("index exit %d: %s", code, stderr)
	}
	if !strings.Contains(out, "resources:          3") {
		t.Errorf("summary = %s", out)
	}

	code, out, stderr = runCLI(t, "vocab", "--uri", db, "--dump", "--format", "json")
	if code != apperrors.ExitOK {
		t.Fatalf("vocab exit %d: %s", code, stderr)
	}
	var records []vocabulary.Record
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("decoding dump: %v\n%s", err, out)
	}
	if len(records) != 3 || records[0].Label != "dog" || records[0].Multiplicity != 2 {
		t.Errorf("records = %+v", records)
	}

	code, out, _ = runCLI(t, "vocab", "--uri", db, "--dump", "--top", "1")
	if code != apperrors.ExitOK || !strings.Contains(out, "dog") || strings.Contains(out, "tree") {
		t.Errorf("top 1 dump (exit %d) = %s", code, out)
	}

	code, out, _ = runCLI(t, "collections", "--uri", db, "-r")
	if code != apperrors.ExitOK {
		t.Fatalf("collections exit %d", code)
	}
	for _, want := range []string{"/db/LabelMe\t1", "/db/LabelMe/street\t1", "/db/LabelMe/street/x\t1"} {
		if !strings.Contains(out, want) {
			t.Errorf("collections output missing %q:\n%s", want, out)
		}
	}
}

func TestExitCodes(t *testing.T) {
	emptyDB := filepath.Join(t.TempDir(), "empty.db")
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"unknown driver", []string{"vocab", "--driver", "exist"}, apperrors.ExitInvalidInput},
		{"missing dataset dir", []string{"run", "--driver", "memory", filepath.Join(t.TempDir(), "nope")}, apperrors.ExitInvalidInput},
		{"bad format", []string{"vocab", "--driver", "memory", "--dump", "--format", "xml"}, apperrors.ExitInvalidInput},
		{"missing argument", []string{"index", "--driver", "memory"}, apperrors.ExitInvalidInput},
		{"unknown flag", []string{"vocab", "--bogus"}, apperrors.ExitInvalidInput},
		{"collection not indexed", []string{"vocab", "--uri", emptyDB}, apperrors.ExitCollectionResolution},
		{"follow without kafka", []string{"vocab", "--driver", "memory", "--follow"}, apperrors.ExitInvalidInput},
		{"unreachable redis", []string{"vocab", "--driver", "redis", "--uri", "redis://127.0.0.1:1/0"}, apperrors.ExitConnection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCLI(t, tt.args...)
			if code != tt.want {
				t.Errorf("exit %d, want %d (%s)", code, tt.want, stderr)
			}
		})
	}
}
