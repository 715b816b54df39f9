// skeleton-office-tools - flatten annotations into PDF documents
// Copyright (C) 2026  The skeleton-office-tools authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mattetti/filebuffer"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"golang.org/x/image/font/gofont/goitalic"

	"github.com/opensaas-skeletons/skeleton-office-tools/font/standard"
	"github.com/opensaas-skeletons/skeleton-office-tools/font/truetype"
	"github.com/opensaas-skeletons/skeleton-office-tools/pdf"
)

func TestDefault(t *testing.T) {
	reg := Default()
	want := []string{"Go Bold Italic", "Go Italic", "Go Medium Italic", "Go Smallcaps Italic"}
	if d := cmp.Diff(want, reg.Families()); d != "" {
		t.Error(d)
	}
	if !reg.Has("Go Italic") || reg.Has("Comic Sans") {
		t.Error("Has() is wrong")
	}
}

func TestSignatureMemoized(t *testing.T) {
	logger, hook := test.NewNullLogger()
	res := Default().NewResolver(logger)

	f1 := res.Signature("Go Italic")
	f2 := res.Signature("Go Italic")
	if _, ok := f1.(*truetype.Font); !ok {
		t.Fatalf("expected TrueType font, got %T", f1)
	}
	if f1 != f2 {
		t.Error("font loaded twice")
	}
	if len(hook.Entries) != 0 {
		t.Errorf("unexpected log entries: %v", hook.Entries)
	}
}

func TestFallback(t *testing.T) {
	dir := t.TempDir()

	reg := Default()
	reg.Add("Broken", Source{Data: []byte("this is not a font file")})
	reg.AddFile("Missing", filepath.Join(dir, "missing.ttf"))

	logger, hook := test.NewNullLogger()
	res := reg.NewResolver(logger)

	for _, family := range []string{"Broken", "Missing", "Unknown"} {
		for i := 0; i < 3; i++ {
			f := res.Signature(family)
			if _, ok := f.(*standard.Font); !ok {
				t.Errorf("%s: expected fallback, got %T", family, f)
			}
		}
		if !res.Failed(family) {
			t.Errorf("%s: not marked as failed", family)
		}
	}

	if len(hook.Entries) != 3 {
		t.Fatalf("expected 3 warnings, got %d", len(hook.Entries))
	}
	seen := map[string]bool{}
	for _, entry := range hook.Entries {
		if entry.Level != logrus.WarnLevel {
			t.Errorf("wrong level %v", entry.Level)
		}
		family, _ := entry.Data["family"].(string)
		seen[family] = true

		err, _ := entry.Data[logrus.ErrorKey].(error)
		if !errors.Is(err, ErrFontEmbed) {
			t.Errorf("%s: error %v does not wrap ErrFontEmbed", family, err)
		}
		var embedErr *EmbedError
		if !errors.As(err, &embedErr) || embedErr.Family != family {
			t.Errorf("%s: no EmbedError in %v", family, err)
		}
		if family == "Unknown" && !errors.Is(err, ErrUnknownFamily) {
			t.Errorf("unknown family reported as %v", err)
		}
		if family == "Missing" && !errors.Is(err, os.ErrNotExist) {
			t.Errorf("missing file reported as %v", err)
		}
	}
	if len(seen) != 3 {
		t.Errorf("warnings for %v", seen)
	}
}

func TestAddFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.ttf")
	err := os.WriteFile(path, goitalic.TTF, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	reg := New()
	reg.AddFile("Script", path)

	logger, hook := test.NewNullLogger()
	f := reg.NewResolver(logger).Signature("Script")
	if _, ok := f.(*truetype.Font); !ok {
		t.Errorf("expected TrueType font, got %T", f)
	}
	if len(hook.Entries) != 0 {
		t.Errorf("unexpected warnings: %v", hook.Entries)
	}
}

func TestEmbed(t *testing.T) {
	logger, _ := test.NewNullLogger()
	res := Default().NewResolver(logger)

	text := res.Text()
	sig := res.Signature("Go Bold Italic")
	text.Encode("Hello")
	sig.Encode("Jane")

	w, err := pdf.NewWriter(filebuffer.New(nil), pdf.V1_7)
	if err != nil {
		t.Fatal(err)
	}
	err = res.Embed(w)
	if err != nil {
		t.Fatal(err)
	}
	ref1, ref2 := res.Ref(text), res.Ref(sig)
	if ref1 == 0 || ref2 == 0 || ref1 == ref2 {
		t.Errorf("bad references %v %v", ref1, ref2)
	}

	// a second call embeds nothing new
	next := w.Alloc()
	err = res.Embed(w)
	if err != nil {
		t.Fatal(err)
	}
	if w.Alloc() != next+1 {
		t.Error("fonts embedded twice")
	}
	if res.Ref(text) != ref1 {
		t.Error("reference changed")
	}
}

type shortWriter struct {
	n int
}

var errDiskFull = errors.New("disk full")

func (w *shortWriter) Write(p []byte) (int, error) {
	if len(p) > w.n {
		k := w.n
		w.n = 0
		return k, errDiskFull
	}
	w.n -= len(p)
	return len(p), nil
}

func TestEmbedWriteError(t *testing.T) {
	logger, hook := test.NewNullLogger()
	res := Default().NewResolver(logger)

	text := res.Text()
	sig := res.Signature("Go Italic")
	text.Encode("Hello")
	sig.Encode("Jane")

	// room for the header and the Helvetica dictionary, but not for
	// the TrueType font file
	w, err := pdf.NewWriter(&shortWriter{n: 400}, pdf.V1_7)
	if err != nil {
		t.Fatal(err)
	}
	err = res.Embed(w)
	if !errors.Is(err, errDiskFull) {
		t.Errorf("expected write error, got %v", err)
	}
	if res.Ref(sig) != 0 {
		t.Error("signature font reported as embedded")
	}
	if res.Failed("Go Italic") {
		t.Error("write error treated as a font problem")
	}
	if len(hook.Entries) != 0 {
		t.Errorf("unexpected warnings: %v", hook.Entries)
	}
}
