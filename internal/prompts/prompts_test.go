// Copyright 2026 The storylens Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package prompts

import (
	"strings"
	"testing"
)

func TestLookup(t *testing.T) {
	t.Run("resolves every registered task", func(t *testing.T) {
		for _, name := range []string{"refine", "evaluate", "simplify"} {
			spec, ok := Lookup(name)
			if !ok {
				t.Fatalf("task %q not found", name)
			}
			if string(spec.Task) != name {
				t.Errorf("expected task %q, got %q", name, spec.Task)
			}
		}
	})

	t.Run("forgives case and whitespace", func(t *testing.T) {
		spec, ok := Lookup("  Refine ")
		if !ok || spec.Task != TaskRefine {
			t.Fatalf("expected refine, got %v (%v)", spec, ok)
		}
	})

	t.Run("rejects unknown tasks", func(t *testing.T) {
		if _, ok := Lookup("translate"); ok {
			t.Fatal("expected translate to be unknown")
		}
	})
}

func TestAll(t *testing.T) {
	specs := All()
	if len(specs) != 3 {
		t.Fatalf("expected 3 specs, got %d", len(specs))
	}
	want := []Task{TaskRefine, TaskEvaluate, TaskSimplify}
	for i, spec := range specs {
		if spec.Task != want[i] {
			t.Errorf("position %d: expected %q, got %q", i, want[i], spec.Task)
		}
		if spec.Label == "" || spec.Description == "" {
			t.Errorf("task %q is missing display metadata", spec.Task)
		}
	}
}

func TestRender(t *testing.T) {
	spec, _ := Lookup("refine")

	t.Run("embeds the caller prompt", func(t *testing.T) {
		out := spec.Render("write a haiku about rain", 0)
		if !strings.Contains(out, "write a haiku about rain") {
			t.Errorf("prompt not embedded: %q", out)
		}
		if strings.Contains(out, "Target length") {
			t.Error("no word budget should appear when target length is zero")
		}
	})

	t.Run("appends the word budget", func(t *testing.T) {
		out := spec.Render("p", 42)
		if !strings.Contains(out, "Target length: about 42 words.") {
			t.Errorf("missing word budget: %q", out)
		}
	})
}

func TestAnalyzeImage(t *testing.T) {
	t.Run("detail steers verbosity", func(t *testing.T) {
		short := AnalyzeImage("short", false, false)
		long := AnalyzeImage("long", false, false)
		if !strings.Contains(short, "one or two short sentences") {
			t.Errorf("short variant wrong: %q", short)
		}
		if !strings.Contains(long, "Be thorough") {
			t.Errorf("long variant wrong: %q", long)
		}
	})

	t.Run("always requests an explicit setting", func(t *testing.T) {
		for _, detail := range []string{"short", "medium", "long"} {
			if !strings.Contains(AnalyzeImage(detail, false, false), `"Setting: <place>"`) {
				t.Errorf("detail %q is missing the setting instruction", detail)
			}
		}
	})

	t.Run("tags are requested only when wanted", func(t *testing.T) {
		with := AnalyzeImage("medium", true, false)
		without := AnalyzeImage("medium", false, false)
		if !strings.Contains(with, "comma-separated style tags") {
			t.Error("tag instruction missing")
		}
		if strings.Contains(without, "comma-separated style tags") {
			t.Error("tag instruction should be absent")
		}
	})

	t.Run("ocr switches the caption variant", func(t *testing.T) {
		out := AnalyzeImage("medium", false, true)
		if !strings.Contains(out, "Transcribe any legible text") {
			t.Errorf("ocr variant wrong: %q", out)
		}
	})
}
