// Copyright 2026 The storylens Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package prompts holds the fixed prompt templates and the task-selection
// dispatch. Each prompt-to-text task is a tagged variant resolved exactly
// once at orchestration entry; template content itself is deliberately dumb
// string assembly so the routing layer stays testable without a backend.
package prompts

import (
	"fmt"
	"strings"
)

// Task identifies one of the fixed prompt-to-text task variants.
type Task string

const (
	// TaskRefine rewrites a rough prompt into a clear, effective one.
	TaskRefine Task = "refine"

	// TaskEvaluate scores a prompt and suggests improvements.
	TaskEvaluate Task = "evaluate"

	// TaskSimplify reduces a prompt to its essential instruction.
	TaskSimplify Task = "simplify"
)

// Spec couples a task variant with its template and display metadata.
type Spec struct {
	Task        Task   `json:"task"`
	Label       string `json:"label"`
	Description string `json:"description"`
	template    string
}

var registry = map[Task]*Spec{
	TaskRefine: {
		Task:        TaskRefine,
		Label:       "Refine",
		Description: "Rewrite the prompt for clarity, specificity and structure.",
		template: "You are an expert prompt engineer. Rewrite the following prompt so it is clear, " +
			"specific and well structured. Keep the author's intent. Return only the rewritten prompt.\n\nPrompt:\n%s",
	},
	TaskEvaluate: {
		Task:        TaskEvaluate,
		Label:       "Evaluate",
		Description: "Score the prompt from 0 to 1 and list concrete improvements.",
		template: "You are an expert prompt engineer. Evaluate the following prompt. Respond with a line " +
			"\"Score: <value between 0 and 1>\" followed by a bulleted list of concrete improvement suggestions.\n\nPrompt:\n%s",
	},
	TaskSimplify: {
		Task:        TaskSimplify,
		Label:       "Simplify",
		Description: "Reduce the prompt to its essential instruction.",
		template: "You are an expert prompt engineer. Reduce the following prompt to its essential " +
			"instruction, removing redundancy while preserving meaning. Return only the simplified prompt.\n\nPrompt:\n%s",
	},
}

// Lookup resolves a task name to its spec. The boolean is false for unknown
// task names.
func Lookup(task string) (*Spec, bool) {
	spec, ok := registry[Task(strings.ToLower(strings.TrimSpace(task)))]
	return spec, ok
}

// All returns the task specs in a stable order, for the task listing endpoint.
func All() []*Spec {
	return []*Spec{registry[TaskRefine], registry[TaskEvaluate], registry[TaskSimplify]}
}

// Render builds the outbound prompt for this task. A positive targetLength
// appends a word-budget instruction.
func (s *Spec) Render(prompt string, targetLength int) string {
	out := fmt.Sprintf(s.template, prompt)
	if targetLength > 0 {
		out += fmt.Sprintf("\n\nTarget length: about %d words.", targetLength)
	}
	return out
}

// AnalyzeImage builds the caption prompt for the image-analysis path. The
// detail tier steers verbosity, wantTags asks for a comma-separated tag
// line, and ocr switches to the OCR-aware caption variant that transcribes
// visible text before describing the scene.
func AnalyzeImage(detail string, wantTags, ocr bool) string {
	var b strings.Builder
	if ocr {
		b.WriteString("Transcribe any legible text visible in the image first, then describe the image. ")
	} else {
		b.WriteString("Describe the image. ")
	}

	switch detail {
	case "short":
		b.WriteString("Use one or two short sentences. ")
	case "long":
		b.WriteString("Be thorough: composition, subjects, lighting, colors and atmosphere. ")
	default:
		b.WriteString("Use a few sentences covering the main subjects and scene. ")
	}

	b.WriteString("Mention the setting explicitly as \"Setting: <place>\". ")
	if wantTags {
		b.WriteString("Finish with a single line of comma-separated style tags. ")
	}
	b.WriteString("Count distinct objects where possible.")
	return b.String()
}
