package command

import (
	"errors"
	"testing"

	"github.com/cmdlink/cmdlink/internal/binding"
)

func TestBuild(t *testing.T) {
	b := binding.Binding{CommandName: "rmd--ls"}

	line, err := Build(b, "", "/")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if line != "/rmd ls" {
		t.Errorf("Build = %q, want %q", line, "/rmd ls")
	}
}

func TestBuild_AppendsArgsVerbatim(t *testing.T) {
	b := binding.Binding{CommandName: "rmd--add"}

	line, err := Build(b, "text=water time=10:00", "/")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if line != "/rmd add text=water time=10:00" {
		t.Errorf("Build = %q", line)
	}
}

func TestBuild_PrefixIdempotent(t *testing.T) {
	// A command already carrying the prefix is never double-prefixed.
	b := binding.Binding{CommandName: "/rmd--ls"}
	line, err := Build(b, "", "/")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if line != "/rmd ls" {
		t.Errorf("Build = %q, want %q", line, "/rmd ls")
	}

	// Rebuilding an already built line yields the same line.
	again, err := Build(binding.Binding{CommandName: binding.NormalizeName(line)}, "", "/")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if again != line {
		t.Errorf("rebuild = %q, want %q", again, line)
	}
}

func TestBuild_MissingContext(t *testing.T) {
	if _, err := Build(binding.Binding{}, "", "/"); !errors.Is(err, ErrMissingContext) {
		t.Errorf("empty command: expected ErrMissingContext, got: %v", err)
	}
	if _, err := Build(binding.Binding{CommandName: "rmd"}, "", ""); !errors.Is(err, ErrMissingContext) {
		t.Errorf("empty prefix: expected ErrMissingContext, got: %v", err)
	}
}
