package cmdctx

import (
	"testing"

	"github.com/haasonsaas/relay/pkg/models"
)

type fakeCommand string

func (f fakeCommand) CommandName() string { return string(f) }

func TestNew(t *testing.T) {
	msg := &models.Message{Content: "!ping"}
	cc := New(msg)

	if cc.ID() == "" {
		t.Error("ID is empty")
	}
	if cc.Text() != "!ping" {
		t.Errorf("Text = %q, want %q", cc.Text(), "!ping")
	}
	if _, ok := cc.Prefix(); ok {
		t.Error("Prefix set on fresh context")
	}
	if _, ok := cc.Alias(); ok {
		t.Error("Alias set on fresh context")
	}
	if cc.Command() != nil {
		t.Error("Command set on fresh context")
	}
}

func TestWithFieldsProduceCopies(t *testing.T) {
	base := New(&models.Message{Content: "!ping"})

	withPrefix := base.WithPrefix("!")
	if _, ok := base.Prefix(); ok {
		t.Error("WithPrefix mutated the original context")
	}
	if p, ok := withPrefix.Prefix(); !ok || p != "!" {
		t.Errorf("Prefix = (%q, %v), want (%q, true)", p, ok, "!")
	}

	withAlias := withPrefix.WithAlias("ping").WithParamString("")
	if _, ok := withPrefix.Alias(); ok {
		t.Error("WithAlias mutated its receiver")
	}
	if a, _ := withAlias.Alias(); a != "ping" {
		t.Errorf("Alias = %q, want %q", a, "ping")
	}
	if ps, ok := withAlias.ParamString(); !ok || ps != "" {
		t.Errorf("ParamString = (%q, %v), want empty and set", ps, ok)
	}

	withCmd := withAlias.WithCommand(fakeCommand("ping"))
	if withAlias.Command() != nil {
		t.Error("WithCommand mutated its receiver")
	}
	if withCmd.Command().CommandName() != "ping" {
		t.Errorf("CommandName = %q, want %q", withCmd.Command().CommandName(), "ping")
	}

	// Identity survives the copies.
	if withCmd.ID() != base.ID() {
		t.Error("copy changed the context ID")
	}
}

func TestEmptyPrefixIsLegal(t *testing.T) {
	cc := New(&models.Message{Content: "ping"}).WithPrefix("")
	if p, ok := cc.Prefix(); !ok || p != "" {
		t.Errorf("Prefix = (%q, %v), want empty string and set", p, ok)
	}
}

func TestWithDataCopiesStore(t *testing.T) {
	base := New(&models.Message{Content: "x"}).WithData("k", 1)
	derived := base.WithData("k", 2).WithData("extra", "v")

	if v, _ := base.Get("k"); v != 1 {
		t.Errorf("base data mutated: k = %v, want 1", v)
	}
	if _, ok := base.Get("extra"); ok {
		t.Error("base data gained a key set on a copy")
	}
	if v, _ := derived.Get("k"); v != 2 {
		t.Errorf("derived k = %v, want 2", v)
	}
}
