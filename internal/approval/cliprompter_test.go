package approval

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestCLIPrompterYes(t *testing.T) {
	p := NewCLIPrompter(strings.NewReader("y\n"), &bytes.Buffer{})
	d, err := p.Ask(context.Background(), Request{ToolName: "write_file"})
	if err != nil {
		t.Fatal(err)
	}
	if !d.Approved || d.Always != "" {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestCLIPrompterAlwaysTool(t *testing.T) {
	p := NewCLIPrompter(strings.NewReader("t\n"), &bytes.Buffer{})
	d, err := p.Ask(context.Background(), Request{ToolName: "write_file"})
	if err != nil {
		t.Fatal(err)
	}
	if !d.Approved || d.Always != "tool" {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestCLIPrompterDefaultDenies(t *testing.T) {
	p := NewCLIPrompter(strings.NewReader("garbage\n"), &bytes.Buffer{})
	d, err := p.Ask(context.Background(), Request{ToolName: "write_file"})
	if err != nil {
		t.Fatal(err)
	}
	if d.Approved {
		t.Fatal("expected unrecognized input to deny")
	}
}

func TestCLIPrompterTypedConfirmRequiresExactWord(t *testing.T) {
	p := NewCLIPrompter(strings.NewReader("yes\n"), &bytes.Buffer{})
	d, err := p.Ask(context.Background(), Request{ToolName: "bash", TypedConfirm: true})
	if err != nil {
		t.Fatal(err)
	}
	if d.Approved {
		t.Fatal("expected typed-confirm to reject anything but the literal word confirm")
	}
}

func TestCLIPrompterTypedConfirmAccepts(t *testing.T) {
	p := NewCLIPrompter(strings.NewReader("confirm\n"), &bytes.Buffer{})
	d, err := p.Ask(context.Background(), Request{ToolName: "bash", TypedConfirm: true})
	if err != nil {
		t.Fatal(err)
	}
	if !d.Approved {
		t.Fatal("expected the literal word confirm to approve")
	}
}

func TestCLIPrompterCancelledContext(t *testing.T) {
	p := NewCLIPrompter(strings.NewReader(""), &bytes.Buffer{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Ask(ctx, Request{ToolName: "bash"})
	if err == nil {
		t.Fatal("expected an error from a cancelled context")
	}
}
