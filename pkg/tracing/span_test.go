package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestChildSpansShareTrace(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "index", "run-1")
	_, child := StartChildSpan(ctx, "mirror")
	child.SetAttr("files", 3)
	child.End()
	root.End()

	if child.TraceID != "run-1" {
		t.Errorf("child trace = %q", child.TraceID)
	}
	if len(root.Children) != 1 || root.Children[0] != child {
		t.Fatal("child not attached to root")
	}

	var buf bytes.Buffer
	root.Log(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	out := buf.String()
	if !strings.Contains(out, "span=index") || !strings.Contains(out, "span=mirror") || !strings.Contains(out, "files=3") {
		t.Errorf("log output = %s", out)
	}
}

func TestChildWithoutParentStartsTrace(t *testing.T) {
	_, span := StartChildSpan(context.Background(), "orphan")
	if span.TraceID == "" {
		t.Error("expected a generated trace id")
	}
}
