package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"

	"github.com/MrSnakeDoc/untold/internal/logger"
)

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{}, logger.New("error", false))
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}

func TestSetupStdoutExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup(context.Background(), Config{
		Enabled:     true,
		SampleRatio: 1,
		Stdout:      &buf,
	}, logger.New("error", false))
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "rl.suggest_layout")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}
	if !strings.Contains(buf.String(), "rl.suggest_layout") {
		t.Errorf("span not exported, got %q", buf.String())
	}
}

func TestClampRatio(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-1, 0},
		{0.25, 0.25},
		{3, 1},
	}
	for _, tt := range tests {
		if got := clampRatio(tt.in); got != tt.want {
			t.Errorf("clampRatio(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
