package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrSnakeDoc/untold/internal/index"
	"github.com/MrSnakeDoc/untold/internal/logger"
)

func writeWidgets(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWidgetReloader_DisablesRemovedWidgets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "widgets.yaml")
	writeWidgets(t, path, `widgets:
  - name: stock
    category: finance
  - name: news
`)

	memIndex := index.NewMemoryIndex()
	wr := NewWidgetReloader(path, nil, memIndex, logger.New("error", false), time.Hour, nil)
	first := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	wr.now = func() time.Time { return first }

	ctx := context.Background()
	if err := wr.Reload(ctx); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if memIndex.WidgetCount() != 2 {
		t.Fatalf("WidgetCount() = %d, want 2", memIndex.WidgetCount())
	}

	writeWidgets(t, path, "widgets:\n  - name: stock\n")
	if err := wr.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	news, ok := memIndex.Widget("news")
	if !ok || !news.Disabled {
		t.Fatalf("news = %+v, %v, want disabled", news, ok)
	}
	if !news.UpdatedAt.Equal(first) {
		t.Errorf("disabled at %v, want %v", news.UpdatedAt, first)
	}

	// A later reload keeps the original disable time.
	wr.now = func() time.Time { return first.Add(48 * time.Hour) }
	if err := wr.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	news, _ = memIndex.Widget("news")
	if !news.UpdatedAt.Equal(first) {
		t.Errorf("disable time moved to %v", news.UpdatedAt)
	}

	// Re-adding the widget enables it again.
	writeWidgets(t, path, "widgets:\n  - name: stock\n  - name: news\n")
	if err := wr.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	if news, _ = memIndex.Widget("news"); news.Disabled {
		t.Error("re-added widget still disabled")
	}
}

func TestWidgetReloader_FailedReloadKeepsCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "widgets.yaml")
	writeWidgets(t, path, "widgets:\n  - name: stock\n")

	memIndex := index.NewMemoryIndex()
	wr := NewWidgetReloader(path, nil, memIndex, logger.New("error", false), time.Hour, nil)
	if err := wr.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}

	writeWidgets(t, path, "widgets:\n  - name: a\n  - name: a\n")
	if err := wr.Reload(context.Background()); err == nil {
		t.Fatal("Reload() accepted duplicate widgets")
	}
	if _, ok := memIndex.Widget("stock"); !ok {
		t.Error("failed reload dropped the previous catalog")
	}
}

func TestWidgetReloader_ManualTrigger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "widgets.yaml")
	writeWidgets(t, path, "widgets:\n  - name: stock\n")

	memIndex := index.NewMemoryIndex()
	trigger := make(chan struct{}, 1)
	wr := NewWidgetReloader(path, nil, memIndex, logger.New("error", false), time.Hour, trigger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := wr.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer wr.Stop()

	writeWidgets(t, path, "widgets:\n  - name: stock\n  - name: news\n")
	trigger <- struct{}{}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if memIndex.WidgetCount() == 2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("manual reload not applied, WidgetCount() = %d", memIndex.WidgetCount())
}

func TestWidgetReloader_StartFailsOnMissingFile(t *testing.T) {
	wr := NewWidgetReloader(filepath.Join(t.TempDir(), "none.yaml"), nil, index.NewMemoryIndex(), logger.New("error", false), time.Hour, nil)
	if err := wr.Start(context.Background()); err == nil {
		t.Error("Start() should fail when the settings file is missing")
	}
}
