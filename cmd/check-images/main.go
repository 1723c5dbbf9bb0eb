// Command check-images verifies that an image directory holds the complete
// numbered sequence the adjuster overlays, and lists every gap.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hideo54/image-adjuster/internal/domain"
	"github.com/hideo54/image-adjuster/internal/imageseq"
	"github.com/hideo54/image-adjuster/internal/platform/logging"
)

func main() {
	var (
		dir      = flag.String("dir", envOr("IMAGE_DIR", "indexed_images"), "Image directory (or set IMAGE_DIR env)")
		ext      = flag.String("ext", envOr("IMAGE_EXT", ".jpg"), "Image file extension (or set IMAGE_EXT env)")
		maxIndex = flag.Int("max-index", domain.DefaultMaxIndex, "Highest base frame index")
		verbose  = flag.Bool("verbose", false, "Verbose logging")
	)
	flag.Parse()

	if *maxIndex < 0 {
		log.Fatal("max-index must not be negative")
	}

	level := "info"
	if *verbose {
		level = "debug"
	}
	logging.InitLogger(level, "text")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	seq := imageseq.New(*dir, *ext, *maxIndex)
	if info, err := os.Stat(seq.Dir); err != nil || !info.IsDir() {
		log.Fatalf("Image directory %q is not readable", seq.Dir)
	}

	slog.Debug("Scanning image sequence", "dir", seq.Dir, "first", seq.Name(0), "last", seq.Name(seq.Len()-1))

	missing, err := seq.Missing(ctx)
	if err != nil {
		log.Fatalf("Scan failed: %v", err)
	}

	if len(missing) == 0 {
		slog.Info("Image sequence complete", "dir", seq.Dir, "images", seq.Len())
		return
	}

	for _, name := range missing {
		fmt.Println(name)
	}
	slog.Error("Image sequence incomplete", "dir", seq.Dir, "missing", len(missing), "expected", seq.Len())
	os.Exit(1)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
