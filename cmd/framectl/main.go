// Command framectl runs the extraction pipeline against local files and
// inspects sessions under a data root.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/framelab/frame-extraction-service/internal/app"
	"github.com/framelab/frame-extraction-service/internal/domain/entity"
	"github.com/framelab/frame-extraction-service/internal/infra/config"
	"github.com/framelab/frame-extraction-service/internal/infra/filesystem"
	"github.com/framelab/frame-extraction-service/internal/usecase"
	"github.com/framelab/frame-extraction-service/pkg/logger"
	"github.com/spf13/pflag"
)

const usage = `usage: framectl <command> [flags] <argument>

commands:
  extract <video.mp4>   store a video in a new session and sample its frames
  status <session_id>   print the status record of a session
  frames <session_id>   list the frames of a session
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	dataRoot string
	logLevel string
	fps      int
	width    int
	height   int
	quality  int
	prefix   string
	archive  string
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errors.New("missing command")
	}
	command := args[0]
	if command == "help" || command == "-h" || command == "--help" {
		fmt.Fprint(stdout, usage)
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var opts options
	flagSet := pflag.NewFlagSet("framectl "+command, pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&opts.dataRoot, "data-root", cfg.DataRoot, "directory holding the session areas")
	flagSet.StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr")
	flagSet.StringVar(&opts.prefix, "prefix", cfg.FramePrefix, "frame file name prefix")
	if command == "extract" {
		flagSet.IntVar(&opts.fps, "fps", 0, "frames to keep per second of video (required)")
		flagSet.IntVar(&opts.width, "width", cfg.FrameWidth, "frame width in pixels")
		flagSet.IntVar(&opts.height, "height", cfg.FrameHeight, "frame height in pixels")
		flagSet.IntVar(&opts.quality, "quality", cfg.JPEGQuality, "JPEG quality (1-100)")
		flagSet.StringVar(&opts.archive, "archive", "", "also write the frames to this zip file")
	}

	if err := flagSet.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if flagSet.NArg() != 1 {
		return fmt.Errorf("%s expects exactly one argument, got %d", command, flagSet.NArg())
	}
	target := flagSet.Arg(0)

	cfg.DataRoot = opts.dataRoot
	cfg.FramePrefix = opts.prefix

	switch command {
	case "extract":
		cfg.FrameWidth, cfg.FrameHeight, cfg.JPEGQuality = opts.width, opts.height, opts.quality
		return runExtract(ctx, cfg, opts, target, stdout)
	case "status":
		return runStatus(cfg, target, stdout)
	case "frames":
		return runFrames(cfg, target, stdout)
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

type extractSummary struct {
	SessionID  string              `json:"session_id"`
	Status     entity.StatusRecord `json:"status"`
	FrameCount int                 `json:"frame_count"`
	FramesDir  string              `json:"frames_dir"`
	Archive    string              `json:"archive,omitempty"`
}

func runExtract(ctx context.Context, cfg *config.Config, opts options, videoPath string, stdout io.Writer) error {
	if opts.fps <= 0 {
		return errors.New("--fps must be a positive integer")
	}

	// The CLI always runs in-process against the local data root.
	cfg.DispatchMode = config.DispatchLocal
	cfg.DatabaseEnabled = false
	cfg.RabbitMQEnabled = false
	cfg.ArchiveEnabled = false
	cfg.NotifyEnabled = false
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(opts.logLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	infra, err := app.Connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()
	pipeline := app.NewPipeline(cfg, infra, log)

	src, err := os.Open(videoPath)
	if err != nil {
		return fmt.Errorf("open video: %w", err)
	}
	defer src.Close()

	sessionID, err := pipeline.Ingest.CreateSession()
	if err != nil {
		return err
	}

	video, err := pipeline.Ingest.StoreVideo(ctx, src, filepath.Base(videoPath), contentTypeFor(videoPath), sessionID)
	if err != nil {
		return err
	}

	res, err := pipeline.Process.Run(ctx, entity.ExtractionRequest{
		SessionID:     sessionID,
		TargetFPS:     opts.fps,
		VideoSize:     video.Size,
		VideoChecksum: video.Checksum,
	})
	if err != nil {
		return fmt.Errorf("session %s: %w", sessionID, err)
	}

	summary := extractSummary{
		SessionID:  sessionID,
		Status:     res.Status,
		FrameCount: len(res.Frames),
		FramesDir:  pipeline.Layout.FramesDir(sessionID),
	}

	if opts.archive != "" {
		paths, err := pipeline.Catalog.Paths(sessionID)
		if err != nil {
			return err
		}
		if err := pipeline.Zipper.CreateZip(ctx, paths, opts.archive); err != nil {
			return fmt.Errorf("write archive: %w", err)
		}
		summary.Archive = opts.archive
	}

	return writeJSON(stdout, summary)
}

func runStatus(cfg *config.Config, sessionID string, stdout io.Writer) error {
	store := filesystem.NewSessionStore(filesystem.NewLayout(cfg.DataRoot, cfg.FramePrefix))
	if !store.Exists(sessionID) {
		return fmt.Errorf("session %s not found", sessionID)
	}
	record, err := store.ReadStatus(sessionID)
	if err != nil {
		return err
	}
	return writeJSON(stdout, record)
}

func runFrames(cfg *config.Config, sessionID string, stdout io.Writer) error {
	catalog := usecase.NewFrameCatalog(filesystem.NewLayout(cfg.DataRoot, cfg.FramePrefix))
	frames, err := catalog.List(sessionID)
	if err != nil {
		return err
	}
	return writeJSON(stdout, map[string][]string{"frames": frames})
}

func contentTypeFor(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
