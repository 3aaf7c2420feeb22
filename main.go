package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"InkBoard/internal/config"
	"InkBoard/internal/editor"
	"InkBoard/internal/input"
	pen "InkBoard/internal/net"
	"InkBoard/internal/page"
	"InkBoard/internal/persist"
	"InkBoard/internal/state"
	"InkBoard/internal/ui"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()})))

	if len(os.Args) > 1 && os.Args[1] == "browse" {
		browse()
		return
	}
	if err := run(cfg); err != nil {
		slog.Error("inkboard stopped", "error", err)
		os.Exit(1)
	}
}

// browse lists boards advertising a remote pen endpoint on the local network.
func browse() {
	err := pen.Browse(3*time.Second, func(addr string) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return
		}
		p, _ := strconv.Atoi(port)
		fmt.Println(pen.PenURL(host, p))
	})
	if err != nil {
		slog.Error("mdns browse", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, err := persist.Open(cfg.DatabasePath, slog.Default())
	if err != nil {
		return err
	}
	defer repo.Close()

	ed := editor.New()
	board := ui.NewBoardWidget(cfg.ViewWidth, cfg.ViewHeight)

	session, err := page.Open(ctx, page.Options{
		PageID:        cfg.PageID,
		ViewWidth:     cfg.ViewWidth,
		ViewHeight:    cfg.ViewHeight,
		Repository:    repo,
		Cache:         persist.NewFileCache(cfg.DataDir),
		Editor:        ed,
		Driver:        board,
		Surface:       board,
		ToolbarHeight: cfg.ToolbarHeight,
		Debounce:      cfg.Debounce(),
		Padding:       cfg.DocumentPadding,
		ThumbWidth:    cfg.ThumbWidth,
		Input: input.Config{
			QueueSize:         cfg.QueueSize,
			EraserRadius:      float64(cfg.EraserRadius),
			SimplifyTolerance: float64(cfg.SimplifyTolerance),
		},
		Ledger: state.NewJournal(),
	})
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}

	pipeline := input.NewPipeline()
	pipeline.Attach(session.Router())

	board.OnBatch = func(b input.Batch) {
		if err := session.Deliver(b); err != nil {
			slog.Warn("mouse batch dropped", "error", err)
		}
	}
	board.OnScroll = func(delta int) {
		if err := session.Scroll(delta); err != nil {
			slog.Warn("scroll dropped", "error", err)
		}
	}

	// the app must exist before the board posts frames to it
	win := ui.NewWindow("InkBoard", board, ui.NewToolbar(ed))

	surfaceID, err := session.Synchronizer().SurfaceCreated()
	if err != nil {
		return fmt.Errorf("open surface: %w", err)
	}
	session.Synchronizer().SurfaceChanged()

	status := "Remote pen disabled"
	if l, err := net.Listen("tcp", cfg.PenListenAddr); err != nil {
		slog.Warn("remote pen listener", "addr", cfg.PenListenAddr, "error", err)
	} else {
		port := pen.ListenPort(l)
		server := pen.NewServer(pipeline, cfg.ViewWidth, cfg.ViewHeight, slog.Default())
		go func() {
			if err := server.Serve(ctx, l); err != nil {
				slog.Error("remote pen server", "error", err)
			}
		}()

		if cfg.MDNS {
			adv, err := pen.Advertise(port)
			if err != nil {
				slog.Warn("mdns advertise", "error", err)
			} else {
				defer adv.Shutdown()
			}
		}

		host, err := pen.GetOutgoingIP()
		if err != nil {
			host = "localhost"
		}
		status = "Remote pen: " + pen.PenURL(host, port)
	}
	win.SetStatus(status)

	win.OnClose(func() {
		cancel()
		pipeline.Close()
		if err := session.Synchronizer().SurfaceDestroyed(surfaceID); err != nil {
			slog.Warn("surface destroyed", "error", err)
		}
		closeCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := session.Close(closeCtx); err != nil {
			slog.Error("close page", "error", err)
		}
	})

	slog.Info("InkBoard ready", "page", cfg.PageID, "data", cfg.DataDir)
	win.Run()
	return nil
}
