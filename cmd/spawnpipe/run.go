package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/askiada/go-spawn/internal/config"
	"github.com/askiada/go-spawn/internal/logging"
	"github.com/askiada/go-spawn/pkg/item"
	"github.com/askiada/go-spawn/pkg/pipeline"
	"github.com/askiada/go-spawn/pkg/pipeline/drawer"
	"github.com/askiada/go-spawn/pkg/pipeline/measure"
	"github.com/askiada/go-spawn/pkg/pipeline/model"
	"github.com/askiada/go-spawn/pkg/pipeline/tolerate"
	"github.com/askiada/go-spawn/pkg/spawn"
)

var errItemsFailed = errors.New("items failed")

// stdinPath names the item read from standard input.
const stdinPath = "stdin"

type streams struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

func run(ctx context.Context, cfg *config.Config, files []string, std streams) error {
	logger := logging.New("spawnpipe")

	if cfg.MetricsAddr != "" {
		addr, stop, err := serveMetrics(cfg.MetricsAddr, logger)
		if err != nil {
			return err
		}
		defer stop()

		logger.Info("serving metrics", slog.String("addr", addr))
	}

	opts, err := spawnOptions(cfg, std)
	if err != nil {
		return err
	}

	if cfg.Mode == "run" {
		return spawn.Run(ctx, opts, func() {
			logger.Debug("command succeeded", slog.String("command", cfg.Cmd))
		})
	}

	return runPipeline(ctx, cfg, opts, files, std, logger)
}

func spawnOptions(cfg *config.Config, std streams) (spawn.Options, error) {
	opts := spawn.Options{
		Cmd:     cfg.Cmd,
		Args:    cfg.Args,
		Cwd:     cfg.Cwd,
		Env:     cfg.Env,
		Timeout: cfg.Timeout,
		Stdout:  std.out,
		Stderr:  std.err,
		Logger:  logging.New("spawn"),
	}

	if cfg.Rename != "" {
		rename, err := renameFunc(cfg.Rename)
		if err != nil {
			return opts, err
		}
		opts.Filename = rename
	}

	return opts, nil
}

func runPipeline(ctx context.Context, cfg *config.Config, opts spawn.Options, files []string, std streams, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var pipeOpts []model.PipelineOption

	if cfg.Draw != "" {
		msr := measure.NewDefaultMeasure()
		pipeOpts = append(pipeOpts,
			measure.PipelineMeasure(msr),
			drawer.PipelineDrawer(drawer.NewDOTDrawer(cfg.Draw), msr),
		)
	}

	var tol *tolerate.Tolerator
	if cfg.ContinueOnError {
		tol = tolerate.New(tolerate.WithLogger(logger), tolerate.WithMaxErrors(cfg.MaxErrors))
		pipeOpts = append(pipeOpts, tol)
	}

	pipe, err := pipeline.New(ctx, pipeOpts...)
	if err != nil {
		return errors.Wrap(err, "unable to create pipeline")
	}

	root, err := pipeline.AddRootStep(pipe, "read", readItems(files, cfg.Stream, std.in))
	if err != nil {
		return errors.Wrap(err, "unable to add read step")
	}

	var (
		stage *model.Step[*item.Item]
		write bool
	)

	switch cfg.Mode {
	case "stream":
		stage, err = spawn.AddStream(pipe, "stream", root, opts)
		write = true
	case "once":
		stage, err = spawn.AddOnce(pipe, "once", root, opts)
		write = cfg.Out != ""
	case "each":
		stage, err = spawn.AddEach(pipe, "each", root, opts)
		write = cfg.Out != ""
	default:
		return errors.Wrapf(errUnknownMode, "%q", cfg.Mode)
	}

	if err != nil {
		return err
	}

	sink := discardItem
	if write {
		sink = writeItem(cfg.Out, std.out)
	}

	err = pipeline.AddSink(pipe, "write", stage, sink)
	if err != nil {
		return errors.Wrap(err, "unable to add write step")
	}

	err = pipe.Run()
	if err != nil {
		return err
	}

	if tol != nil {
		if failed := len(tol.Errors()); failed > 0 {
			return errors.Wrapf(errItemsFailed, "%d", failed)
		}
	}

	return nil
}

// readItems emits one item per file, or a single item holding standard input when files is empty.
func readItems(files []string, stream bool, stdin io.Reader) func(ctx context.Context, rootChan chan<- *item.Item) error {
	return func(ctx context.Context, rootChan chan<- *item.Item) error {
		send := func(it *item.Item) error {
			select {
			case <-ctx.Done():
				if it.Kind() == item.Stream {
					_ = it.Stream().Close()
				}

				return ctx.Err()
			case rootChan <- it:
				return nil
			}
		}

		if len(files) == 0 {
			it, err := readerItem(stdinPath, io.NopCloser(stdin), stream)
			if err != nil {
				return err
			}

			return send(it)
		}

		for _, path := range files {
			file, err := os.Open(path)
			if err != nil {
				return errors.Wrapf(err, "unable to open %s", path)
			}

			it, err := readerItem(path, file, stream)
			if err != nil {
				return err
			}

			err = send(it)
			if err != nil {
				return err
			}
		}

		return nil
	}
}

func readerItem(path string, r io.ReadCloser, stream bool) (*item.Item, error) {
	if stream {
		return item.NewStream(path, r), nil
	}
	defer r.Close()

	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read %s", path)
	}

	return item.NewBytes(path, buf), nil
}

// writeItem writes the payload of every item to dir, or to stdout when dir is empty.
func writeItem(dir string, stdout io.Writer) func(ctx context.Context, it *item.Item) error {
	return func(_ context.Context, it *item.Item) error {
		if it.IsEmpty() {
			return nil
		}

		if dir == "" {
			return copyPayload(stdout, it)
		}

		dest := destination(dir, it.Path)

		err := os.MkdirAll(filepath.Dir(dest), 0o755)
		if err != nil {
			return errors.Wrapf(err, "unable to create directory for %s", dest)
		}

		file, err := os.Create(dest)
		if err != nil {
			return errors.Wrapf(err, "unable to create %s", dest)
		}

		err = copyPayload(file, it)
		closeErr := file.Close()

		if err != nil {
			return err
		}

		return errors.Wrapf(closeErr, "unable to close %s", dest)
	}
}

// discardItem releases the stream of an item nobody writes.
func discardItem(_ context.Context, it *item.Item) error {
	if it.Kind() == item.Stream {
		return errors.Wrapf(it.Stream().Close(), "unable to close %s", it.Path)
	}

	return nil
}

func copyPayload(w io.Writer, it *item.Item) error {
	if it.Kind() == item.Bytes {
		_, err := w.Write(it.Bytes())

		return errors.Wrapf(err, "unable to write %s", it.Path)
	}

	stream := it.Stream()

	_, err := io.Copy(w, stream)
	closeErr := stream.Close()

	if err != nil {
		return errors.Wrapf(err, "unable to write %s", it.Path)
	}

	return errors.Wrapf(closeErr, "unable to close %s", it.Path)
}

// destination keeps relative paths under dir and flattens the others.
func destination(dir, path string) string {
	clean := filepath.Clean(path)
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return filepath.Join(dir, filepath.Base(clean))
	}

	return filepath.Join(dir, clean)
}
