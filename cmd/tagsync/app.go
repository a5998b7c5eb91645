package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"tagsync/internal/config"
	"tagsync/internal/crawler"
	"tagsync/internal/extractor"
	"tagsync/internal/index"
	"tagsync/internal/inspect"
	"tagsync/internal/layer"
	"tagsync/internal/logging"
	"tagsync/internal/prompt"
	"tagsync/internal/resolver"
	"tagsync/internal/storage"
	"tagsync/internal/syncer"
	"tagsync/internal/tag"
	"tagsync/internal/workspace"

	"go.uber.org/zap"
)

// app holds the components every subcommand shares.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	ws        *workspace.Workspace
	codec     *tag.Codec
	resolver  *resolver.Resolver
	store     storage.Store
	sync      *syncer.Service
	inspector *inspect.Inspector
}

// openApp loads the configuration and indexes the project. Callers must
// close it.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if rootDir != "" {
		cfg.Project.Root = rootDir
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.JSON)
	if err != nil {
		return nil, err
	}

	codec, err := tag.NewCodec(cfg.Tag.Pattern)
	if err != nil {
		return nil, err
	}

	// 1. Setup Extractor & Indexer
	ext, err := extractor.NewExtractor("java")
	if err != nil {
		return nil, fmt.Errorf("failed to create extractor: %w", err)
	}
	cr := crawler.NewCrawler(ext,
		crawler.WithIgnored(cfg.Project.Ignore),
		crawler.WithMaxFileBytes(cfg.Project.MaxFileBytes),
		crawler.WithWorkers(cfg.Project.Workers),
		crawler.WithLogger(logger))

	// 2. Build the workspace
	ws, err := workspace.Open(ctx, cfg.Project.Root, index.NewIndexer(cr), workspace.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	// 3. History store, relative to the project root unless absolute
	path := cfg.Store.Path
	if dbPath != "" {
		path = dbPath
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(ws.Root(), path)
	}
	store, err := storage.NewSQLiteStore(path)
	if err != nil {
		ws.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	classifier := layer.NewClassifier(cfg.Layers)
	res := resolver.New(classifier, resolver.Options{
		MaxClosureIterations: cfg.Resolver.MaxClosureIterations,
		MaxReferenceDepth:    cfg.Resolver.MaxReferenceDepth,
		MaxWalkDepth:         cfg.Resolver.MaxWalkDepth,
		TextHeuristic:        cfg.Resolver.TextHeuristic,
		ImplSuffix:           cfg.Layers.ImplMarker,
	}, logger)

	opts := []syncer.Option{
		syncer.WithLocator(ws),
		syncer.WithHistory(store),
		syncer.WithLogger(logger),
		syncer.WithAnnotation(cfg.Tag.Annotation),
	}
	if !noInput {
		if p, err := prompt.New(codec); err == nil {
			opts = append(opts, syncer.WithPrompter(p))
		} else {
			logger.Debug("running without a prompter", zap.Error(err))
		}
	}
	svc := syncer.New(ws, res, codec, opts...)

	return &app{
		cfg:      cfg,
		logger:   logger,
		ws:       ws,
		codec:    codec,
		resolver: res,
		store:    store,
		sync:     svc,
		inspector: inspect.New(ws, classifier, codec, inspect.Options{
			Annotation:  cfg.Tag.Annotation,
			Placeholder: cfg.Tag.Placeholder,
		}, svc, logger),
	}, nil
}

func (a *app) Close() error {
	err := errors.Join(a.store.Close(), a.ws.Close())
	_ = a.logger.Sync()
	return err
}
