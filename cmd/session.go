package cmd

import (
	"errors"
	"path/filepath"

	billy "github.com/go-git/go-billy/v5"
	"go.uber.org/zap"

	"github.com/agentic-research/texmap/api"
	"github.com/agentic-research/texmap/internal/config"
	"github.com/agentic-research/texmap/internal/graph"
	"github.com/agentic-research/texmap/internal/ingest"
	"github.com/agentic-research/texmap/internal/journal"
	"github.com/agentic-research/texmap/internal/logging"
	"github.com/agentic-research/texmap/internal/texture"
	"github.com/agentic-research/texmap/internal/vfs"
	"github.com/agentic-research/texmap/internal/workspace"
)

var errNoScene = errors.New("no scene: pass --scene or --db, or set scene.file or scene.db")

// session is everything one command invocation works against.
type session struct {
	cfg    *config.Config
	log    *zap.Logger
	fs     billy.Filesystem
	store  graph.Store
	mapper *texture.Mapper
	tex    texture.TextureOptions
	filter graph.Filter

	// sceneFile is rewritten after mutations when the scene lives only in
	// memory.
	sceneFile string
	workspace *api.Workspace
}

func openSession(opts *options) (*session, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, err
	}
	s := &session{
		cfg: cfg,
		log: log,
		fs:  vfs.OS(),
		filter: graph.Filter{
			SelectionOnly:     opts.selection,
			IncludeReferenced: opts.referenced,
		},
	}

	scenePath := firstNonEmpty(opts.scenePath, cfg.Scene.File)
	dbPath := firstNonEmpty(opts.dbPath, cfg.Scene.DB)
	var scene *api.Scene
	if scenePath != "" {
		if scenePath, err = filepath.Abs(scenePath); err != nil {
			return nil, err
		}
		if scene, err = ingest.LoadFile(s.fs, scenePath); err != nil {
			return nil, err
		}
		s.workspace = scene.Workspace
	}

	switch {
	case dbPath != "":
		store, err := graph.OpenSQLiteStore(dbPath)
		if err != nil {
			return nil, err
		}
		s.store = store
	case scene != nil:
		s.store = graph.NewMemoryStore()
		s.sceneFile = scenePath
	default:
		return nil, errNoScene
	}
	if scene != nil {
		if err := ingest.Populate(s.store, scene); err != nil {
			_ = s.store.Close()
			return nil, err
		}
	}

	env := texture.NewEnv(s.store, s.fs, s.resolver())
	env.Log = log
	s.mapper = texture.NewMapper(env, texture.DefaultVariants()...)

	s.tex = texture.DefaultTextureOptions()
	s.tex.TX = cfg.Aux.TX
	s.tex.TEX = cfg.Aux.TEX

	log.Debug("session opened",
		zap.String("scene", scenePath),
		zap.String("db", dbPath),
		zap.String("root", s.resolver().Root))
	return s, nil
}

// resolver merges the configured workspace with the scene's own; the scene
// wins.
func (s *session) resolver() *workspace.Resolver {
	root := s.cfg.Workspace.Root
	vars := make(map[string]string, len(s.cfg.Workspace.Vars))
	for k, v := range s.cfg.Workspace.Vars {
		vars[k] = v
	}
	if ws := s.workspace; ws != nil {
		if ws.Root != "" {
			root = ws.Root
		}
		for k, v := range ws.Vars {
			vars[k] = v
		}
	}
	return workspace.New(root, vars)
}

// save persists node rewrites of an in-memory scene back to its file.
// Database scenes are written through already.
func (s *session) save() error {
	if s.sceneFile == "" {
		return nil
	}
	scene, err := ingest.Dump(s.store, s.workspace)
	if err != nil {
		return err
	}
	if err := ingest.SaveFile(s.fs, s.sceneFile, scene); err != nil {
		return err
	}
	s.log.Info("scene saved", zap.String("path", s.sceneFile))
	return nil
}

func (s *session) openJournal() (*journal.Journal, error) {
	return journal.Open(s.cfg.Journal.Path)
}

// openJournalOnly opens the configured journal for commands that do not
// touch a scene.
func openJournalOnly(opts *options) (*journal.Journal, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	return journal.Open(cfg.Journal.Path)
}

func (s *session) Close() error {
	_ = s.log.Sync()
	return s.store.Close()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
