package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"quill/app/api"
	"quill/app/config"
	"quill/app/repositories"
	"quill/app/services"
)

var errBackupUnsupported = errors.New("backup and restore need the badger storage driver")

// store is the local persistence the client runs on.
type store interface {
	repositories.SessionRepository
	repositories.PostCache
	io.Closer
}

// badgerStore adapts the Badger repository to store.
type badgerStore struct {
	*repositories.BadgerSessionRepository
	*repositories.BadgerPostCache
	repo *repositories.Repository
}

func (s *badgerStore) Close() error { return s.repo.Close() }

// app is one CLI invocation's wiring.
type app struct {
	cfg     config.Config
	stdin   io.Reader
	lines   *bufio.Reader
	stdout  io.Writer
	stderr  io.Writer
	logger  *log.Logger
	logFile io.Closer
	store   store
	badger  *repositories.Repository
	session *services.SessionStore
	feed    *services.FeedController
}

// InitLogger opens the log file at path for appending.
func InitLogger(path string) (*log.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return log.New(f, "quill: ", log.LstdFlags|log.Lshortfile), f, nil
}

func openStore(cfg config.Config) (store, *repositories.Repository, error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		if err := os.MkdirAll(cfg.Storage.DataDir, 0700); err != nil {
			return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		repo, err := repositories.NewSQLiteRepository(filepath.Join(cfg.Storage.DataDir, "quill.db"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return repo, nil, nil
	default:
		repo, err := repositories.NewRepository(filepath.Join(cfg.Storage.DataDir, "badger"))
		if err != nil {
			return nil, nil, err
		}
		return &badgerStore{
			BadgerSessionRepository: repo.Sessions(),
			BadgerPostCache:         repo.Posts(),
			repo:                    repo,
		}, repo, nil
	}
}

// newApp opens the store and wires the session and the feed. The persisted
// session is hydrated; it is not verified.
func newApp(cfg config.Config, stdin io.Reader, stdout, stderr io.Writer) (*app, error) {
	logger, logFile, err := InitLogger(cfg.LogPath())
	if err != nil {
		return nil, err
	}
	st, badgerRepo, err := openStore(cfg)
	if err != nil {
		logFile.Close()
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		stdin:   stdin,
		stdout:  stdout,
		stderr:  stderr,
		logger:  logger,
		logFile: logFile,
		store:   st,
		badger:  badgerRepo,
	}
	client := api.NewClient(cfg.API.BaseURL,
		api.WithTimeout(cfg.API.Timeout),
		api.WithLogger(logger),
		api.WithTokenSource(func() string { return a.session.Token() }),
	)
	a.session = services.NewSessionStore(st, client, services.RedirectorFunc(a.redirectToSignIn), logger)
	a.feed = services.NewFeedController(client, a.session, st, services.NotifierFunc(a.notify), logger)

	if err := a.session.Hydrate(); err != nil {
		logger.Printf("Failed to restore session: %v", err)
	}
	return a, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Printf("Failed to close store: %v", err)
	}
	a.logFile.Close()
}

func (a *app) redirectToSignIn() {
	fmt.Fprintln(a.stderr, "You are signed out. Run 'quill signin' to continue.")
}

func (a *app) notify(n services.Notice) {
	switch n.Kind {
	case services.NoticeEmptyFeed, services.NoticeStaleFeed:
		fmt.Fprintf(a.stdout, "(%s)\n", n.Message)
	default:
		fmt.Fprintf(a.stderr, "! %s\n", n.Message)
	}
}
