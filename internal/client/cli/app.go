package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dmitrijs2005/soultalk/internal/client/client"
	"github.com/dmitrijs2005/soultalk/internal/client/config"
	"github.com/dmitrijs2005/soultalk/internal/client/repositories/session"
	"github.com/dmitrijs2005/soultalk/internal/client/services"
	"github.com/dmitrijs2005/soultalk/internal/filex"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type App struct {
	config      *config.Config
	authService services.AuthService
	reader      *bufio.Reader
	out         io.Writer
	closeDB     func() error

	mu   sync.Mutex
	mode Mode
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	dir, err := filex.EnsureDir(c.StateDir)
	if err != nil {
		return nil, err
	}

	db, err := client.InitDatabase(ctx, filepath.Join(dir, "state.db"))
	if err != nil {
		log.Printf("error initializing database: %s", err.Error())
		return nil, err
	}

	api := client.NewHTTPClient(c.ServerURL, c.RequestTimeout)
	as := services.NewAuthService(api, session.NewSQLiteRepository(db))

	return &App{
		config:      c,
		authService: as,
		reader:      bufio.NewReader(os.Stdin),
		out:         os.Stdout,
		closeDB:     db.Close,
	}, nil
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mode != mode {
		a.mode = mode
		log.Printf("Switched to %s mode\n", mode)
	}
}

func (a *App) getMode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

func (a *App) isLoggedIn() bool {
	return a.authService.Current() != nil
}

func (a *App) status() string {
	s := ""
	if cur := a.authService.Current(); cur != nil {
		s = cur.Email + " "
	}
	s += string(a.getMode())
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

func (a *App) checkOnline(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := a.authService.Ping(ctx); err != nil {
		a.setMode(ModeOffline)
		return
	}
	a.setMode(ModeOnline)
}

func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer func() { _ = a.closeDB() }()

	fmt.Fprintln(a.out, "Welcome to SoulTalk CLI (type 'help' for commands)")

	if s, err := a.authService.Restore(ctx); err != nil {
		log.Printf("could not restore session: %v", err)
	} else if s != nil {
		fmt.Fprintf(a.out, "Signed in as %s\n", s.Email)
	}

	a.checkOnline(ctx)
	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	runREPL(ctx, a, a.status, a.reader)
}
