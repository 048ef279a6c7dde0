package application

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// MigrationManager applies the schema files modules register at load time.
type MigrationManager interface {
	RegisterSchema(fs ...*embed.FS)
	Run() error
	Rollback() error
}

func NewMigrationManager(pool *pgxpool.Pool) MigrationManager {
	return &migrationManager{pool: pool}
}

type migrationManager struct {
	pool    *pgxpool.Pool
	schemas []*embed.FS
}

func (m *migrationManager) RegisterSchema(fs ...*embed.FS) {
	m.schemas = append(m.schemas, fs...)
}

// schemaDirs lists the directories inside fsys that contain .sql files, so
// that embedded schemas can live at any depth.
func schemaDirs(fsys fs.FS) ([]string, error) {
	dirSet := make(map[string]struct{})
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(p, ".sql") {
			dirSet[path.Dir(p)] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	dirs := make([]string, 0, len(dirSet))
	for dir := range dirSet {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs, nil
}

func (m *migrationManager) openDB() (*sql.DB, error) {
	if m.pool == nil {
		return nil, fmt.Errorf("migrations require a database pool")
	}
	return sql.Open("pgx", m.pool.Config().ConnString())
}

func (m *migrationManager) forEachProvider(f func(ctx context.Context, p *goose.Provider) error) error {
	if len(m.schemas) == 0 {
		return nil
	}
	db, err := m.openDB()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	for _, fsys := range m.schemas {
		dirs, err := schemaDirs(fsys)
		if err != nil {
			return err
		}
		for _, dir := range dirs {
			sub, err := fs.Sub(fsys, dir)
			if err != nil {
				return err
			}
			provider, err := goose.NewProvider(goose.DialectPostgres, db, sub)
			if err != nil {
				return err
			}
			if err := f(ctx, provider); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *migrationManager) Run() error {
	return m.forEachProvider(func(ctx context.Context, p *goose.Provider) error {
		_, err := p.Up(ctx)
		return err
	})
}

func (m *migrationManager) Rollback() error {
	return m.forEachProvider(func(ctx context.Context, p *goose.Provider) error {
		_, err := p.Down(ctx)
		return err
	})
}
