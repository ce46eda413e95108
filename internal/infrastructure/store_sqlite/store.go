package store_sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/davarch/ci-board/internal/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const timeLayout = time.RFC3339

// Store is the SQLite-backed persistence collaborator. Pipelines and jobs
// carry unique indexes on their external ci ids; SavePipeline and SaveJob
// write through conflict-resolving upserts, so two concurrent creates for
// the same external id collapse into one row.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

func OpenAndMigrate(path string) (*Store, error) {
	s, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Migrate() error {
	m, err := s.migrator()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// MigrationVersion reports the applied schema version and whether the last
// migration left the schema dirty. Version 0 means no migration applied yet.
func (s *Store) MigrationVersion() (uint, bool, error) {
	m, err := s.migrator()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if err == migrate.ErrNilVersion {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return version, dirty, nil
}

func (s *Store) migrator() (*migrate.Migrate, error) {
	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return nil, err
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, err
	}

	return migrate.NewWithInstance("iofs", source, "sqlite3", driver)
}

func (s *Store) ProjectByRepositoryID(ctx context.Context, repositoryID int64) (*domain.Project, error) {
	var p domain.Project
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, repository_url, repository_id
		FROM projects
		WHERE repository_id = ?
	`, repositoryID).Scan(&p.ID, &p.Name, &p.RepositoryURL, &p.RepositoryID)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	versions, err := s.versionsByProject(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Versions = versions

	return &p, nil
}

func (s *Store) versionsByProject(ctx context.Context, projectID int64) ([]*domain.ProjectVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, version, branch_id, project_id
		FROM project_versions
		WHERE project_id = ?
		ORDER BY version DESC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []*domain.ProjectVersion
	for rows.Next() {
		var v domain.ProjectVersion
		if err := rows.Scan(&v.ID, &v.Version, &v.BranchID, &v.ProjectID); err != nil {
			return nil, err
		}
		versions = append(versions, &v)
	}
	return versions, rows.Err()
}

// PipelinesByProject returns the pipelines attached anywhere under the
// project, across every version, most recent first.
func (s *Store) PipelinesByProject(ctx context.Context, project *domain.Project) ([]*domain.Pipeline, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.ci_id, p.sha1, p.previous_sha1, p.changes_url, p.status,
		       p.url, p.created_date, p.end_date, p.project_version_id
		FROM pipelines p
		JOIN project_versions v ON v.id = p.project_version_id
		WHERE v.project_id = ?
		ORDER BY p.created_date DESC
	`, project.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPipelines(rows)
}

func (s *Store) PipelineByCIID(ctx context.Context, ciID int64) (*domain.Pipeline, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, ci_id, sha1, previous_sha1, changes_url, status,
		       url, created_date, end_date, project_version_id
		FROM pipelines
		WHERE ci_id = ?
	`, ciID)

	p, err := scanPipeline(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) JobByCIID(ctx context.Context, ciID int64) (*domain.Job, error) {
	var (
		j     domain.Job
		start sql.NullString
		end   sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, ci_id, name, status, logs_url, start_date, end_date, pipeline_id
		FROM jobs
		WHERE ci_id = ?
	`, ciID).Scan(&j.ID, &j.CIID, &j.Name, &j.Status, &j.LogsURL, &start, &end, &j.PipelineID)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if j.StartDate, err = parseNullTime(start); err != nil {
		return nil, err
	}
	if j.EndDate, err = parseNullTime(end); err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *Store) SavePipeline(ctx context.Context, p *domain.Pipeline) error {
	if p.ID != 0 {
		_, err := s.db.ExecContext(ctx, `
			UPDATE pipelines
			SET status = ?, end_date = ?
			WHERE id = ?
		`, string(p.Status), formatNullTime(p.EndDate), p.ID)
		return err
	}

	// end_date stays set-once even when two creates race on the same ci_id.
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO pipelines (ci_id, sha1, previous_sha1, changes_url, status,
		                       url, created_date, end_date, project_version_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ci_id) DO UPDATE SET
			status   = excluded.status,
			end_date = COALESCE(pipelines.end_date, excluded.end_date)
	`, p.CIID, p.SHA1, p.PreviousSHA1, p.ChangesURL, string(p.Status),
		p.URL, p.CreatedDate.UTC().Format(timeLayout), formatNullTime(p.EndDate), p.ProjectVersionID)
	if err != nil {
		return err
	}

	if id, err := res.LastInsertId(); err == nil {
		p.ID = id
	}
	return nil
}

func (s *Store) SaveJob(ctx context.Context, j *domain.Job) error {
	if j.ID != 0 {
		_, err := s.db.ExecContext(ctx, `
			UPDATE jobs
			SET status = ?, start_date = ?, end_date = ?
			WHERE id = ?
		`, string(j.Status), formatNullTime(j.StartDate), formatNullTime(j.EndDate), j.ID)
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (ci_id, name, status, logs_url, start_date, end_date, pipeline_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ci_id) DO UPDATE SET
			status     = excluded.status,
			start_date = COALESCE(excluded.start_date, jobs.start_date),
			end_date   = COALESCE(excluded.end_date, jobs.end_date)
	`, j.CIID, j.Name, string(j.Status), j.LogsURL,
		formatNullTime(j.StartDate), formatNullTime(j.EndDate), j.PipelineID)
	if err != nil {
		return err
	}

	if id, err := res.LastInsertId(); err == nil {
		j.ID = id
	}
	return nil
}

func (s *Store) CreateProject(ctx context.Context, p *domain.Project) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO projects (name, repository_url, repository_id)
		VALUES (?, ?, ?)
	`, p.Name, p.RepositoryURL, p.RepositoryID)
	if err != nil {
		return err
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return err
	}

	for _, v := range p.Versions {
		v.ProjectID = p.ID
		res, err := tx.ExecContext(ctx, `
			INSERT INTO project_versions (version, branch_id, project_id)
			VALUES (?, ?, ?)
		`, v.Version, v.BranchID, v.ProjectID)
		if err != nil {
			return err
		}
		if v.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) CreateVersion(ctx context.Context, v *domain.ProjectVersion) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO project_versions (version, branch_id, project_id)
		VALUES (?, ?, ?)
	`, v.Version, v.BranchID, v.ProjectID)
	if err != nil {
		return err
	}
	v.ID, err = res.LastInsertId()
	return err
}

// ListProjects loads the dashboard tree: every project with its versions
// (newest first), their pipelines (most recent first) and each pipeline's
// jobs ordered by end date ascending.
func (s *Store) ListProjects(ctx context.Context) ([]*domain.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, repository_url, repository_id
		FROM projects
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.RepositoryURL, &p.RepositoryID); err != nil {
			return nil, err
		}
		projects = append(projects, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, p := range projects {
		versions, err := s.versionsByProject(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		p.Versions = versions

		for _, v := range versions {
			if err := s.fillVersionPipelines(ctx, v); err != nil {
				return nil, err
			}
		}
	}

	return projects, nil
}

func (s *Store) fillVersionPipelines(ctx context.Context, v *domain.ProjectVersion) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ci_id, sha1, previous_sha1, changes_url, status,
		       url, created_date, end_date, project_version_id
		FROM pipelines
		WHERE project_version_id = ?
		ORDER BY created_date DESC
	`, v.ID)
	if err != nil {
		return err
	}
	pipelines, err := scanPipelines(rows)
	rows.Close()
	if err != nil {
		return err
	}
	v.Pipelines = pipelines

	for _, p := range pipelines {
		jobs, err := s.jobsByPipeline(ctx, p.ID)
		if err != nil {
			return err
		}
		p.Jobs = jobs
	}
	return nil
}

func (s *Store) jobsByPipeline(ctx context.Context, pipelineID int64) ([]*domain.Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ci_id, name, status, logs_url, start_date, end_date, pipeline_id
		FROM jobs
		WHERE pipeline_id = ?
		ORDER BY end_date ASC
	`, pipelineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		var (
			j     domain.Job
			start sql.NullString
			end   sql.NullString
		)
		if err := rows.Scan(&j.ID, &j.CIID, &j.Name, &j.Status, &j.LogsURL, &start, &end, &j.PipelineID); err != nil {
			return nil, err
		}
		if j.StartDate, err = parseNullTime(start); err != nil {
			return nil, err
		}
		if j.EndDate, err = parseNullTime(end); err != nil {
			return nil, err
		}
		jobs = append(jobs, &j)
	}
	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPipeline(row rowScanner) (*domain.Pipeline, error) {
	var (
		p       domain.Pipeline
		created string
		end     sql.NullString
	)
	err := row.Scan(&p.ID, &p.CIID, &p.SHA1, &p.PreviousSHA1, &p.ChangesURL,
		&p.Status, &p.URL, &created, &end, &p.ProjectVersionID)
	if err != nil {
		return nil, err
	}

	if p.CreatedDate, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("pipeline %d: bad created_date: %w", p.ID, err)
	}
	if p.EndDate, err = parseNullTime(end); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPipelines(rows *sql.Rows) ([]*domain.Pipeline, error) {
	var pipelines []*domain.Pipeline
	for rows.Next() {
		p, err := scanPipeline(rows)
		if err != nil {
			return nil, err
		}
		pipelines = append(pipelines, p)
	}
	return pipelines, rows.Err()
}

func parseNullTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, v.String)
	if err != nil {
		return nil, fmt.Errorf("bad timestamp %q: %w", v.String, err)
	}
	return &t, nil
}

func formatNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}
