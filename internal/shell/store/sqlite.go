package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/artpar/honeymesh/internal/core/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// Executor Interface
// =============================================================================

// executor abstracts over *sqlx.DB and *sqlx.Tx so the same query functions
// serve both the store and transactions opened through WithTx.
type executor interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements the Store interface backed by SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) the registry database at dsn and runs
// pending migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=on"
	}

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", errors.Join(ErrConnectionFailed, err))
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", errors.Join(ErrConnectionFailed, err))
	}

	// SQLite handles one writer at a time; serializing in the pool avoids
	// SQLITE_BUSY under concurrent deployment operations.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to run migrations", errors.Join(ErrMigrationFailed, err))
	}

	return &SQLiteStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// WithTx executes fn inside a transaction. The Store passed to fn shares the
// transaction; any error rolls everything back.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", errors.Join(ErrTxFailed, err))
	}

	txStore := &txSQLiteStore{tx: tx}

	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", "rollback failed after error", errors.Join(err, rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", errors.Join(ErrTxFailed, err))
	}

	return nil
}

// =============================================================================
// txSQLiteStore (transaction-scoped Store)
// =============================================================================

type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction; nested calls share it.
	return fn(s)
}

func (s *txSQLiteStore) Close() error {
	return nil
}

// =============================================================================
// Template Operations
// =============================================================================

func (s *SQLiteStore) CreateTemplate(ctx context.Context, template *domain.Template) error {
	return createTemplate(ctx, s.db, template)
}

func (s *txSQLiteStore) CreateTemplate(ctx context.Context, template *domain.Template) error {
	return createTemplate(ctx, s.tx, template)
}

func (s *SQLiteStore) GetTemplate(ctx context.Context, slug, version string) (*domain.Template, error) {
	return getTemplate(ctx, s.db, slug, version)
}

func (s *txSQLiteStore) GetTemplate(ctx context.Context, slug, version string) (*domain.Template, error) {
	return getTemplate(ctx, s.tx, slug, version)
}

func (s *SQLiteStore) GetLatestTemplate(ctx context.Context, slug string) (*domain.Template, error) {
	return getLatestTemplate(ctx, s.db, slug)
}

func (s *txSQLiteStore) GetLatestTemplate(ctx context.Context, slug string) (*domain.Template, error) {
	return getLatestTemplate(ctx, s.tx, slug)
}

func (s *SQLiteStore) DeleteTemplate(ctx context.Context, slug, version string) error {
	return deleteTemplate(ctx, s.db, slug, version)
}

func (s *txSQLiteStore) DeleteTemplate(ctx context.Context, slug, version string) error {
	return deleteTemplate(ctx, s.tx, slug, version)
}

func (s *SQLiteStore) ListTemplates(ctx context.Context, opts ListOptions) ([]domain.Template, error) {
	return listTemplates(ctx, s.db, opts)
}

func (s *txSQLiteStore) ListTemplates(ctx context.Context, opts ListOptions) ([]domain.Template, error) {
	return listTemplates(ctx, s.tx, opts)
}

func (s *SQLiteStore) CountLiveDeploymentsByTemplate(ctx context.Context, slug string) (int, error) {
	return countLiveDeploymentsByTemplate(ctx, s.db, slug)
}

func (s *txSQLiteStore) CountLiveDeploymentsByTemplate(ctx context.Context, slug string) (int, error) {
	return countLiveDeploymentsByTemplate(ctx, s.tx, slug)
}

func createTemplate(ctx context.Context, ex executor, template *domain.Template) error {
	settingsJSON, err := json.Marshal(template.Settings)
	if err != nil {
		return NewStoreError("CreateTemplate", "template", template.Slug, "failed to marshal settings", errors.Join(ErrInvalidData, err))
	}
	filesystemJSON, err := marshalJSONColumn(template.Filesystem)
	if err != nil {
		return NewStoreError("CreateTemplate", "template", template.Slug, "failed to marshal filesystem", errors.Join(ErrInvalidData, err))
	}
	accountsJSON, err := marshalJSONColumn(template.Accounts)
	if err != nil {
		return NewStoreError("CreateTemplate", "template", template.Slug, "failed to marshal accounts", errors.Join(ErrInvalidData, err))
	}
	commandsJSON, err := marshalJSONColumn(template.Commands)
	if err != nil {
		return NewStoreError("CreateTemplate", "template", template.Slug, "failed to marshal commands", errors.Join(ErrInvalidData, err))
	}

	query := `
		INSERT INTO templates (slug, version, name, industry, description,
			settings, filesystem, accounts, commands, created_at, updated_at)
		VALUES (:slug, :version, :name, :industry, :description,
			:settings, :filesystem, :accounts, :commands, :created_at, :updated_at)`

	_, err = ex.NamedExecContext(ctx, query, map[string]interface{}{
		"slug":        template.Slug,
		"version":     template.Version,
		"name":        template.Name,
		"industry":    template.Industry,
		"description": template.Description,
		"settings":    string(settingsJSON),
		"filesystem":  filesystemJSON,
		"accounts":    accountsJSON,
		"commands":    commandsJSON,
		"created_at":  template.CreatedAt.Format(time.RFC3339),
		"updated_at":  template.UpdatedAt.Format(time.RFC3339),
	})
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: templates.slug") {
			return NewStoreError("CreateTemplate", "template", template.Slug, "template version already exists", ErrDuplicateTemplate)
		}
		return NewStoreError("CreateTemplate", "template", template.Slug, "failed to insert template", err)
	}

	return nil
}

func getTemplate(ctx context.Context, ex executor, slug, version string) (*domain.Template, error) {
	var row templateRow
	query := `SELECT * FROM templates WHERE slug = ? AND version = ?`

	err := ex.GetContext(ctx, &row, query, slug, version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetTemplate", "template", slug, "template not found", ErrNotFound)
		}
		return nil, NewStoreError("GetTemplate", "template", slug, "failed to query template", err)
	}

	return rowToTemplate(&row)
}

func getLatestTemplate(ctx context.Context, ex executor, slug string) (*domain.Template, error) {
	var rows []templateRow
	query := `SELECT * FROM templates WHERE slug = ?`

	if err := ex.SelectContext(ctx, &rows, query, slug); err != nil {
		return nil, NewStoreError("GetLatestTemplate", "template", slug, "failed to query template versions", err)
	}
	if len(rows) == 0 {
		return nil, NewStoreError("GetLatestTemplate", "template", slug, "template not found", ErrNotFound)
	}

	// Versions sort semantically, not lexically, so pick the max in Go.
	latest := &rows[0]
	for i := 1; i < len(rows); i++ {
		if domain.CompareVersions(rows[i].Version, latest.Version) > 0 {
			latest = &rows[i]
		}
	}

	return rowToTemplate(latest)
}

func deleteTemplate(ctx context.Context, ex executor, slug, version string) error {
	result, err := ex.ExecContext(ctx, `DELETE FROM templates WHERE slug = ? AND version = ?`, slug, version)
	if err != nil {
		return NewStoreError("DeleteTemplate", "template", slug, "failed to delete template", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return NewStoreError("DeleteTemplate", "template", slug, "failed to check delete result", err)
	}
	if affected == 0 {
		return NewStoreError("DeleteTemplate", "template", slug, "template not found", ErrNotFound)
	}

	return nil
}

func listTemplates(ctx context.Context, ex executor, opts ListOptions) ([]domain.Template, error) {
	opts = opts.Normalize()

	var rows []templateRow
	query := `SELECT * FROM templates ORDER BY slug ASC, version ASC LIMIT ? OFFSET ?`

	if err := ex.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset); err != nil {
		return nil, NewStoreError("ListTemplates", "template", "", "failed to list templates", err)
	}

	templates := make([]domain.Template, 0, len(rows))
	for i := range rows {
		tpl, err := rowToTemplate(&rows[i])
		if err != nil {
			return nil, err
		}
		templates = append(templates, *tpl)
	}

	return templates, nil
}

func countLiveDeploymentsByTemplate(ctx context.Context, ex executor, slug string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM deployments WHERE template_name = ? AND status != ?`

	if err := ex.GetContext(ctx, &count, query, slug, string(domain.StatusRemoved)); err != nil {
		return 0, NewStoreError("CountLiveDeploymentsByTemplate", "template", slug, "failed to count references", err)
	}

	return count, nil
}

// =============================================================================
// Deployment Operations
// =============================================================================

func (s *SQLiteStore) CreateDeployment(ctx context.Context, deployment *domain.Deployment) error {
	return createDeployment(ctx, s.db, deployment)
}

func (s *txSQLiteStore) CreateDeployment(ctx context.Context, deployment *domain.Deployment) error {
	return createDeployment(ctx, s.tx, deployment)
}

func (s *SQLiteStore) GetDeployment(ctx context.Context, name string) (*domain.Deployment, error) {
	return getDeployment(ctx, s.db, name)
}

func (s *txSQLiteStore) GetDeployment(ctx context.Context, name string) (*domain.Deployment, error) {
	return getDeployment(ctx, s.tx, name)
}

func (s *SQLiteStore) UpdateDeployment(ctx context.Context, deployment *domain.Deployment) error {
	return updateDeployment(ctx, s.db, deployment)
}

func (s *txSQLiteStore) UpdateDeployment(ctx context.Context, deployment *domain.Deployment) error {
	return updateDeployment(ctx, s.tx, deployment)
}

func (s *SQLiteStore) DeleteDeployment(ctx context.Context, name string) error {
	return deleteDeployment(ctx, s.db, name)
}

func (s *txSQLiteStore) DeleteDeployment(ctx context.Context, name string) error {
	return deleteDeployment(ctx, s.tx, name)
}

func (s *SQLiteStore) ListDeployments(ctx context.Context, opts ListOptions) ([]domain.Deployment, error) {
	return listDeployments(ctx, s.db, opts)
}

func (s *txSQLiteStore) ListDeployments(ctx context.Context, opts ListOptions) ([]domain.Deployment, error) {
	return listDeployments(ctx, s.tx, opts)
}

func (s *SQLiteStore) ListActiveDeployments(ctx context.Context) ([]domain.Deployment, error) {
	return listActiveDeployments(ctx, s.db)
}

func (s *txSQLiteStore) ListActiveDeployments(ctx context.Context) ([]domain.Deployment, error) {
	return listActiveDeployments(ctx, s.tx)
}

func createDeployment(ctx context.Context, ex executor, deployment *domain.Deployment) error {
	row, err := deploymentToRow(deployment)
	if err != nil {
		return NewStoreError("CreateDeployment", "deployment", deployment.Name, "failed to serialize deployment", errors.Join(ErrInvalidData, err))
	}

	query := `
		INSERT INTO deployments (id, name, mode, template_name, template_version,
			hostname, status, ports, paths, health, error_message,
			created_at, updated_at, started_at, stopped_at)
		VALUES (:id, :name, :mode, :template_name, :template_version,
			:hostname, :status, :ports, :paths, :health, :error_message,
			:created_at, :updated_at, :started_at, :stopped_at)`

	_, err = ex.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: deployments.name") {
			return NewStoreError("CreateDeployment", "deployment", deployment.Name, "deployment name already registered", ErrDuplicateName)
		}
		if strings.Contains(err.Error(), "UNIQUE constraint failed: deployments.id") {
			return NewStoreError("CreateDeployment", "deployment", deployment.ID, "deployment ID already exists", ErrDuplicateID)
		}
		return NewStoreError("CreateDeployment", "deployment", deployment.Name, "failed to insert deployment", err)
	}

	return nil
}

func getDeployment(ctx context.Context, ex executor, name string) (*domain.Deployment, error) {
	var row deploymentRow
	query := `SELECT * FROM deployments WHERE name = ?`

	err := ex.GetContext(ctx, &row, query, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetDeployment", "deployment", name, "deployment not found", ErrNotFound)
		}
		return nil, NewStoreError("GetDeployment", "deployment", name, "failed to query deployment", err)
	}

	return rowToDeployment(&row)
}

func updateDeployment(ctx context.Context, ex executor, deployment *domain.Deployment) error {
	row, err := deploymentToRow(deployment)
	if err != nil {
		return NewStoreError("UpdateDeployment", "deployment", deployment.Name, "failed to serialize deployment", errors.Join(ErrInvalidData, err))
	}

	query := `
		UPDATE deployments SET
			mode = :mode,
			template_name = :template_name,
			template_version = :template_version,
			hostname = :hostname,
			status = :status,
			ports = :ports,
			paths = :paths,
			health = :health,
			error_message = :error_message,
			updated_at = :updated_at,
			started_at = :started_at,
			stopped_at = :stopped_at
		WHERE name = :name`

	result, err := ex.NamedExecContext(ctx, query, row)
	if err != nil {
		return NewStoreError("UpdateDeployment", "deployment", deployment.Name, "failed to update deployment", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return NewStoreError("UpdateDeployment", "deployment", deployment.Name, "failed to check update result", err)
	}
	if affected == 0 {
		return NewStoreError("UpdateDeployment", "deployment", deployment.Name, "deployment not found", ErrNotFound)
	}

	return nil
}

func deleteDeployment(ctx context.Context, ex executor, name string) error {
	result, err := ex.ExecContext(ctx, `DELETE FROM deployments WHERE name = ?`, name)
	if err != nil {
		return NewStoreError("DeleteDeployment", "deployment", name, "failed to delete deployment", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return NewStoreError("DeleteDeployment", "deployment", name, "failed to check delete result", err)
	}
	if affected == 0 {
		return NewStoreError("DeleteDeployment", "deployment", name, "deployment not found", ErrNotFound)
	}

	return nil
}

func listDeployments(ctx context.Context, ex executor, opts ListOptions) ([]domain.Deployment, error) {
	opts = opts.Normalize()

	var rows []deploymentRow
	query := `SELECT * FROM deployments ORDER BY name ASC LIMIT ? OFFSET ?`

	if err := ex.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset); err != nil {
		return nil, NewStoreError("ListDeployments", "deployment", "", "failed to list deployments", err)
	}

	return rowsToDeployments(rows, "ListDeployments")
}

func listActiveDeployments(ctx context.Context, ex executor) ([]domain.Deployment, error) {
	var rows []deploymentRow
	query := `SELECT * FROM deployments WHERE status IN (?, ?) ORDER BY name ASC`

	err := ex.SelectContext(ctx, &rows, query,
		string(domain.StatusRunning), string(domain.StatusDegraded))
	if err != nil {
		return nil, NewStoreError("ListActiveDeployments", "deployment", "", "failed to list active deployments", err)
	}

	return rowsToDeployments(rows, "ListActiveDeployments")
}

func rowsToDeployments(rows []deploymentRow, op string) ([]domain.Deployment, error) {
	deployments := make([]domain.Deployment, 0, len(rows))
	for i := range rows {
		d, err := rowToDeployment(&rows[i])
		if err != nil {
			return nil, NewStoreError(op, "deployment", rows[i].Name, "failed to deserialize deployment", err)
		}
		deployments = append(deployments, *d)
	}
	return deployments, nil
}

// =============================================================================
// Event Operations
// =============================================================================

func (s *SQLiteStore) CreateEvent(ctx context.Context, event *domain.Event) error {
	return createEvent(ctx, s.db, event)
}

func (s *txSQLiteStore) CreateEvent(ctx context.Context, event *domain.Event) error {
	return createEvent(ctx, s.tx, event)
}

func (s *SQLiteStore) ListEvents(ctx context.Context, deploymentName string, limit int) ([]domain.Event, error) {
	return listEvents(ctx, s.db, deploymentName, limit)
}

func (s *txSQLiteStore) ListEvents(ctx context.Context, deploymentName string, limit int) ([]domain.Event, error) {
	return listEvents(ctx, s.tx, deploymentName, limit)
}

func createEvent(ctx context.Context, ex executor, event *domain.Event) error {
	query := `
		INSERT INTO events (deployment_name, type, message, created_at)
		VALUES (:deployment_name, :type, :message, :created_at)`

	result, err := ex.NamedExecContext(ctx, query, map[string]interface{}{
		"deployment_name": event.Deployment,
		"type":            string(event.Type),
		"message":         event.Message,
		"created_at":      event.CreatedAt.Format(time.RFC3339),
	})
	if err != nil {
		return NewStoreError("CreateEvent", "event", event.Deployment, "failed to insert event", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		event.ID = int(id)
	}

	return nil
}

func listEvents(ctx context.Context, ex executor, deploymentName string, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []eventRow
	query := `SELECT * FROM events WHERE deployment_name = ? ORDER BY id DESC LIMIT ?`

	if err := ex.SelectContext(ctx, &rows, query, deploymentName, limit); err != nil {
		return nil, NewStoreError("ListEvents", "event", deploymentName, "failed to list events", err)
	}

	events := make([]domain.Event, 0, len(rows))
	for i := range rows {
		e, err := rowToEvent(&rows[i])
		if err != nil {
			return nil, NewStoreError("ListEvents", "event", deploymentName, "failed to deserialize event", err)
		}
		events = append(events, *e)
	}

	return events, nil
}

// =============================================================================
// Row Types and Converters
// =============================================================================

type templateRow struct {
	Slug        string         `db:"slug"`
	Version     string         `db:"version"`
	Name        string         `db:"name"`
	Industry    string         `db:"industry"`
	Description string         `db:"description"`
	Settings    string         `db:"settings"`
	Filesystem  sql.NullString `db:"filesystem"`
	Accounts    sql.NullString `db:"accounts"`
	Commands    sql.NullString `db:"commands"`
	CreatedAt   string         `db:"created_at"`
	UpdatedAt   string         `db:"updated_at"`
}

type deploymentRow struct {
	ID              string         `db:"id"`
	Name            string         `db:"name"`
	Mode            string         `db:"mode"`
	TemplateName    string         `db:"template_name"`
	TemplateVersion string         `db:"template_version"`
	Hostname        string         `db:"hostname"`
	Status          string         `db:"status"`
	Ports           string         `db:"ports"`
	Paths           string         `db:"paths"`
	Health          sql.NullString `db:"health"`
	ErrorMessage    string         `db:"error_message"`
	CreatedAt       string         `db:"created_at"`
	UpdatedAt       string         `db:"updated_at"`
	StartedAt       sql.NullString `db:"started_at"`
	StoppedAt       sql.NullString `db:"stopped_at"`
}

type eventRow struct {
	ID             int    `db:"id"`
	DeploymentName string `db:"deployment_name"`
	Type           string `db:"type"`
	Message        string `db:"message"`
	CreatedAt      string `db:"created_at"`
}

// marshalJSONColumn serializes a slice for a nullable JSON column.
// Empty slices are stored as NULL so round trips yield nil, not [].
func marshalJSONColumn(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(data)
	if s == "null" || s == "[]" {
		return nil, nil
	}
	return s, nil
}

func unmarshalJSONColumn(col sql.NullString, dest interface{}) error {
	if !col.Valid || col.String == "" || col.String == "null" {
		return nil
	}
	return json.Unmarshal([]byte(col.String), dest)
}

func rowToTemplate(row *templateRow) (*domain.Template, error) {
	tpl := &domain.Template{
		Slug:        row.Slug,
		Version:     row.Version,
		Name:        row.Name,
		Industry:    row.Industry,
		Description: row.Description,
	}

	if err := json.Unmarshal([]byte(row.Settings), &tpl.Settings); err != nil {
		return nil, NewStoreError("rowToTemplate", "template", row.Slug, "failed to unmarshal settings", errors.Join(ErrInvalidData, err))
	}
	if err := unmarshalJSONColumn(row.Filesystem, &tpl.Filesystem); err != nil {
		return nil, NewStoreError("rowToTemplate", "template", row.Slug, "failed to unmarshal filesystem", errors.Join(ErrInvalidData, err))
	}
	if err := unmarshalJSONColumn(row.Accounts, &tpl.Accounts); err != nil {
		return nil, NewStoreError("rowToTemplate", "template", row.Slug, "failed to unmarshal accounts", errors.Join(ErrInvalidData, err))
	}
	if err := unmarshalJSONColumn(row.Commands, &tpl.Commands); err != nil {
		return nil, NewStoreError("rowToTemplate", "template", row.Slug, "failed to unmarshal commands", errors.Join(ErrInvalidData, err))
	}

	var err error
	if tpl.CreatedAt, err = time.Parse(time.RFC3339, row.CreatedAt); err != nil {
		return nil, NewStoreError("rowToTemplate", "template", row.Slug, "failed to parse created_at", errors.Join(ErrInvalidData, err))
	}
	if tpl.UpdatedAt, err = time.Parse(time.RFC3339, row.UpdatedAt); err != nil {
		return nil, NewStoreError("rowToTemplate", "template", row.Slug, "failed to parse updated_at", errors.Join(ErrInvalidData, err))
	}

	return tpl, nil
}

func deploymentToRow(d *domain.Deployment) (map[string]interface{}, error) {
	portsJSON, err := json.Marshal(d.Ports)
	if err != nil {
		return nil, err
	}
	pathsJSON, err := json.Marshal(d.Paths)
	if err != nil {
		return nil, err
	}

	var health interface{}
	if d.Health != nil {
		healthJSON, err := json.Marshal(d.Health)
		if err != nil {
			return nil, err
		}
		health = string(healthJSON)
	}

	var startedAt, stoppedAt interface{}
	if d.StartedAt != nil {
		startedAt = d.StartedAt.Format(time.RFC3339)
	}
	if d.StoppedAt != nil {
		stoppedAt = d.StoppedAt.Format(time.RFC3339)
	}

	return map[string]interface{}{
		"id":               d.ID,
		"name":             d.Name,
		"mode":             string(d.Mode),
		"template_name":    d.TemplateName,
		"template_version": d.TemplateVersion,
		"hostname":         d.Hostname,
		"status":           string(d.Status),
		"ports":            string(portsJSON),
		"paths":            string(pathsJSON),
		"health":           health,
		"error_message":    d.ErrorMessage,
		"created_at":       d.CreatedAt.Format(time.RFC3339),
		"updated_at":       d.UpdatedAt.Format(time.RFC3339),
		"started_at":       startedAt,
		"stopped_at":       stoppedAt,
	}, nil
}

func rowToDeployment(row *deploymentRow) (*domain.Deployment, error) {
	d := &domain.Deployment{
		ID:              row.ID,
		Name:            row.Name,
		Mode:            domain.DeploymentMode(row.Mode),
		TemplateName:    row.TemplateName,
		TemplateVersion: row.TemplateVersion,
		Hostname:        row.Hostname,
		Status:          domain.DeploymentStatus(row.Status),
		ErrorMessage:    row.ErrorMessage,
	}

	if err := json.Unmarshal([]byte(row.Ports), &d.Ports); err != nil {
		return nil, NewStoreError("rowToDeployment", "deployment", row.Name, "failed to unmarshal ports", errors.Join(ErrInvalidData, err))
	}
	if err := json.Unmarshal([]byte(row.Paths), &d.Paths); err != nil {
		return nil, NewStoreError("rowToDeployment", "deployment", row.Name, "failed to unmarshal paths", errors.Join(ErrInvalidData, err))
	}
	if row.Health.Valid && row.Health.String != "" && row.Health.String != "null" {
		d.Health = &domain.HealthSnapshot{}
		if err := json.Unmarshal([]byte(row.Health.String), d.Health); err != nil {
			return nil, NewStoreError("rowToDeployment", "deployment", row.Name, "failed to unmarshal health", errors.Join(ErrInvalidData, err))
		}
	}

	var err error
	if d.CreatedAt, err = time.Parse(time.RFC3339, row.CreatedAt); err != nil {
		return nil, NewStoreError("rowToDeployment", "deployment", row.Name, "failed to parse created_at", errors.Join(ErrInvalidData, err))
	}
	if d.UpdatedAt, err = time.Parse(time.RFC3339, row.UpdatedAt); err != nil {
		return nil, NewStoreError("rowToDeployment", "deployment", row.Name, "failed to parse updated_at", errors.Join(ErrInvalidData, err))
	}
	if row.StartedAt.Valid && row.StartedAt.String != "" {
		t, err := time.Parse(time.RFC3339, row.StartedAt.String)
		if err != nil {
			return nil, NewStoreError("rowToDeployment", "deployment", row.Name, "failed to parse started_at", errors.Join(ErrInvalidData, err))
		}
		d.StartedAt = &t
	}
	if row.StoppedAt.Valid && row.StoppedAt.String != "" {
		t, err := time.Parse(time.RFC3339, row.StoppedAt.String)
		if err != nil {
			return nil, NewStoreError("rowToDeployment", "deployment", row.Name, "failed to parse stopped_at", errors.Join(ErrInvalidData, err))
		}
		d.StoppedAt = &t
	}

	return d, nil
}

func rowToEvent(row *eventRow) (*domain.Event, error) {
	createdAt, err := time.Parse(time.RFC3339, row.CreatedAt)
	if err != nil {
		return nil, errors.Join(ErrInvalidData, err)
	}
	return &domain.Event{
		ID:         row.ID,
		Deployment: row.DeploymentName,
		Type:       domain.EventType(row.Type),
		Message:    row.Message,
		CreatedAt:  createdAt,
	}, nil
}
