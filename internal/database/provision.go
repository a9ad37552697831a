/* SPDX-License-Identifier: AGPL-3.0-only
 * Copyright (c) Benedict Schlueter
 */

// Package database establishes per-service users and databases on a running
// PostgreSQL instance. Re-running with the same triples is safe: duplicate
// objects are converged, never treated as fatal.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/geostack/bootstrap/internal/config"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgreSQL error codes tolerated during provisioning.
const (
	codeDuplicateObject   = "42710"
	codeDuplicateDatabase = "42P04"
)

// execer is the subset of *sql.DB the provisioner uses.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Provisioner issues user, database and grant statements over an
// administrative connection.
type Provisioner struct {
	logger *zap.Logger
	db     execer
}

// NewProvisioner returns a provisioner over an open administrative connection.
func NewProvisioner(logger *zap.Logger, db execer) *Provisioner {
	return &Provisioner{
		logger: logger,
		db:     db,
	}
}

// Connect opens and verifies an administrative connection, then wraps it in a
// provisioner. The caller owns closing the returned handle.
func Connect(ctx context.Context, logger *zap.Logger, adminDSN string) (*Provisioner, *sql.DB, error) {
	db, err := sql.Open("postgres", adminDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return NewProvisioner(logger, db), db, nil
}

// Provision converges every triple: the role exists with the given password,
// the database exists with the role as owner, and the role holds all
// privileges on it. Existing roles get their password rotated so the stored
// connection secret always matches the database.
func (p *Provisioner) Provision(ctx context.Context, triples []config.ProvisioningTriple) error {
	for _, triple := range triples {
		if err := p.ensureRole(ctx, triple); err != nil {
			return fmt.Errorf("provisioning role %q: %w", triple.User, err)
		}
		if err := p.ensureDatabase(ctx, triple); err != nil {
			return fmt.Errorf("provisioning database %q: %w", triple.Database, err)
		}
		p.logger.Info("provisioned database",
			zap.String("user", triple.User), zap.String("database", triple.Database))
	}
	return nil
}

func (p *Provisioner) ensureRole(ctx context.Context, triple config.ProvisioningTriple) error {
	create := fmt.Sprintf("CREATE ROLE %s LOGIN PASSWORD %s",
		pq.QuoteIdentifier(triple.User), pq.QuoteLiteral(triple.Password))
	_, err := p.db.ExecContext(ctx, create)
	if err == nil {
		return nil
	}
	if !isDuplicate(err) {
		return err
	}
	// Role survives from a previous run; rotate its password to match the
	// freshly written connection secret.
	alter := fmt.Sprintf("ALTER ROLE %s WITH LOGIN PASSWORD %s",
		pq.QuoteIdentifier(triple.User), pq.QuoteLiteral(triple.Password))
	_, err = p.db.ExecContext(ctx, alter)
	return err
}

func (p *Provisioner) ensureDatabase(ctx context.Context, triple config.ProvisioningTriple) error {
	create := fmt.Sprintf("CREATE DATABASE %s OWNER %s",
		pq.QuoteIdentifier(triple.Database), pq.QuoteIdentifier(triple.User))
	_, err := p.db.ExecContext(ctx, create)
	if err != nil {
		if !isDuplicate(err) {
			return err
		}
		owner := fmt.Sprintf("ALTER DATABASE %s OWNER TO %s",
			pq.QuoteIdentifier(triple.Database), pq.QuoteIdentifier(triple.User))
		if _, err := p.db.ExecContext(ctx, owner); err != nil {
			return err
		}
	}
	grant := fmt.Sprintf("GRANT ALL PRIVILEGES ON DATABASE %s TO %s",
		pq.QuoteIdentifier(triple.Database), pq.QuoteIdentifier(triple.User))
	_, err = p.db.ExecContext(ctx, grant)
	return err
}

func isDuplicate(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == codeDuplicateObject || pqErr.Code == codeDuplicateDatabase
}
