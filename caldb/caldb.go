// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package caldb holds types to access the factory calibration
// database for Moku:Lab devices.
//
// Every device is calibrated per front-end configuration before it
// ships; the resulting gains are keyed by the device serial number
// and the calibration section name, such as "calibration.AG-1M-H-D-1".
package caldb // import "github.com/go-moku/moku/caldb"

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

const (
	host = "localhost"
)

var (
	usr = "username"
	pwd = "s3cr3t"

	drvName = "mysql"
)

// DB exposes convenience methods to retrieve and store device
// calibration data.
type DB struct {
	db   *sql.DB
	name string // name of the calibration database
}

// Open opens a connection to the calibration database dbname.
func Open(dbname string) (*DB, error) {
	db, err := sql.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("caldb: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		return nil, fmt.Errorf("caldb: could not ping %q db: %w", dbname, err)
	}

	return &DB{db: db, name: dbname}, nil
}

func dsn(db string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true", usr, pwd, host, db)
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("caldb: could not ping %q db: %w", dbname, err)
	}

	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

// Calibration returns the calibration gains of the device with the
// given serial number, keyed by section name.
func (db *DB) Calibration(ctx context.Context, serial string) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cal := make(map[string]string)
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT section, value FROM calibration WHERE serial=?",
		serial,
	)
	if err != nil {
		return cal, fmt.Errorf("caldb: could not query calibration: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var section, value string
		err = rows.Scan(&section, &value)
		if err != nil {
			return cal, fmt.Errorf("caldb: could not get calibration value: %w", err)
		}
		cal[section] = value
	}

	if err := rows.Err(); err != nil {
		return cal, fmt.Errorf("caldb: could not scan db for calibration: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return cal, fmt.Errorf("caldb: context error while retrieving calibration: %w", err)
	}

	return cal, nil
}

// LastUpdated returns the time the calibration of the device with
// the given serial number was last refreshed.
func (db *DB) LastUpdated(ctx context.Context, serial string) (time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var last time.Time
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT datetime FROM calibration WHERE serial=? ORDER BY datetime DESC LIMIT 1",
		serial,
	)
	if err != nil {
		return last, fmt.Errorf("caldb: could not query calibration age: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		err = rows.Scan(&last)
		if err != nil {
			return last, fmt.Errorf("caldb: could not get calibration age: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return last, fmt.Errorf("caldb: could not scan db for calibration age: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return last, fmt.Errorf("caldb: context error while retrieving calibration age: %w", err)
	}

	return last, nil
}

// Serials returns the serial numbers of all calibrated devices.
func (db *DB) Serials(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var serials []string
	rows, err := db.db.QueryContext(ctx, "SELECT DISTINCT serial FROM calibration ORDER BY serial")
	if err != nil {
		return serials, fmt.Errorf("caldb: could not query serials: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var serial string
		err = rows.Scan(&serial)
		if err != nil {
			return serials, fmt.Errorf("caldb: could not get serial value: %w", err)
		}
		serials = append(serials, serial)
	}

	if err := rows.Err(); err != nil {
		return serials, fmt.Errorf("caldb: could not scan db for serials: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return serials, fmt.Errorf("caldb: context error while retrieving serials: %w", err)
	}

	return serials, nil
}

// StoreCalibration records a calibration gain for the device with
// the given serial number, replacing any previous value of that
// section.
func (db *DB) StoreCalibration(ctx context.Context, serial, section, value string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := db.db.ExecContext(
		ctx,
		"REPLACE INTO calibration (serial, section, value, datetime) VALUES (?, ?, ?, NOW())",
		serial, section, value,
	)
	if err != nil {
		return fmt.Errorf("caldb: could not store calibration: %w", err)
	}
	return nil
}
