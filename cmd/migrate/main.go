/*
 * Copyright 2017-2022 Provide Technologies Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


package main

import (
	"fmt"
	"net/url"
	"os"

	"github.com/golang-migrate/migrate"
	_ "github.com/golang-migrate/migrate/database/postgres"
	_ "github.com/golang-migrate/migrate/source/file"
	"github.com/provideplatform/provenance/common"
)

const defaultMigrationsPath = "./ops/migrations"

func main() {
	m, err := migrate.New(sourceURL(), databaseURL())
	if err != nil {
		common.Log.Warningf("migrations failed to initialize; %s", err.Error())
		os.Exit(1)
	}
	defer m.Close()

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		common.Log.Warningf("migrations failed; %s", err.Error())
		os.Exit(1)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		common.Log.Warningf("failed to read migration version; %s", err.Error())
		os.Exit(1)
	}
	common.Log.Debugf("migrations applied; version: %d; dirty: %v", version, dirty)
}

func sourceURL() string {
	path := os.Getenv("MIGRATIONS_PATH")
	if path == "" {
		path = defaultMigrationsPath
	}
	return fmt.Sprintf("file://%s", path)
}

// databaseURL resolves the postgres dsn from the environment read by go-db-config
func databaseURL() string {
	host := envOrDefault("DATABASE_HOST", "localhost")
	port := envOrDefault("DATABASE_PORT", "5432")
	name := envOrDefault("DATABASE_NAME", "provenance_dev")
	user := envOrDefault("DATABASE_USER", "provenance")
	sslMode := envOrDefault("DATABASE_SSL_MODE", "disable")

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		url.QueryEscape(user),
		url.QueryEscape(os.Getenv("DATABASE_PASSWORD")),
		host,
		port,
		name,
		sslMode,
	)
}

func envOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
