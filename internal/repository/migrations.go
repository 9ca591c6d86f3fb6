package repository

import "embed"

// Migrations holds the Postgres schema, applied by postgres.Client.RunMigrations.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations holding the SQL files.
const MigrationsDir = "migrations"
