package main

import (
	"context"
	"fmt"

	"go.ntppool.org/common/logger"

	"go.readwell.dev/highlights/hldb"
)

type dbCmd struct {
	Migrate dbMigrateCmd `cmd:"" help:"Create or update the database schema"`
	Schema  dbSchemaCmd  `cmd:"" help:"Print the schema for the configured driver"`
}

type (
	dbMigrateCmd struct{}
	dbSchemaCmd  struct{}
)

func (cmd dbMigrateCmd) Run(ctx context.Context, dbcfg *hldb.DBConfig) error {
	log := logger.FromContext(ctx)

	dbconn, err := hldb.OpenDB(ctx, *dbcfg)
	if err != nil {
		return err
	}
	defer dbconn.Close()

	if err := hldb.Migrate(ctx, dbconn, dbcfg.Driver); err != nil {
		return err
	}
	log.InfoContext(ctx, "schema migrated", "driver", dbcfg.Driver)
	return nil
}

func (cmd dbSchemaCmd) Run(dbcfg *hldb.DBConfig) error {
	stmts, err := hldb.Schema(dbcfg.Driver)
	if err != nil {
		return err
	}
	for _, s := range stmts {
		fmt.Printf("%s;\n\n", s)
	}
	return nil
}
