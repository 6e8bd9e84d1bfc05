package main

import (
	"context"
	"fmt"
	"os"

	"github.com/symboldb/symboldb/store/postgres"
)

// actionCreateSchema implements "--create-schema": emit the fixed DDL blob
// to stdout, without touching a live database.
func actionCreateSchema(ctx context.Context, env *environment, args []string) error {
	_, err := fmt.Fprint(os.Stdout, postgres.SchemaDDL)
	return err
}
