package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lewtec/boxlabeler/internal/domain"
	"github.com/lewtec/boxlabeler/internal/repository"
)

// PrintQuery writes the rows of query as tab separated lines, with a header when there is
// more than one column.
func PrintQuery(ctx context.Context, w io.Writer, db *sql.Tx, query string, args ...any) error {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return err
	}
	if len(columns) > 1 {
		fmt.Fprintln(w, strings.Join(columns, "\t"))
	}
	pointers := make([]any, len(columns))
	container := make([]sql.NullString, len(columns))
	for i := range columns {
		pointers[i] = &container[i]
	}
	values := make([]string, len(columns))
	for rows.Next() {
		if err := rows.Scan(pointers...); err != nil {
			return err
		}
		for i, v := range container {
			values[i] = v.String
		}
		fmt.Fprintln(w, strings.Join(values, "\t"))
	}
	return rows.Err()
}

// queryCmd represents the query command
var queryCmd = &cobra.Command{
	Use:   "query [image-id]",
	Short: "Queries the snapshot database",
	Long: `Without arguments, list the stored annotations with their box count and update time.
With an image id, print the stored tagged JSON record of that image.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := absPath(settings.GetString("database"))
		if err != nil {
			return err
		}
		db, err := repository.Open(database)
		if err != nil {
			return err
		}
		defer db.Close()

		if len(args) == 1 {
			a, err := repository.NewAnnotationRepository(db).Get(cmd.Context(), domain.ImageID(args[0]))
			if err != nil {
				return err
			}
			data, err := domain.Records.Encode(a)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		tx, err := db.BeginTx(cmd.Context(), &sql.TxOptions{ReadOnly: true})
		if err != nil {
			return err
		}
		defer tx.Rollback()
		return PrintQuery(cmd.Context(), cmd.OutOrStdout(), tx, `
SELECT a.image_id, COALESCE(i.path, ''), a.box_count, a.updated_at
FROM annotations a LEFT JOIN images i ON i.id = a.image_id
ORDER BY a.image_id`)
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
}
