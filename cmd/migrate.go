package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"drivemigrate/internal/auth"
	"drivemigrate/internal/db"
	"drivemigrate/internal/drive"
	"drivemigrate/internal/engine"
	"drivemigrate/internal/logger"
	"drivemigrate/internal/model"
	"drivemigrate/internal/store"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	migrateSource       string
	migrateDest         string
	migrateSourceKind   string
	migrateDestKind     string
	migrateFolderFilter string
	migrateAll          bool
)

// migrateCmd runs one transfer synchronously, without the daemon. The job
// record still lands in the local database so `status` can inspect it later.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run a one-shot migration between two accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		if migrateSource == "" || migrateDest == "" {
			return fmt.Errorf("--source and --dest are required")
		}
		if migrateSource == migrateDest {
			return fmt.Errorf("source and destination cannot be the same account")
		}

		ctx := cmd.Context()

		creds, err := auth.NewFileStore()
		if err != nil {
			return err
		}

		srcCred, err := creds.Credential(ctx, model.Provider(migrateSourceKind), migrateSource)
		if err != nil {
			return err
		}
		dstCred, err := creds.Credential(ctx, model.Provider(migrateDestKind), migrateDest)
		if err != nil {
			return err
		}

		src, err := drive.NewClient(ctx, srcCred)
		if err != nil {
			return err
		}
		dst, err := drive.NewClient(ctx, dstCred)
		if err != nil {
			return err
		}

		selection, err := selectRoots(ctx, src)
		if err != nil {
			return err
		}
		if len(selection) == 0 {
			fmt.Println("nothing to migrate")
			return nil
		}

		gdb, err := db.Open(cfg.DBPath)
		if err != nil {
			return err
		}

		st := store.New(gdb, time.Duration(cfg.RetentionDays)*24*time.Hour)

		job, err := st.Create(uuid.NewString(), migrateSource, migrateDest, selection)
		if err != nil {
			return err
		}

		fmt.Printf("migrating %d root item(s), job %s\n", len(selection), job.ID)

		eng := engine.New(st)
		if err := eng.Run(ctx, model.WorkItem{
			JobID:            job.ID,
			SourceCredential: srcCred,
			DestCredential:   dstCred,
			Selection:        selection,
		}, src, dst); err != nil {
			return err
		}

		final, err := st.Get(job.ID)
		if err != nil {
			return err
		}

		printJob(final)
		return nil
	},
}

// selectRoots lists the source root and picks what to migrate: everything
// with --all, or folders whose name matches --folder.
func selectRoots(ctx context.Context, src drive.Client) ([]model.SelectionItem, error) {
	var items []drive.Item

	pageToken := ""
	for {
		listing, err := src.ListChildren(ctx, "", pageToken)
		if err != nil {
			return nil, fmt.Errorf("failed to list source root: %w", err)
		}

		items = append(items, listing.Items...)

		if listing.NextToken == "" {
			break
		}
		pageToken = listing.NextToken
	}

	var selection []model.SelectionItem
	for _, item := range items {
		kind := model.ItemKindFile
		if item.IsFolder() {
			kind = model.ItemKindFolder
		}

		switch {
		case migrateAll:
		case migrateFolderFilter != "":
			if kind != model.ItemKindFolder ||
				!strings.Contains(strings.ToLower(item.Name), strings.ToLower(migrateFolderFilter)) {
				continue
			}
		default:
			fmt.Printf("  %s  %s\n", kind, item.Name)
			continue
		}

		selection = append(selection, model.SelectionItem{
			ExternalID: item.ID,
			Name:       item.Name,
			Kind:       kind,
			MIMEType:   item.MIMEType,
			Size:       item.Size,
		})
	}

	if !migrateAll && migrateFolderFilter == "" {
		fmt.Println("\nUse --all to migrate everything, or --folder <name> to target a specific folder.")
		return nil, nil
	}

	return selection, nil
}

func init() {
	migrateCmd.Flags().StringVar(&migrateSource, "source", "", "source account")
	migrateCmd.Flags().StringVar(&migrateDest, "dest", "", "destination account")
	migrateCmd.Flags().StringVar(&migrateSourceKind, "source-provider", "gdrive", "source provider (gdrive|dropbox)")
	migrateCmd.Flags().StringVar(&migrateDestKind, "dest-provider", "gdrive", "destination provider (gdrive|dropbox)")
	migrateCmd.Flags().StringVar(&migrateFolderFilter, "folder", "", "migrate folders matching this name")
	migrateCmd.Flags().BoolVar(&migrateAll, "all", false, "migrate every root item")
	rootCmd.AddCommand(migrateCmd)
}
