package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ashureev/academy-assistant/internal/store"
)

func newSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import a catalog of modules, challenges, quests and members",
		Long: `Imports a YAML catalog into the database. Without --catalog the
embedded demo catalog is used. Importing is idempotent.`,
		Args: cobra.NoArgs,
		RunE: runSeed,
	}
	cmd.Flags().String("catalog", "", "path to a catalog YAML file")
	return cmd
}

func runSeed(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("catalog")
	catalog, err := store.LoadCatalogFile(path)
	if err != nil {
		return err
	}

	repo, err := openStore(cmd)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer repo.Close()

	if err := repo.ImportCatalog(cmd.Context(), catalog); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported %d modules, %d challenges, %d quests, %d members\n",
		len(catalog.Modules), len(catalog.Challenges), len(catalog.Quests), len(catalog.Members))
	return err
}
