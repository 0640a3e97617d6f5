package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"license-service/pkg/config"
	"license-service/pkg/db"
	"license-service/pkg/gen"
	"license-service/pkg/logger"
	"license-service/services/admin"
	"license-service/services/license"
)

type env struct {
	cfg *config.Config
	db  *gorm.DB
	ids *gen.SnowflakeNode
}

func open(configPath string) (*env, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	zap.ReplaceGlobals(logger.Build(cfg))

	dialector, err := db.Dialect(cfg)
	if err != nil {
		return nil, nil, err
	}
	gdb, err := db.Open(cfg, dialector)
	if err != nil {
		return nil, nil, err
	}
	ids, err := gen.NewSnowflakeNode(cfg.Snowflake.Node)
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
		_ = zap.L().Sync()
	}
	return &env{cfg: cfg, db: gdb, ids: ids}, closeFn, nil
}

func newGenerateCommand(configPath *string) *cobra.Command {
	var (
		count  int
		key    string
		prefix string
		notes  string
	)
	cmd := &cobra.Command{
		Use:   "generate <productId>",
		Short: "Create license keys for a product and print them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if key != "" && count != 1 {
				return errors.New("--key creates a single license; drop --count")
			}

			e, closeFn, err := open(*configPath)
			if err != nil {
				return err
			}
			defer closeFn()

			svc := admin.NewService(admin.ServiceParams{DB: e.db, IDs: e.ids})
			return generate(cmd.Context(), cmd.OutOrStdout(), svc, args[0], key, prefix, notes, count)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of keys to generate (1-500)")
	cmd.Flags().StringVar(&key, "key", "", "use this exact license key instead of a generated one")
	cmd.Flags().StringVar(&prefix, "prefix", "", "prefix prepended to generated keys")
	cmd.Flags().StringVar(&notes, "notes", "", "notes stored on every created license")
	return cmd
}

func generate(ctx context.Context, out io.Writer, svc *admin.Service, productID, key, prefix, notes string, count int) error {
	if key != "" {
		view, err := svc.Create(ctx, admin.CreateRequest{LicenseKey: key, ProductID: productID, Notes: notes})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, view.LicenseKey)
		return err
	}

	res, err := svc.Generate(ctx, admin.GenerateRequest{ProductID: productID, Count: count, Prefix: prefix, Notes: notes})
	if err != nil {
		return err
	}
	for _, l := range res.Licenses {
		if _, err := fmt.Fprintln(out, l.LicenseKey); err != nil {
			return err
		}
	}
	return nil
}

func newMigrateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, closeFn, err := open(*configPath)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := db.Migrate(cmd.Context(), e.db, license.Models()...); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}
