package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/goliatone/go-record-cache/pkg/di"
	"github.com/goliatone/go-record-cache/record"
)

// app holds the state shared by every subcommand of one invocation.
type app struct {
	out        io.Writer
	configFile string
	verbose    bool

	v         *viper.Viper
	logger    *zap.Logger
	container *di.Container
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out, v: newViper()}

	root := &cobra.Command{
		Use:   "recordctl",
		Short: "Read and write rows through the record cache",
		Long: `recordctl reads and writes table rows through the record layer, so
every command goes through the same unit of work buffer, shared cache and
invalidation rules as application code.

Tables are described in the config file under "tables"; unknown tables use
"id" as their primary key.`,
		SilenceUsage:       true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default: ./recordctl.yaml)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log SQL statements and cache failures")
	flags.String("dsn", "", "primary database DSN")
	flags.String("driver", "", "database driver (sqlite3, postgres)")
	flags.String("cache", "", "shared cache backend (memory, redis)")
	flags.String("redis", "", "redis address for the redis backend")
	flags.Bool("force-refresh", false, "bypass every cache read")

	_ = a.v.BindPFlag(keyStoreDSN, flags.Lookup("dsn"))
	_ = a.v.BindPFlag(keyStoreDriver, flags.Lookup("driver"))
	_ = a.v.BindPFlag(keyCacheBackend, flags.Lookup("cache"))
	_ = a.v.BindPFlag(keyRedisAddr, flags.Lookup("redis"))
	_ = a.v.BindPFlag(keyForceRefresh, flags.Lookup("force-refresh"))

	root.AddCommand(
		a.getCmd(),
		a.listCmd(),
		a.countCmd(),
		a.setCmd(),
		a.incrCmd(),
		a.deleteCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	config := zap.NewProductionConfig()
	if a.verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := config.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger

	if err := readConfig(a.v, a.configFile); err != nil {
		return err
	}

	container, err := di.NewContainer(containerConfig(a.v), di.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("open record layer: %w", err)
	}
	a.container = container
	return nil
}

func (a *app) teardown(_ *cobra.Command, _ []string) error {
	var err error
	if a.container != nil {
		err = a.container.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return err
}

// model returns the model for table bound to a fresh unit of work.
func (a *app) model(table string) (*record.Model, error) {
	return a.container.NewModel(descriptorFor(a.v, table), nil)
}
