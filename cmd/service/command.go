package service

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/filedepot/filedepot/app/core"
	"github.com/filedepot/filedepot/app/logic/v1/process"
	"github.com/filedepot/filedepot/pkg/security"
	"github.com/filedepot/filedepot/pkg/types"
	"github.com/filedepot/filedepot/pkg/utils"
)

type Options struct {
	ConfigPath string
}

func (o *Options) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&o.ConfigPath, "config", "c", "", "init api by given config")
}

func NewCommand() *cobra.Command {
	opts := &Options{}
	cmd := &cobra.Command{
		Use:   "service",
		Short: "file lifecycle service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(opts)
		},
	}
	opts.AddFlags(cmd.Flags())
	return cmd
}

func Run(opts *Options) error {
	app := core.MustSetupCore(core.MustLoadBaseConfig(opts.ConfigPath))
	process.NewProcess(app).Start()
	serve(app)

	return nil
}

func NewProcessCommand() *cobra.Command {
	opts := &Options{}
	cmd := &cobra.Command{
		Use:   "process",
		Short: "background workers only",
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunProcess(opts)
		},
	}
	opts.AddFlags(cmd.Flags())
	return cmd
}

func RunProcess(opts *Options) error {
	app := core.MustSetupCore(core.MustLoadBaseConfig(opts.ConfigPath))
	p := process.NewProcess(app)
	p.Start()
	fmt.Println("Process starting...")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	<-sigs
	p.Stop()
	return nil
}

// NewBootstrapCommand 初始化租户与首个管理员，打印可用的访问 token
func NewBootstrapCommand() *cobra.Command {
	opts := &Options{}
	var tenantName, adminName string

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "create the first tenant and chief user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunBootstrap(opts, tenantName, adminName)
		},
	}
	opts.AddFlags(cmd.Flags())
	cmd.Flags().StringVar(&tenantName, "tenant", "default", "tenant name")
	cmd.Flags().StringVar(&adminName, "admin", "admin", "chief user name")
	return cmd
}

func RunBootstrap(opts *Options, tenantName, adminName string) error {
	app := core.MustSetupCore(core.MustLoadBaseConfig(opts.ConfigPath))
	ctx := context.Background()

	tenant := types.Tenant{
		ID:          utils.GenUniqIDStr(),
		Name:        tenantName,
		ScanEnabled: true,
	}
	if err := app.Store().TenantStore().Create(ctx, tenant); err != nil {
		return err
	}

	now := time.Now().Unix()
	user := types.User{
		ID:        utils.GenUniqIDStr(),
		TenantID:  tenant.ID,
		Name:      adminName,
		Role:      types.RoleChief,
		Status:    types.USER_STATUS_ACTIVE,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := app.Store().UserStore().Create(ctx, user); err != nil {
		return err
	}

	claims := security.NewTokenClaims(tenant.ID, user.ID, user.Role, "", time.Now().Add(365*24*time.Hour).Unix())
	token, err := security.GenerateJWT(claims, []byte(app.Cfg().Security.JWTSecret))
	if err != nil {
		return err
	}

	fmt.Println("tenant:", tenant.ID)
	fmt.Println("user:", user.ID)
	fmt.Println("token:", token)
	return nil
}
