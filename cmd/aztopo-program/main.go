// Command aztopo-program is the Pulumi program entry point for use with the
// pulumi CLI. The resource group name and the admin password come from the
// rg_name and passwd stack config values.
package main

import (
	"os"

	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"

	pconfig "github.com/netlab-dev/azure-topology/pkg/config"
	"github.com/netlab-dev/azure-topology/pkg/stack"
	"github.com/netlab-dev/azure-topology/pkg/topology"
)

// EnvTopologyFile optionally points at a topology YAML file; the built-in
// tables are used otherwise.
const EnvTopologyFile = "AZTOPO_CONFIG"

func main() {
	pulumi.Run(run)
}

func run(ctx *pulumi.Context) error {
	conf := config.New(ctx, "")

	cfg, err := pconfig.Load(ctx.Context(), os.Getenv(EnvTopologyFile))
	if err != nil {
		return err
	}
	if cfg.ResourceGroupName, err = conf.Try(stack.ConfigKeyResourceGroup); err != nil {
		return err
	}
	if cfg.AdminPassword, err = conf.Try(stack.ConfigKeyPassword); err != nil {
		return err
	}
	if sub := conf.Get("subscription_id"); sub != "" {
		cfg.SubscriptionID = sub
	}

	g, _, err := topology.Build(ctx.Context(), cfg)
	if err != nil {
		return err
	}

	password, err := conf.TrySecret(stack.ConfigKeyPassword)
	if err != nil {
		return err
	}
	_, err = stack.Declare(ctx, g, password)
	return err
}
