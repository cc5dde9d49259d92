// Package stack registers a topology graph with the Pulumi engine and
// drives it through the Automation API.
package stack

import (
	"context"
	"fmt"

	"github.com/pulumi/pulumi-azure-native-sdk/compute/v2"
	"github.com/pulumi/pulumi-azure-native-sdk/network/v2"
	"github.com/pulumi/pulumi-azure-native-sdk/resources/v2"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"

	"github.com/netlab-dev/azure-topology/pkg/status"
	"github.com/netlab-dev/azure-topology/pkg/topology"
)

// Stack config keys read by Program.
const (
	ConfigKeyResourceGroup = "rg_name"
	ConfigKeyPassword      = "passwd"
)

// Resources holds the registered Pulumi resources keyed by graph id.
type Resources struct {
	ResourceGroup     *resources.ResourceGroup
	PublicIPPrefix    *network.PublicIPPrefix
	NATGateway        *network.NatGateway
	VirtualNetworks   map[string]*network.VirtualNetwork
	Subnets           map[string]*network.Subnet
	Peerings          map[string]*network.VirtualNetworkPeering
	PublicIPAddresses map[string]*network.PublicIPAddress
	NetworkInterfaces map[string]*network.NetworkInterface
	VirtualMachines   map[string]*compute.VirtualMachine
}

// Program returns a RunFunc declaring g. The admin password is read from
// the passwd stack secret.
func Program(g *topology.Graph) pulumi.RunFunc {
	return program(g, func(ctx *pulumi.Context) context.Context { return ctx.Context() })
}

// program reports registrations on the context returned by statusCtx.
func program(g *topology.Graph, statusCtx func(*pulumi.Context) context.Context) pulumi.RunFunc {
	return func(ctx *pulumi.Context) error {
		password, err := config.New(ctx, "").TrySecret(ConfigKeyPassword)
		if err != nil {
			return fmt.Errorf("stack config %s is required: %w", ConfigKeyPassword, err)
		}

		res, err := declare(statusCtx(ctx), ctx, g, password)
		if err != nil {
			return err
		}

		ctx.Export("resourceGroupName", res.ResourceGroup.Name)
		ctx.Export("natGatewayId", res.NATGateway.ID())
		return nil
	}
}

// Declare registers every node of g in graph order. References between nodes
// are expressed through the outputs of the resources already registered, so
// the engine sees the same dependency edges the graph records.
func Declare(ctx *pulumi.Context, g *topology.Graph, adminPassword pulumi.StringInput) (*Resources, error) {
	return declare(ctx.Context(), ctx, g, adminPassword)
}

func declare(statusCtx context.Context, ctx *pulumi.Context, g *topology.Graph, adminPassword pulumi.StringInput) (*Resources, error) {
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("refusing to declare invalid graph: %w", err)
	}

	d := &declarer{
		ctx:       ctx,
		statusCtx: statusCtx,
		graph:     g,
		res: &Resources{
			VirtualNetworks:   make(map[string]*network.VirtualNetwork),
			Subnets:           make(map[string]*network.Subnet),
			Peerings:          make(map[string]*network.VirtualNetworkPeering),
			PublicIPAddresses: make(map[string]*network.PublicIPAddress),
			NetworkInterfaces: make(map[string]*network.NetworkInterface),
			VirtualMachines:   make(map[string]*compute.VirtualMachine),
		},
	}

	steps := []func() error{
		d.resourceGroup,
		d.natGateway,
		d.networks,
		d.peerings,
		func() error { return d.virtualMachines(adminPassword) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}

	status.Send(statusCtx, status.NewUpdate(status.LevelSuccess, fmt.Sprintf("Registered %d resources", d.registered)).
		WithAction(status.ActionRegister).
		WithMetadata("stack", ctx.Stack()))
	return d.res, nil
}

type declarer struct {
	ctx        *pulumi.Context
	statusCtx  context.Context
	graph      *topology.Graph
	res        *Resources
	registered int
}

func (d *declarer) registeredOne(kind, name, id string) {
	d.registered++
	status.Send(d.statusCtx, status.NewUpdate(status.LevelProgress, "Registered "+kind+" "+name).
		WithResource(kind, name).
		WithID(id).
		WithAction(status.ActionRegister))
}

func (d *declarer) resourceGroupName() pulumi.StringInput {
	return d.res.ResourceGroup.Name
}

func (d *declarer) resourceGroup() error {
	rg := d.graph.ResourceGroup
	r, err := resources.NewResourceGroup(d.ctx, rg.LogicalName, &resources.ResourceGroupArgs{
		ResourceGroupName: pulumi.String(rg.Name),
		Location:          pulumi.String(rg.Location),
		Tags:              pulumi.ToStringMap(rg.Tags),
	})
	if err != nil {
		return fmt.Errorf("failed to declare resource group %s: %w", rg.Name, err)
	}
	d.res.ResourceGroup = r
	d.registeredOne(topology.KindResourceGroup, rg.Name, rg.ID)
	return nil
}

func (d *declarer) natGateway() error {
	prefix := d.graph.PublicIPPrefix
	p, err := network.NewPublicIPPrefix(d.ctx, prefix.LogicalName, &network.PublicIPPrefixArgs{
		PublicIpPrefixName:     pulumi.String(prefix.Name),
		ResourceGroupName:      d.resourceGroupName(),
		Location:               pulumi.String(prefix.Location),
		PrefixLength:           pulumi.Int(prefix.PrefixLength),
		PublicIPAddressVersion: pulumi.String(prefix.IPVersion),
		Sku: &network.PublicIPPrefixSkuArgs{
			Name: pulumi.String(prefix.SKUName),
			Tier: pulumi.String(prefix.SKUTier),
		},
		Tags: pulumi.ToStringMap(prefix.Tags),
	})
	if err != nil {
		return fmt.Errorf("failed to declare public IP prefix %s: %w", prefix.Name, err)
	}
	d.res.PublicIPPrefix = p
	d.registeredOne(topology.KindPublicIPPrefix, prefix.Name, prefix.ID)

	nat := d.graph.NATGateway
	n, err := network.NewNatGateway(d.ctx, nat.LogicalName, &network.NatGatewayArgs{
		NatGatewayName:    pulumi.String(nat.Name),
		ResourceGroupName: d.resourceGroupName(),
		Location:          pulumi.String(nat.Location),
		PublicIpPrefixes: network.SubResourceArray{
			network.SubResourceArgs{Id: p.ID()},
		},
		Sku: &network.NatGatewaySkuArgs{
			Name: pulumi.String(nat.SKUName),
		},
		Tags: pulumi.ToStringMap(nat.Tags),
	})
	if err != nil {
		return fmt.Errorf("failed to declare NAT gateway %s: %w", nat.Name, err)
	}
	d.res.NATGateway = n
	d.registeredOne(topology.KindNATGateway, nat.Name, nat.ID)
	return nil
}

func (d *declarer) networks() error {
	for _, vnet := range d.graph.VirtualNetworks {
		v, err := network.NewVirtualNetwork(d.ctx, vnet.LogicalName, &network.VirtualNetworkArgs{
			VirtualNetworkName: pulumi.String(vnet.Name),
			ResourceGroupName:  d.resourceGroupName(),
			Location:           pulumi.String(vnet.Location),
			AddressSpace: &network.AddressSpaceArgs{
				AddressPrefixes: pulumi.ToStringArray(vnet.AddressPrefixes),
			},
			Tags: pulumi.ToStringMap(vnet.Tags),
		})
		if err != nil {
			return fmt.Errorf("failed to declare virtual network %s: %w", vnet.Name, err)
		}
		d.res.VirtualNetworks[vnet.ID] = v
		d.registeredOne(topology.KindVirtualNetwork, vnet.Name, vnet.ID)

		for _, subnet := range vnet.Subnets {
			args := &network.SubnetArgs{
				SubnetName:         pulumi.String(subnet.Name),
				ResourceGroupName:  d.resourceGroupName(),
				VirtualNetworkName: v.Name,
				AddressPrefix:      pulumi.String(subnet.AddressPrefix),
			}
			if subnet.NATGatewayID != "" {
				args.NatGateway = &network.SubResourceArgs{Id: d.res.NATGateway.ID()}
			}

			s, err := network.NewSubnet(d.ctx, subnet.LogicalName, args, pulumi.Parent(v))
			if err != nil {
				return fmt.Errorf("failed to declare subnet %s: %w", subnet.Name, err)
			}
			d.res.Subnets[subnet.ID] = s
			d.registeredOne(topology.KindSubnet, subnet.Name, subnet.ID)
		}
	}
	return nil
}

func (d *declarer) peerings() error {
	for _, peer := range d.graph.Peerings {
		local := d.res.VirtualNetworks[peer.VirtualNetworkID]
		remote := d.res.VirtualNetworks[peer.RemoteVirtualNetworkID]

		p, err := network.NewVirtualNetworkPeering(d.ctx, peer.LogicalName, &network.VirtualNetworkPeeringArgs{
			VirtualNetworkPeeringName: pulumi.String(peer.Name),
			ResourceGroupName:         d.resourceGroupName(),
			VirtualNetworkName:        local.Name,
			RemoteVirtualNetwork:      &network.SubResourceArgs{Id: remote.ID()},
		}, pulumi.Parent(local))
		if err != nil {
			return fmt.Errorf("failed to declare peering %s: %w", peer.LogicalName, err)
		}
		d.res.Peerings[peer.ID] = p
		d.registeredOne(topology.KindPeering, peer.LogicalName, peer.ID)
	}
	return nil
}

func (d *declarer) virtualMachines(adminPassword pulumi.StringInput) error {
	for _, vm := range d.graph.VirtualMachines {
		if err := d.virtualMachine(vm, adminPassword); err != nil {
			return err
		}
	}
	return nil
}

func (d *declarer) virtualMachine(vm topology.VirtualMachine, adminPassword pulumi.StringInput) error {
	nic := vm.NetworkInterface
	ipc := nic.IPConfigurations[0]

	ipArgs := network.NetworkInterfaceIPConfigurationArgs{
		Name:   pulumi.String(ipc.Name),
		Subnet: &network.SubnetTypeArgs{Id: d.res.Subnets[ipc.SubnetID].ID()},
	}

	if pip := vm.PublicIPAddress; pip != nil {
		p, err := network.NewPublicIPAddress(d.ctx, pip.LogicalName, &network.PublicIPAddressArgs{
			PublicIpAddressName: pulumi.String(pip.Name),
			ResourceGroupName:   d.resourceGroupName(),
			Location:            pulumi.String(pip.Location),
			Tags:                pulumi.ToStringMap(pip.Tags),
		})
		if err != nil {
			return fmt.Errorf("failed to declare public IP %s: %w", pip.Name, err)
		}
		d.res.PublicIPAddresses[pip.ID] = p
		d.registeredOne(topology.KindPublicIPAddress, pip.Name, pip.ID)
		ipArgs.PublicIPAddress = &network.PublicIPAddressTypeArgs{Id: p.ID()}
	}

	n, err := network.NewNetworkInterface(d.ctx, nic.LogicalName, &network.NetworkInterfaceArgs{
		NetworkInterfaceName:        pulumi.String(nic.Name),
		ResourceGroupName:           d.resourceGroupName(),
		Location:                    pulumi.String(nic.Location),
		EnableAcceleratedNetworking: pulumi.Bool(nic.EnableAcceleratedNetworking),
		IpConfigurations:            network.NetworkInterfaceIPConfigurationArray{ipArgs},
		Tags:                        pulumi.ToStringMap(nic.Tags),
	})
	if err != nil {
		return fmt.Errorf("failed to declare network interface %s: %w", nic.Name, err)
	}
	d.res.NetworkInterfaces[nic.ID] = n
	d.registeredOne(topology.KindNetworkInterface, nic.Name, nic.ID)

	v, err := compute.NewVirtualMachine(d.ctx, vm.LogicalName, &compute.VirtualMachineArgs{
		VmName:            pulumi.String(vm.Name),
		ResourceGroupName: d.resourceGroupName(),
		Location:          pulumi.String(vm.Location),
		HardwareProfile: &compute.HardwareProfileArgs{
			VmSize: pulumi.String(vm.Size),
		},
		NetworkProfile: &compute.NetworkProfileArgs{
			NetworkInterfaces: compute.NetworkInterfaceReferenceArray{
				compute.NetworkInterfaceReferenceArgs{
					Id:      n.ID(),
					Primary: pulumi.Bool(true),
				},
			},
		},
		OsProfile: &compute.OSProfileArgs{
			AdminPassword: adminPassword,
			AdminUsername: pulumi.String(vm.OSProfile.AdminUsername),
			ComputerName:  pulumi.String(vm.OSProfile.ComputerName),
			LinuxConfiguration: &compute.LinuxConfigurationArgs{
				PatchSettings: &compute.LinuxPatchSettingsArgs{
					AssessmentMode: pulumi.String(vm.OSProfile.PatchAssessmentMode),
				},
				ProvisionVMAgent: pulumi.Bool(vm.OSProfile.ProvisionVMAgent),
			},
		},
		StorageProfile: &compute.StorageProfileArgs{
			ImageReference: &compute.ImageReferenceArgs{
				Publisher: pulumi.String(vm.Image.Publisher),
				Offer:     pulumi.String(vm.Image.Offer),
				Sku:       pulumi.String(vm.Image.SKU),
				Version:   pulumi.String(vm.Image.Version),
			},
			OsDisk: &compute.OSDiskArgs{
				Name:         pulumi.String(vm.OSDisk.Name),
				Caching:      compute.CachingTypes(vm.OSDisk.Caching),
				CreateOption: pulumi.String(vm.OSDisk.CreateOption),
				DeleteOption: pulumi.String(vm.OSDisk.DeleteOption),
				ManagedDisk: &compute.ManagedDiskParametersArgs{
					StorageAccountType: pulumi.String(vm.OSDisk.StorageAccountType),
				},
			},
		},
		Tags: pulumi.ToStringMap(vm.Tags),
	}, pulumi.DependsOn([]pulumi.Resource{n}))
	if err != nil {
		return fmt.Errorf("failed to declare virtual machine %s: %w", vm.Name, err)
	}
	d.res.VirtualMachines[vm.ID] = v
	d.registeredOne(topology.KindVirtualMachine, vm.Name, vm.ID)
	return nil
}
