// Package topology turns configuration tables into a declarative Azure
// resource graph with every cross-reference resolved.
package topology

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/netlab-dev/azure-topology/pkg/config"
	"github.com/netlab-dev/azure-topology/pkg/status"
)

// Fixed resource settings.
const (
	PrefixIPVersion   = "IPv4"
	PrefixSKUName     = "Standard"
	PrefixSKUTier     = "Regional"
	NATGatewaySKUName = "Standard"

	IPConfigurationName = "ipconfig1"

	ImagePublisher = "Canonical"
	ImageOffer     = "UbuntuServer"
	ImageSKU       = "18.04-LTS"
	ImageVersion   = "latest"

	DiskCaching            = "ReadWrite"
	DiskCreateOption       = "FromImage"
	DiskDeleteOption       = "Delete"
	DiskStorageAccountType = "Standard_LRS"

	PatchAssessmentMode = "ImageDefault"
)

// Build declares the full topology described by cfg. It returns the graph
// and the subnet lookup used to resolve NIC subnets. Nothing is returned on
// error: a failed build declares nothing.
func Build(ctx context.Context, cfg *config.Config) (*Graph, *SubnetLookup, error) {
	tracer := otel.Tracer("azure-topology")
	ctx, span := tracer.Start(ctx, "topology.Build")
	defer span.End()

	span.SetAttributes(
		attribute.String("resource_group", cfg.ResourceGroupName),
		attribute.Int("vnets", len(cfg.VNets)),
		attribute.Int("vms", len(cfg.VMs)),
		attribute.Int("vms_no_public_ip", len(cfg.VMsNoPublicIP)),
	)

	if err := validateConfig(cfg); err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	b := &builder{
		cfg:    cfg,
		scope:  scope{subscriptionID: cfg.SubscriptionID, resourceGroup: cfg.ResourceGroupName},
		lookup: NewSubnetLookup(),
		vnets:  make(map[string]*VirtualNetwork, len(cfg.VNets)),
		graph:  &Graph{SubscriptionID: cfg.SubscriptionID},
	}

	steps := []func(context.Context) error{
		b.resourceGroup,
		b.natGateway,
		b.networks,
		b.peerings,
		b.virtualMachines,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			span.RecordError(err)
			return nil, nil, err
		}
	}

	span.SetAttributes(attribute.Int("resources", len(b.graph.Resources())))
	status.Successf(ctx, "Declared %d resources for resource group %s", len(b.graph.Resources()), cfg.ResourceGroupName)

	return b.graph, b.lookup, nil
}

type builder struct {
	cfg    *config.Config
	scope  scope
	lookup *SubnetLookup
	vnets  map[string]*VirtualNetwork
	graph  *Graph
}

func (b *builder) tags(kind string) map[string]string {
	return resourceTags(b.cfg.Tags, b.cfg.ResourceGroupName, kind)
}

func (b *builder) resourceGroup(ctx context.Context) error {
	rg := ResourceGroup{
		LogicalName: b.cfg.ResourceGroupName,
		Name:        b.cfg.ResourceGroupName,
		ID:          b.scope.resourceGroupID(),
		Location:    b.cfg.Location,
		Tags:        b.tags(KindResourceGroup),
	}
	b.graph.ResourceGroup = rg
	status.Declared(ctx, KindResourceGroup, rg.Name, rg.ID)
	return nil
}

func (b *builder) natGateway(ctx context.Context) error {
	nat := b.cfg.NATGateway

	prefix := PublicIPPrefix{
		LogicalName:  "publicIPPrefix",
		Name:         nat.PublicIPPrefixName,
		ID:           b.scope.publicIPPrefixID(nat.PublicIPPrefixName),
		Location:     nat.Location,
		PrefixLength: nat.PrefixLength,
		IPVersion:    PrefixIPVersion,
		SKUName:      PrefixSKUName,
		SKUTier:      PrefixSKUTier,
		Tags:         b.tags(KindPublicIPPrefix),
	}
	b.graph.PublicIPPrefix = prefix
	status.Declared(ctx, KindPublicIPPrefix, prefix.Name, prefix.ID)

	gw := NATGateway{
		LogicalName:       "natGateway",
		Name:              nat.Name,
		ID:                b.scope.natGatewayID(nat.Name),
		Location:          nat.Location,
		SKUName:           NATGatewaySKUName,
		PublicIPPrefixIDs: []string{prefix.ID},
		Tags:              b.tags(KindNATGateway),
	}
	b.graph.NATGateway = gw
	status.Declared(ctx, KindNATGateway, gw.Name, gw.ID)
	return nil
}

func (b *builder) networks(ctx context.Context) error {
	natSubnet := b.cfg.NATGateway.SubnetName
	attached := 0

	b.graph.VirtualNetworks = make([]VirtualNetwork, 0, len(b.cfg.VNets))
	for _, vc := range b.cfg.VNets {
		vnet := VirtualNetwork{
			LogicalName:     vc.Name,
			Name:            vc.Name,
			ID:              b.scope.virtualNetworkID(vc.Name),
			Location:        vc.Region,
			AddressPrefixes: []string{vc.VNetAddress},
			Tags:            b.tags(KindVirtualNetwork),
		}
		status.Declared(ctx, KindVirtualNetwork, vnet.Name, vnet.ID)

		for _, sc := range vc.Subnets {
			subnet := Subnet{
				LogicalName:        sc.Name,
				Name:               sc.Name,
				ID:                 b.scope.subnetID(vc.Name, sc.Name),
				VirtualNetworkName: vnet.Name,
				VirtualNetworkID:   vnet.ID,
				AddressPrefix:      sc.Subnet,
			}
			if sc.Name == natSubnet {
				subnet.NATGatewayID = b.graph.NATGateway.ID
				attached++
			}
			err := b.lookup.Add(sc.Name, SubnetEntry{ID: subnet.ID, VirtualNetwork: vnet.Name, Location: vnet.Location})
			if err != nil {
				return err
			}
			vnet.Subnets = append(vnet.Subnets, subnet)

			update := status.NewUpdate(status.LevelProgress, "Declared subnet "+subnet.Name).
				WithResource(KindSubnet, subnet.Name).
				WithID(subnet.ID).
				WithAction(status.ActionDeclare).
				WithMetadata("vnet", vnet.Name).
				WithMetadata("prefix", subnet.AddressPrefix)
			if subnet.NATGatewayID != "" {
				update = update.WithMetadata("nat_gateway", b.graph.NATGateway.Name)
			}
			status.Send(ctx, update)
		}

		b.graph.VirtualNetworks = append(b.graph.VirtualNetworks, vnet)
	}

	// Point into the final slice so peerings see the stored values.
	for i := range b.graph.VirtualNetworks {
		b.vnets[b.graph.VirtualNetworks[i].Name] = &b.graph.VirtualNetworks[i]
	}

	if attached == 0 {
		status.Warningf(ctx, "NAT gateway %s is not attached to any subnet: no subnet is named %s",
			b.graph.NATGateway.Name, natSubnet)
	}
	return nil
}

func (b *builder) peerings(ctx context.Context) error {
	for i, pc := range b.cfg.Peerings {
		referrer := fmt.Sprintf("peering %s/%s", pc.VNetA, pc.VNetB)
		a, ok := b.vnets[pc.VNetA]
		if !ok {
			return &ReferenceError{Kind: KindVirtualNetwork, Name: pc.VNetA, Referrer: referrer}
		}
		z, ok := b.vnets[pc.VNetB]
		if !ok {
			return &ReferenceError{Kind: KindVirtualNetwork, Name: pc.VNetB, Referrer: referrer}
		}
		if err := checkPeerable(fmt.Sprintf("peerings[%d]", i), a, z); err != nil {
			return err
		}

		for _, dir := range [][2]*VirtualNetwork{{a, z}, {z, a}} {
			local, remote := dir[0], dir[1]
			p := Peering{
				LogicalName:              fmt.Sprintf("%s-to-%s", local.Name, remote.Name),
				Name:                     pc.Name,
				ID:                       b.scope.peeringID(local.Name, pc.Name),
				VirtualNetworkName:       local.Name,
				VirtualNetworkID:         local.ID,
				RemoteVirtualNetworkName: remote.Name,
				RemoteVirtualNetworkID:   remote.ID,
			}
			for _, existing := range b.graph.Peerings {
				if existing.ID == p.ID {
					return configErr(fmt.Sprintf("peerings[%d].name", i),
						"peering %q already exists on vnet %s; give each pair a distinct name", pc.Name, local.Name)
				}
			}
			b.graph.Peerings = append(b.graph.Peerings, p)
			status.Declared(ctx, KindPeering, p.LogicalName, p.ID)
		}
	}
	return nil
}

// checkPeerable rejects peering two VNETs whose address spaces overlap.
func checkPeerable(field string, a, z *VirtualNetwork) error {
	for _, pa := range a.AddressPrefixes {
		for _, pz := range z.AddressPrefixes {
			x, err := parsePrefix(pa)
			if err != nil {
				return configErr(field, "%v", err)
			}
			y, err := parsePrefix(pz)
			if err != nil {
				return configErr(field, "%v", err)
			}
			if x.Overlaps(y) {
				return configErr(field, "address spaces of %s (%s) and %s (%s) overlap", a.Name, x, z.Name, y)
			}
		}
	}
	return nil
}

func (b *builder) virtualMachines(ctx context.Context) error {
	for _, vc := range b.cfg.VMs {
		vm, err := b.virtualMachine(ctx, vc, true)
		if err != nil {
			return err
		}
		b.graph.VirtualMachines = append(b.graph.VirtualMachines, vm)
	}
	for _, vc := range b.cfg.VMsNoPublicIP {
		vm, err := b.virtualMachine(ctx, vc, false)
		if err != nil {
			return err
		}
		b.graph.VirtualMachines = append(b.graph.VirtualMachines, vm)
	}
	return nil
}

// virtualMachine declares one VM with its NIC and, when withPublicIP is set,
// its public IP address.
func (b *builder) virtualMachine(ctx context.Context, vc config.VMConfig, withPublicIP bool) (VirtualMachine, error) {
	subnet, ok := b.lookup.Resolve(vc.NICSubnet)
	if !ok {
		return VirtualMachine{}, &ReferenceError{Kind: KindSubnet, Name: vc.NICSubnet, Referrer: "virtual machine " + vc.Name}
	}
	if subnet.Location != vc.Location {
		status.Warningf(ctx, "VM %s is in %s but subnet %s belongs to vnet %s in %s",
			vc.Name, vc.Location, vc.NICSubnet, subnet.VirtualNetwork, subnet.Location)
	}

	vm := VirtualMachine{
		LogicalName: vc.Name + "-vm",
		Name:        vc.Name,
		ID:          b.scope.virtualMachineID(vc.Name),
		Location:    vc.Location,
		Size:        b.cfg.VMSize,
		OSProfile: OSProfile{
			ComputerName:        vc.Name,
			AdminUsername:       b.cfg.AdminUsername,
			PatchAssessmentMode: PatchAssessmentMode,
			ProvisionVMAgent:    true,
		},
		Image: ImageReference{
			Publisher: ImagePublisher,
			Offer:     ImageOffer,
			SKU:       ImageSKU,
			Version:   ImageVersion,
		},
		OSDisk: OSDisk{
			Name:               vc.Name + "osdisk1",
			Caching:            DiskCaching,
			CreateOption:       DiskCreateOption,
			DeleteOption:       DiskDeleteOption,
			StorageAccountType: DiskStorageAccountType,
		},
		Tags: b.tags(KindVirtualMachine),
	}

	ipc := IPConfiguration{Name: IPConfigurationName, SubnetID: subnet.ID}

	if withPublicIP {
		name := vc.Name + "-pip"
		pip := &PublicIPAddress{
			LogicalName: name,
			Name:        name,
			ID:          b.scope.publicIPAddressID(name),
			Location:    vc.Location,
			Tags:        b.tags(KindPublicIPAddress),
		}
		vm.PublicIPAddress = pip
		ipc.PublicIPAddressID = pip.ID
		status.Declared(ctx, KindPublicIPAddress, pip.Name, pip.ID)
	}

	vm.NetworkInterface = NetworkInterface{
		LogicalName:                 vc.Name + "-nic",
		Name:                        vc.NICName,
		ID:                          b.scope.networkInterfaceID(vc.NICName),
		Location:                    vc.Location,
		EnableAcceleratedNetworking: true,
		IPConfigurations:            []IPConfiguration{ipc},
		Tags:                        b.tags(KindNetworkInterface),
	}
	vm.NetworkInterfaceID = vm.NetworkInterface.ID
	status.Declared(ctx, KindNetworkInterface, vm.NetworkInterface.Name, vm.NetworkInterface.ID)
	status.Declared(ctx, KindVirtualMachine, vm.Name, vm.ID)

	return vm, nil
}
