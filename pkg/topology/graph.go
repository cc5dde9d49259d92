package topology

import "fmt"

// Resource kinds, also used as status update kinds and tag values.
const (
	KindResourceGroup    = "resource-group"
	KindPublicIPPrefix   = "public-ip-prefix"
	KindNATGateway       = "nat-gateway"
	KindVirtualNetwork   = "virtual-network"
	KindSubnet           = "subnet"
	KindPeering          = "vnet-peering"
	KindPublicIPAddress  = "public-ip"
	KindNetworkInterface = "network-interface"
	KindVirtualMachine   = "virtual-machine"
)

// Graph is the declarative resource graph produced by Build. Slices are in
// declaration order and every reference points at an entity declared before
// the one holding it.
type Graph struct {
	SubscriptionID  string           `json:"subscriptionId" yaml:"subscription_id"`
	ResourceGroup   ResourceGroup    `json:"resourceGroup" yaml:"resource_group"`
	PublicIPPrefix  PublicIPPrefix   `json:"publicIpPrefix" yaml:"public_ip_prefix"`
	NATGateway      NATGateway       `json:"natGateway" yaml:"nat_gateway"`
	VirtualNetworks []VirtualNetwork `json:"virtualNetworks" yaml:"virtual_networks"`
	Peerings        []Peering        `json:"peerings" yaml:"peerings"`
	VirtualMachines []VirtualMachine `json:"virtualMachines" yaml:"virtual_machines"`
}

type ResourceGroup struct {
	LogicalName string            `json:"logicalName" yaml:"logical_name"`
	Name        string            `json:"name" yaml:"name"`
	ID          string            `json:"id" yaml:"id"`
	Location    string            `json:"location" yaml:"location"`
	Tags        map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

type PublicIPPrefix struct {
	LogicalName  string            `json:"logicalName" yaml:"logical_name"`
	Name         string            `json:"name" yaml:"name"`
	ID           string            `json:"id" yaml:"id"`
	Location     string            `json:"location" yaml:"location"`
	PrefixLength int               `json:"prefixLength" yaml:"prefix_length"`
	IPVersion    string            `json:"ipVersion" yaml:"ip_version"`
	SKUName      string            `json:"skuName" yaml:"sku_name"`
	SKUTier      string            `json:"skuTier" yaml:"sku_tier"`
	Tags         map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

type NATGateway struct {
	LogicalName       string            `json:"logicalName" yaml:"logical_name"`
	Name              string            `json:"name" yaml:"name"`
	ID                string            `json:"id" yaml:"id"`
	Location          string            `json:"location" yaml:"location"`
	SKUName           string            `json:"skuName" yaml:"sku_name"`
	PublicIPPrefixIDs []string          `json:"publicIpPrefixIds" yaml:"public_ip_prefix_ids"`
	Tags              map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

type VirtualNetwork struct {
	LogicalName     string            `json:"logicalName" yaml:"logical_name"`
	Name            string            `json:"name" yaml:"name"`
	ID              string            `json:"id" yaml:"id"`
	Location        string            `json:"location" yaml:"location"`
	AddressPrefixes []string          `json:"addressPrefixes" yaml:"address_prefixes"`
	Subnets         []Subnet          `json:"subnets" yaml:"subnets"`
	Tags            map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Subnet is declared as a child of its VNET. NATGatewayID is empty unless the
// subnet is the configured NAT subnet.
type Subnet struct {
	LogicalName        string `json:"logicalName" yaml:"logical_name"`
	Name               string `json:"name" yaml:"name"`
	ID                 string `json:"id" yaml:"id"`
	VirtualNetworkName string `json:"virtualNetworkName" yaml:"virtual_network_name"`
	VirtualNetworkID   string `json:"virtualNetworkId" yaml:"virtual_network_id"`
	AddressPrefix      string `json:"addressPrefix" yaml:"address_prefix"`
	NATGatewayID       string `json:"natGatewayId,omitempty" yaml:"nat_gateway_id,omitempty"`
}

// Peering is one direction of a VNET peering.
type Peering struct {
	LogicalName              string `json:"logicalName" yaml:"logical_name"`
	Name                     string `json:"name" yaml:"name"`
	ID                       string `json:"id" yaml:"id"`
	VirtualNetworkName       string `json:"virtualNetworkName" yaml:"virtual_network_name"`
	VirtualNetworkID         string `json:"virtualNetworkId" yaml:"virtual_network_id"`
	RemoteVirtualNetworkName string `json:"remoteVirtualNetworkName" yaml:"remote_virtual_network_name"`
	RemoteVirtualNetworkID   string `json:"remoteVirtualNetworkId" yaml:"remote_virtual_network_id"`
}

type PublicIPAddress struct {
	LogicalName string            `json:"logicalName" yaml:"logical_name"`
	Name        string            `json:"name" yaml:"name"`
	ID          string            `json:"id" yaml:"id"`
	Location    string            `json:"location" yaml:"location"`
	Tags        map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

type IPConfiguration struct {
	Name              string `json:"name" yaml:"name"`
	SubnetID          string `json:"subnetId" yaml:"subnet_id"`
	PublicIPAddressID string `json:"publicIpAddressId,omitempty" yaml:"public_ip_address_id,omitempty"`
}

type NetworkInterface struct {
	LogicalName                 string            `json:"logicalName" yaml:"logical_name"`
	Name                        string            `json:"name" yaml:"name"`
	ID                          string            `json:"id" yaml:"id"`
	Location                    string            `json:"location" yaml:"location"`
	EnableAcceleratedNetworking bool              `json:"enableAcceleratedNetworking" yaml:"enable_accelerated_networking"`
	IPConfigurations            []IPConfiguration `json:"ipConfigurations" yaml:"ip_configurations"`
	Tags                        map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

type ImageReference struct {
	Publisher string `json:"publisher" yaml:"publisher"`
	Offer     string `json:"offer" yaml:"offer"`
	SKU       string `json:"sku" yaml:"sku"`
	Version   string `json:"version" yaml:"version"`
}

type OSDisk struct {
	Name               string `json:"name" yaml:"name"`
	Caching            string `json:"caching" yaml:"caching"`
	CreateOption       string `json:"createOption" yaml:"create_option"`
	DeleteOption       string `json:"deleteOption" yaml:"delete_option"`
	StorageAccountType string `json:"storageAccountType" yaml:"storage_account_type"`
}

// OSProfile carries everything about the guest OS except the admin
// password, which never enters the graph.
type OSProfile struct {
	ComputerName        string `json:"computerName" yaml:"computer_name"`
	AdminUsername       string `json:"adminUsername" yaml:"admin_username"`
	PatchAssessmentMode string `json:"patchAssessmentMode" yaml:"patch_assessment_mode"`
	ProvisionVMAgent    bool   `json:"provisionVmAgent" yaml:"provision_vm_agent"`
}

// VirtualMachine owns exactly one NIC and, for tables with public IPs,
// exactly one public IP address.
type VirtualMachine struct {
	LogicalName        string            `json:"logicalName" yaml:"logical_name"`
	Name               string            `json:"name" yaml:"name"`
	ID                 string            `json:"id" yaml:"id"`
	Location           string            `json:"location" yaml:"location"`
	Size               string            `json:"size" yaml:"size"`
	PublicIPAddress    *PublicIPAddress  `json:"publicIpAddress,omitempty" yaml:"public_ip_address,omitempty"`
	NetworkInterface   NetworkInterface  `json:"networkInterface" yaml:"network_interface"`
	NetworkInterfaceID string            `json:"networkInterfaceId" yaml:"network_interface_id"`
	OSProfile          OSProfile         `json:"osProfile" yaml:"os_profile"`
	Image              ImageReference    `json:"image" yaml:"image"`
	OSDisk             OSDisk            `json:"osDisk" yaml:"os_disk"`
	Tags               map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Ref identifies one node of the graph.
type Ref struct {
	Kind        string
	LogicalName string
	Name        string
	ID          string
}

// Resources lists every node in declaration order.
func (g *Graph) Resources() []Ref {
	refs := []Ref{
		{KindResourceGroup, g.ResourceGroup.LogicalName, g.ResourceGroup.Name, g.ResourceGroup.ID},
		{KindPublicIPPrefix, g.PublicIPPrefix.LogicalName, g.PublicIPPrefix.Name, g.PublicIPPrefix.ID},
		{KindNATGateway, g.NATGateway.LogicalName, g.NATGateway.Name, g.NATGateway.ID},
	}
	for _, vnet := range g.VirtualNetworks {
		refs = append(refs, Ref{KindVirtualNetwork, vnet.LogicalName, vnet.Name, vnet.ID})
		for _, subnet := range vnet.Subnets {
			refs = append(refs, Ref{KindSubnet, subnet.LogicalName, subnet.Name, subnet.ID})
		}
	}
	for _, p := range g.Peerings {
		refs = append(refs, Ref{KindPeering, p.LogicalName, p.Name, p.ID})
	}
	for _, vm := range g.VirtualMachines {
		if pip := vm.PublicIPAddress; pip != nil {
			refs = append(refs, Ref{KindPublicIPAddress, pip.LogicalName, pip.Name, pip.ID})
		}
		nic := vm.NetworkInterface
		refs = append(refs, Ref{KindNetworkInterface, nic.LogicalName, nic.Name, nic.ID})
		refs = append(refs, Ref{KindVirtualMachine, vm.LogicalName, vm.Name, vm.ID})
	}
	return refs
}

// Counts returns the number of nodes per kind.
func (g *Graph) Counts() map[string]int {
	counts := make(map[string]int)
	for _, ref := range g.Resources() {
		counts[ref.Kind]++
	}
	return counts
}

// Subnets returns every subnet across all VNETs in declaration order.
func (g *Graph) Subnets() []Subnet {
	var out []Subnet
	for _, vnet := range g.VirtualNetworks {
		out = append(out, vnet.Subnets...)
	}
	return out
}

// Validate checks that every reference in the graph resolves to an entity
// declared earlier, that ids are unique, and that each VM's NIC is the one it
// owns.
func (g *Graph) Validate() error {
	declared := make(map[string]string)
	declare := func(kind, id string) error {
		if prev, ok := declared[id]; ok {
			return fmt.Errorf("duplicate resource id %s (%s and %s)", id, prev, kind)
		}
		declared[id] = kind
		return nil
	}
	resolve := func(referrer, kind, id string) error {
		if got, ok := declared[id]; !ok || got != kind {
			return &ReferenceError{Kind: kind, Name: id, Referrer: referrer}
		}
		return nil
	}

	if err := declare(KindResourceGroup, g.ResourceGroup.ID); err != nil {
		return err
	}
	if err := declare(KindPublicIPPrefix, g.PublicIPPrefix.ID); err != nil {
		return err
	}
	for _, id := range g.NATGateway.PublicIPPrefixIDs {
		if err := resolve("nat gateway "+g.NATGateway.Name, KindPublicIPPrefix, id); err != nil {
			return err
		}
	}
	if err := declare(KindNATGateway, g.NATGateway.ID); err != nil {
		return err
	}

	for _, vnet := range g.VirtualNetworks {
		if err := declare(KindVirtualNetwork, vnet.ID); err != nil {
			return err
		}
		for _, subnet := range vnet.Subnets {
			referrer := "subnet " + subnet.Name
			if subnet.VirtualNetworkID != vnet.ID {
				return &ReferenceError{Kind: KindVirtualNetwork, Name: subnet.VirtualNetworkID, Referrer: referrer}
			}
			if subnet.NATGatewayID != "" {
				if err := resolve(referrer, KindNATGateway, subnet.NATGatewayID); err != nil {
					return err
				}
			}
			if err := declare(KindSubnet, subnet.ID); err != nil {
				return err
			}
		}
	}

	for _, p := range g.Peerings {
		referrer := "peering " + p.LogicalName
		if err := resolve(referrer, KindVirtualNetwork, p.VirtualNetworkID); err != nil {
			return err
		}
		if err := resolve(referrer, KindVirtualNetwork, p.RemoteVirtualNetworkID); err != nil {
			return err
		}
		if err := declare(KindPeering, p.ID); err != nil {
			return err
		}
	}

	for _, vm := range g.VirtualMachines {
		if pip := vm.PublicIPAddress; pip != nil {
			if err := declare(KindPublicIPAddress, pip.ID); err != nil {
				return err
			}
		}
		nic := vm.NetworkInterface
		for _, ipc := range nic.IPConfigurations {
			referrer := "network interface " + nic.Name
			if err := resolve(referrer, KindSubnet, ipc.SubnetID); err != nil {
				return err
			}
			if ipc.PublicIPAddressID != "" {
				if vm.PublicIPAddress == nil || vm.PublicIPAddress.ID != ipc.PublicIPAddressID {
					return &ReferenceError{Kind: KindPublicIPAddress, Name: ipc.PublicIPAddressID, Referrer: referrer}
				}
			}
		}
		if err := declare(KindNetworkInterface, nic.ID); err != nil {
			return err
		}
		if vm.NetworkInterfaceID != nic.ID {
			return &ReferenceError{Kind: KindNetworkInterface, Name: vm.NetworkInterfaceID, Referrer: "virtual machine " + vm.Name}
		}
		if err := declare(KindVirtualMachine, vm.ID); err != nil {
			return err
		}
	}

	return nil
}
