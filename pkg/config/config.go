package config

// Config represents a parsed topology file. The VNET and VM tables are
// ordered; the builder walks them in the order they appear.
type Config struct {
	// SubscriptionID scopes the deterministic resource ids of the manifest
	SubscriptionID string `yaml:"subscription_id,omitempty"`

	// ResourceGroupName is normally supplied through AZTOPO_RG_NAME
	ResourceGroupName string `yaml:"resource_group_name,omitempty"`

	// Location is the resource group's region and the engine's default region
	Location string `yaml:"location,omitempty"`

	// AdminPassword is never read from the file, only from AZTOPO_ADMIN_PASSWORD
	AdminPassword string `yaml:"-"`

	AdminUsername string            `yaml:"admin_username,omitempty"`
	VMSize        string            `yaml:"vm_size,omitempty"`
	Tags          map[string]string `yaml:"tags,omitempty"`

	NATGateway NATGatewayConfig `yaml:"nat_gateway,omitempty"`
	Peerings   []PeeringConfig  `yaml:"peerings,omitempty"`

	VNets         []VNetConfig `yaml:"vnets"`
	VMs           []VMConfig   `yaml:"vms,omitempty"`
	VMsNoPublicIP []VMConfig   `yaml:"vms_no_public_ip,omitempty"`
}

// NATGatewayConfig configures the single NAT gateway and the prefix feeding it.
type NATGatewayConfig struct {
	Name               string `yaml:"name,omitempty"`
	Location           string `yaml:"location,omitempty"`
	PublicIPPrefixName string `yaml:"public_ip_prefix_name,omitempty"`
	PrefixLength       int    `yaml:"prefix_length,omitempty"`
	// SubnetName selects the subnet the gateway is attached to
	SubnetName string `yaml:"subnet_name,omitempty"`
}

// PeeringConfig declares a bidirectional peering between two VNETs.
type PeeringConfig struct {
	Name  string `yaml:"name,omitempty"`
	VNetA string `yaml:"vnet_a"`
	VNetB string `yaml:"vnet_b"`
}

// VNetConfig is one row of the VNET table.
type VNetConfig struct {
	Name        string         `yaml:"name"`
	Region      string         `yaml:"region"`
	VNetAddress string         `yaml:"vnet_address"`
	Subnets     []SubnetConfig `yaml:"subnets,omitempty"`
}

// SubnetConfig is a subnet within a VNET row. Names are global lookup keys.
type SubnetConfig struct {
	Name   string `yaml:"name"`
	Subnet string `yaml:"subnet"`
}

// VMConfig is one row of a VM table.
type VMConfig struct {
	Name      string `yaml:"name"`
	Location  string `yaml:"location"`
	NICSubnet string `yaml:"nic_subnet"`
	NICName   string `yaml:"nic_name"`
}

const (
	DefaultSubscriptionID     = "00000000-0000-0000-0000-000000000000"
	DefaultLocation           = "northeurope"
	DefaultAdminUsername      = "juliopdx"
	DefaultVMSize             = "Standard_D1_v2"
	DefaultNATGatewayName     = "natgateway"
	DefaultNATLocation        = "northeurope"
	DefaultPublicIPPrefixName = "test-ip-prefix"
	DefaultPrefixLength       = 31
	DefaultNATSubnetName      = "ManufacturingSystemSubnet"
	DefaultPeeringName        = "peer"
)

// DefaultPeerings is the single hub pair the lab was built around.
func DefaultPeerings() []PeeringConfig {
	return []PeeringConfig{
		{Name: DefaultPeeringName, VNetA: "CoreServicesVnet", VNetB: "ManufacturingVnet"},
	}
}

// Default returns the built-in topology tables.
func Default() *Config {
	cfg := &Config{
		VNets: []VNetConfig{
			{
				Name:        "CoreServicesVnet",
				Region:      "eastus",
				VNetAddress: "10.20.0.0/16",
				Subnets: []SubnetConfig{
					{Name: "GatewaySubnet", Subnet: "10.20.0.0/27"},
					{Name: "SharedServicesSubnet", Subnet: "10.20.10.0/24"},
					{Name: "DatabaseSubnet", Subnet: "10.20.20.0/24"},
					{Name: "PublicWebServiceSubnet", Subnet: "10.20.30.0/24"},
				},
			},
			{
				Name:        "ManufacturingVnet",
				Region:      "northeurope",
				VNetAddress: "10.30.0.0/16",
				Subnets: []SubnetConfig{
					{Name: "ManufacturingSystemSubnet", Subnet: "10.30.10.0/24"},
					{Name: "SensorSubnet1", Subnet: "10.30.20.0/24"},
					{Name: "SensorSubnet2", Subnet: "10.30.21.0/24"},
					{Name: "SensorSubnet3", Subnet: "10.30.22.0/24"},
				},
			},
			{
				Name:        "ResearchVnet",
				Region:      "southeastasia",
				VNetAddress: "10.40.0.0/16",
				Subnets: []SubnetConfig{
					{Name: "ResearchSystemSubnet", Subnet: "10.40.0.0/24"},
				},
			},
		},
		VMs: []VMConfig{
			{Name: "CoreServicesVM", Location: "eastus", NICSubnet: "SharedServicesSubnet", NICName: "CoreServicesVM-nic"},
			{Name: "ManufacturingVM", Location: "northeurope", NICSubnet: "SensorSubnet1", NICName: "ManufacturingVM-nic"},
		},
		VMsNoPublicIP: []VMConfig{
			{Name: "NatTestVM1", Location: "northeurope", NICSubnet: "ManufacturingSystemSubnet", NICName: "NatTestVM1-nic"},
			{Name: "NatTestVM2", Location: "northeurope", NICSubnet: "ManufacturingSystemSubnet", NICName: "NatTestVM2-nic"},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every omitted scalar setting. Tables are left alone.
func (c *Config) ApplyDefaults() {
	if c.SubscriptionID == "" {
		c.SubscriptionID = DefaultSubscriptionID
	}
	if c.Location == "" {
		c.Location = DefaultLocation
	}
	if c.AdminUsername == "" {
		c.AdminUsername = DefaultAdminUsername
	}
	if c.VMSize == "" {
		c.VMSize = DefaultVMSize
	}

	nat := &c.NATGateway
	if nat.Name == "" {
		nat.Name = DefaultNATGatewayName
	}
	if nat.Location == "" {
		nat.Location = DefaultNATLocation
	}
	if nat.PublicIPPrefixName == "" {
		nat.PublicIPPrefixName = DefaultPublicIPPrefixName
	}
	if nat.PrefixLength == 0 {
		nat.PrefixLength = DefaultPrefixLength
	}
	if nat.SubnetName == "" {
		nat.SubnetName = DefaultNATSubnetName
	}

	if c.Peerings == nil {
		c.Peerings = DefaultPeerings()
	}
	for i := range c.Peerings {
		if c.Peerings[i].Name == "" {
			c.Peerings[i].Name = DefaultPeeringName
		}
	}
}
