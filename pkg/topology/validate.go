package topology

import (
	"fmt"
	"net/netip"

	"github.com/netlab-dev/azure-topology/pkg/config"
)

const (
	minPrefixLength = 28
	maxPrefixLength = 31
)

// validateConfig rejects input that cannot produce a graph. It runs before
// anything is declared.
func validateConfig(cfg *config.Config) error {
	if cfg.ResourceGroupName == "" {
		return configErr("resource_group_name", "is required (set %s)", config.EnvResourceGroupName)
	}
	if cfg.AdminPassword == "" {
		return configErr("admin_password", "is required (set %s)", config.EnvAdminPassword)
	}
	if cfg.SubscriptionID == "" {
		return configErr("subscription_id", "is required")
	}
	if cfg.AdminUsername == "" {
		return configErr("admin_username", "is required")
	}

	nat := cfg.NATGateway
	if nat.Name == "" || nat.PublicIPPrefixName == "" {
		return configErr("nat_gateway", "name and public_ip_prefix_name are required")
	}
	if nat.Location == "" {
		return configErr("nat_gateway.location", "is required")
	}
	if nat.PrefixLength < minPrefixLength || nat.PrefixLength > maxPrefixLength {
		return configErr("nat_gateway.prefix_length", "%d is outside /%d-/%d", nat.PrefixLength, minPrefixLength, maxPrefixLength)
	}

	if len(cfg.VNets) == 0 {
		return configErr("vnets", "at least one vnet is required")
	}
	vnetNames := make(map[string]bool, len(cfg.VNets))
	for i, vnet := range cfg.VNets {
		field := fmt.Sprintf("vnets[%d]", i)
		if vnet.Name == "" {
			return configErr(field+".name", "is required")
		}
		if vnetNames[vnet.Name] {
			return configErr(field+".name", "vnet %q is declared twice", vnet.Name)
		}
		vnetNames[vnet.Name] = true
		if vnet.Region == "" {
			return configErr(field+".region", "is required for vnet %s", vnet.Name)
		}
		if err := validateSubnets(field, vnet); err != nil {
			return err
		}
	}

	for i, p := range cfg.Peerings {
		if p.VNetA == "" || p.VNetB == "" {
			return configErr(fmt.Sprintf("peerings[%d]", i), "vnet_a and vnet_b are required")
		}
		if p.VNetA == p.VNetB {
			return configErr(fmt.Sprintf("peerings[%d]", i), "vnet %s cannot be peered with itself", p.VNetA)
		}
	}

	vmNames := make(map[string]string)
	nicNames := make(map[string]string)
	tables := []struct {
		field string
		rows  []config.VMConfig
	}{
		{"vms", cfg.VMs},
		{"vms_no_public_ip", cfg.VMsNoPublicIP},
	}
	for _, table := range tables {
		for i, vm := range table.rows {
			field := fmt.Sprintf("%s[%d]", table.field, i)
			if vm.Name == "" {
				return configErr(field+".name", "is required")
			}
			if prev, ok := vmNames[vm.Name]; ok {
				return configErr(field+".name", "vm %q is already declared at %s", vm.Name, prev)
			}
			vmNames[vm.Name] = field
			if vm.Location == "" {
				return configErr(field+".location", "is required for vm %s", vm.Name)
			}
			if vm.NICName == "" {
				return configErr(field+".nic_name", "is required for vm %s", vm.Name)
			}
			if prev, ok := nicNames[vm.NICName]; ok {
				return configErr(field+".nic_name", "nic %q is already used by %s", vm.NICName, prev)
			}
			nicNames[vm.NICName] = field
			if vm.NICSubnet == "" {
				return configErr(field+".nic_subnet", "is required for vm %s", vm.Name)
			}
		}
	}

	return nil
}

func validateSubnets(field string, vnet config.VNetConfig) error {
	space, err := parsePrefix(vnet.VNetAddress)
	if err != nil {
		return configErr(field+".vnet_address", "%v", err)
	}

	prefixes := make([]netip.Prefix, 0, len(vnet.Subnets))
	for j, subnet := range vnet.Subnets {
		sfield := fmt.Sprintf("%s.subnets[%d]", field, j)
		if subnet.Name == "" {
			return configErr(sfield+".name", "is required")
		}
		p, err := parsePrefix(subnet.Subnet)
		if err != nil {
			return configErr(sfield+".subnet", "%v", err)
		}
		if p.Bits() < space.Bits() || !space.Contains(p.Addr()) {
			return configErr(sfield+".subnet", "%s is outside the vnet address space %s", p, space)
		}
		for k, other := range prefixes {
			if p.Overlaps(other) {
				return configErr(sfield+".subnet", "%s overlaps %s (%s)", p, other, vnet.Subnets[k].Name)
			}
		}
		prefixes = append(prefixes, p)
	}
	return nil
}

// parsePrefix accepts only canonical CIDRs, i.e. no host bits set.
func parsePrefix(s string) (netip.Prefix, error) {
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid CIDR %q", s)
	}
	if p.Masked() != p {
		return netip.Prefix{}, fmt.Errorf("CIDR %q has host bits set, use %s", s, p.Masked())
	}
	return p, nil
}
