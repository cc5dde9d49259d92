package manifest

import (
	"fmt"
	"io"
	"strings"

	"github.com/netlab-dev/azure-topology/pkg/topology"
)

// RenderD2 writes g as a D2 diagram: one container per VNET holding its
// subnets and the VMs attached to them, the NAT gateway with its prefix,
// and peerings as edges between VNETs.
func RenderD2(w io.Writer, g *topology.Graph) error {
	var b strings.Builder

	fmt.Fprintf(&b, "direction: right\n\n")
	fmt.Fprintf(&b, "%s: %s {\n", d2ID(g.ResourceGroup.Name), d2Quote("Resource group "+g.ResourceGroup.Name))

	// VMs grouped under the subnet their NIC lands in.
	vmsBySubnet := make(map[string][]topology.VirtualMachine)
	for _, vm := range g.VirtualMachines {
		subnetID := vm.NetworkInterface.IPConfigurations[0].SubnetID
		vmsBySubnet[subnetID] = append(vmsBySubnet[subnetID], vm)
	}

	fmt.Fprintf(&b, "  nat: %s {\n", d2Quote("NAT "+g.NATGateway.Name))
	fmt.Fprintf(&b, "    prefix: %s\n", d2Quote(fmt.Sprintf("%s /%d", g.PublicIPPrefix.Name, g.PublicIPPrefix.PrefixLength)))
	fmt.Fprintf(&b, "  }\n\n")

	for _, vnet := range g.VirtualNetworks {
		vnetID := d2ID(vnet.Name)
		fmt.Fprintf(&b, "  %s: %s {\n", vnetID, d2Quote(fmt.Sprintf("%s %s (%s)", vnet.Name, strings.Join(vnet.AddressPrefixes, ", "), vnet.Location)))
		for _, subnet := range vnet.Subnets {
			fmt.Fprintf(&b, "    %s: %s {\n", d2ID(subnet.Name), d2Quote(subnet.Name+" "+subnet.AddressPrefix))
			for _, vm := range vmsBySubnet[subnet.ID] {
				label := vm.Name
				if vm.PublicIPAddress != nil {
					label += " (public IP)"
				}
				fmt.Fprintf(&b, "      %s: %s {shape: rectangle}\n", d2ID(vm.Name), d2Quote(label))
			}
			fmt.Fprintf(&b, "    }\n")
		}
		fmt.Fprintf(&b, "  }\n\n")
	}

	for _, vnet := range g.VirtualNetworks {
		for _, subnet := range vnet.Subnets {
			if subnet.NATGatewayID != "" {
				fmt.Fprintf(&b, "  %s.%s -> nat: egress\n", d2ID(vnet.Name), d2ID(subnet.Name))
			}
		}
	}
	for _, peer := range g.Peerings {
		fmt.Fprintf(&b, "  %s -> %s: %s {style.stroke-dash: 3}\n",
			d2ID(peer.VirtualNetworkName), d2ID(peer.RemoteVirtualNetworkName), d2Quote("peering "+peer.Name))
	}

	b.WriteString("}\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// d2ID turns a resource name into a D2 key.
func d2ID(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func d2Quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
