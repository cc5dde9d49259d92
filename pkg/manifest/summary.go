package manifest

import (
	"fmt"
	"io"
	"sort"

	"github.com/netlab-dev/azure-topology/pkg/topology"
)

// PrintSummary writes a dry-run style overview of g.
func PrintSummary(w io.Writer, g *topology.Graph) error {
	p := &printer{w: w}

	p.printf("\n🔍 DRY RUN: resources to declare\n")
	p.printf("   Subscription:   %s\n", g.SubscriptionID)
	p.printf("   Resource group: %s (%s)\n", g.ResourceGroup.Name, g.ResourceGroup.Location)

	p.printf("\n🌐 NAT egress:\n")
	p.printf("   • Public IP prefix: WILL DECLARE %s (/%d %s, %s/%s)\n",
		g.PublicIPPrefix.Name, g.PublicIPPrefix.PrefixLength, g.PublicIPPrefix.IPVersion,
		g.PublicIPPrefix.SKUName, g.PublicIPPrefix.SKUTier)
	p.printf("   • NAT gateway:      WILL DECLARE %s in %s\n", g.NATGateway.Name, g.NATGateway.Location)

	p.printf("\n📦 Virtual networks:\n")
	for _, vnet := range g.VirtualNetworks {
		p.printf("   • %s %v (%s)\n", vnet.Name, vnet.AddressPrefixes, vnet.Location)
		for _, s := range vnet.Subnets {
			nat := ""
			if s.NATGatewayID != "" {
				nat = " [NAT: " + topology.ResourceName(s.NATGatewayID) + "]"
			}
			p.printf("       - %s %s%s\n", s.Name, s.AddressPrefix, nat)
		}
	}

	p.printf("\n🔗 Peerings:\n")
	if len(g.Peerings) == 0 {
		p.printf("   • none\n")
	}
	for _, peer := range g.Peerings {
		p.printf("   • %s → %s (%s)\n", peer.VirtualNetworkName, peer.RemoteVirtualNetworkName, peer.Name)
	}

	p.printf("\n🖥  Virtual machines:\n")
	for _, vm := range g.VirtualMachines {
		ipc := vm.NetworkInterface.IPConfigurations[0]
		pip := "no public IP"
		if vm.PublicIPAddress != nil {
			pip = "public IP " + vm.PublicIPAddress.Name
		}
		p.printf("   • %s (%s, %s) nic %s → %s, %s\n",
			vm.Name, vm.Size, vm.Location, vm.NetworkInterface.Name, topology.ResourceName(ipc.SubnetID), pip)
	}

	counts := g.Counts()
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	total := 0
	p.printf("\n📊 Totals:\n")
	for _, k := range kinds {
		p.printf("   %-18s %d\n", k, counts[k])
		total += counts[k]
	}
	p.printf("   %-18s %d\n", "total", total)

	return p.err
}

// printer remembers the first write error so callers check once.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
